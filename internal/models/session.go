package models

import (
	"fmt"
	"time"
)

type SessionType string

const (
	SessionRace       SessionType = "race"
	SessionTraining   SessionType = "training"
	SessionSimulation SessionType = "simulation"
)

type WeatherCondition string

const (
	WeatherIdeal  WeatherCondition = "ideal"
	WeatherSunny  WeatherCondition = "sunny"
	WeatherCloudy WeatherCondition = "cloudy"
	WeatherRainy  WeatherCondition = "rainy"
	WeatherWindy  WeatherCondition = "windy"
	WeatherHot    WeatherCondition = "hot"
	WeatherCold   WeatherCondition = "cold"
)

type TerrainType string

const (
	TerrainTrack TerrainType = "track"
	TerrainRoad  TerrainType = "road"
	TerrainHilly TerrainType = "hilly"
	TerrainTrail TerrainType = "trail"
	TerrainCross TerrainType = "cross"
)

type HeartRateSummary struct {
	Avg int `json:"avg"`
	Max int `json:"max"`
}

type WeatherSnapshot struct {
	Condition   WeatherCondition `json:"condition"`
	Temperature float64          `json:"temperature"` // °C
	Wind        float64          `json:"wind"`        // m/s
}

// RunSession is an immutable record of one run, recorded or simulated
type RunSession struct {
	ID        string            `json:"id"`
	AthleteID string            `json:"athleteId"`
	Date      time.Time         `json:"date"`
	Type      SessionType       `json:"type"`
	Distance  int               `json:"distance"` // meters
	Time      float64           `json:"time"`     // seconds
	Splits    []float64         `json:"splits"`
	Pace      float64           `json:"pace"` // seconds per km
	HeartRate *HeartRateSummary `json:"heartRate,omitempty"`
	Weather   *WeatherSnapshot  `json:"weather,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

// SimulationSettings is built by the UI and consumed by one simulation request
type SimulationSettings struct {
	Distance          int              `json:"distance"`
	BasePace          float64          `json:"basePace"`    // seconds per km
	Variability       float64          `json:"variability"` // 0..1
	FatigueRate       float64          `json:"fatigueRate"` // 0..1
	Weather           WeatherCondition `json:"weather"`
	Terrain           TerrainType      `json:"terrain"`
	CompetitionFactor float64          `json:"competitionFactor"` // 0..1

	ReactionTime float64 `json:"reactionTime,omitempty"`
	Acceleration float64 `json:"acceleration,omitempty"`
	MaxSpeed     float64 `json:"maxSpeed,omitempty"`
	Deceleration float64 `json:"deceleration,omitempty"`
}

func (s *SimulationSettings) Validate() error {
	if s.Distance <= 0 {
		return fmt.Errorf("distance must be positive")
	}
	if s.BasePace <= 0 {
		return fmt.Errorf("base pace must be positive")
	}
	fractions := map[string]float64{
		"variability":        s.Variability,
		"fatigue rate":       s.FatigueRate,
		"competition factor": s.CompetitionFactor,
	}
	for name, v := range fractions {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if s.ReactionTime < 0 || s.Acceleration < 0 || s.MaxSpeed < 0 || s.Deceleration < 0 {
		return fmt.Errorf("kinematic overrides must not be negative")
	}
	return nil
}

// Clone returns a deep copy of the session
func (s RunSession) Clone() RunSession {
	cp := s
	if s.Splits != nil {
		cp.Splits = append(make([]float64, 0, len(s.Splits)), s.Splits...)
	}
	if s.HeartRate != nil {
		hr := *s.HeartRate
		cp.HeartRate = &hr
	}
	if s.Weather != nil {
		w := *s.Weather
		cp.Weather = &w
	}
	return cp
}

// CloneSessions deep-copies a list of sessions
func CloneSessions(sessions []RunSession) []RunSession {
	if sessions == nil {
		return nil
	}
	out := make([]RunSession, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
