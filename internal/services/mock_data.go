package services

import (
	"sort"
	"sync"
	"time"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

// ReferenceData is the static data set served in mock mode, plus the sessions
// produced by mock simulations.
type ReferenceData struct {
	mu            sync.RWMutex
	athletes      []models.Athlete
	sessions      []models.RunSession
	raceResults   map[int][]models.RaceResult
	probabilities []models.ProbabilityAnalysis
}

func NewReferenceData(athletes []models.Athlete, sessions []models.RunSession, raceResults map[int][]models.RaceResult, probabilities []models.ProbabilityAnalysis) *ReferenceData {
	if raceResults == nil {
		raceResults = make(map[int][]models.RaceResult)
	}
	return &ReferenceData{
		athletes:      athletes,
		sessions:      sessions,
		raceResults:   raceResults,
		probabilities: probabilities,
	}
}

func (d *ReferenceData) Athletes() []models.Athlete {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return models.CloneAthletes(d.athletes)
}

func (d *ReferenceData) Athlete(id string) (models.Athlete, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.athletes {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return models.Athlete{}, false
}

// Sessions returns sessions newest first, filtered by athlete when id is set
func (d *ReferenceData) Sessions(athleteID string) []models.RunSession {
	d.mu.RLock()
	out := make([]models.RunSession, 0, len(d.sessions))
	for _, s := range d.sessions {
		if athleteID == "" || s.AthleteID == athleteID {
			out = append(out, s.Clone())
		}
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (d *ReferenceData) AddSession(s models.RunSession) {
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
}

// RaceResults returns the fixed result set for a distance
func (d *ReferenceData) RaceResults(distance int) ([]models.RaceResult, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	results, ok := d.raceResults[distance]
	return append([]models.RaceResult(nil), results...), ok
}

// Probability returns a precomputed analysis for the athlete, distance and target
func (d *ReferenceData) Probability(athleteID string, distance int, targetTime float64) (*models.ProbabilityAnalysis, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.probabilities {
		if p.AthleteID == athleteID && p.Distance == distance && p.TargetTime == targetTime {
			return p.Clone(), true
		}
	}
	return nil, false
}

// withKinematics sets the optional kinematic parameters; zero leaves one unset
func withKinematics(a models.Athlete, reactionTime, acceleration, maxSpeed, deceleration float64) models.Athlete {
	set := func(v float64) *float64 {
		if v == 0 {
			return nil
		}
		return &v
	}
	a.ReactionTime = set(reactionTime)
	a.Acceleration = set(acceleration)
	a.MaxSpeed = set(maxSpeed)
	a.Deceleration = set(deceleration)
	return a
}

// DefaultReferenceData is the demo data set of the dashboard
func DefaultReferenceData() *ReferenceData {
	athletes := []models.Athlete{
		withKinematics(models.Athlete{ID: "1", Name: "Alexei Morozov", Age: 24, Gender: models.GenderMale,
			Specialization: []string{"100м", "200м"}, PersonalBests: map[string]float64{"100м": 10.21, "200м": 20.74}},
			0.14, 5.6, 10.6, 0.4),
		withKinematics(models.Athlete{ID: "2", Name: "Maria Ivanova", Age: 22, Gender: models.GenderFemale,
			Specialization: []string{"100м", "200м"}, PersonalBests: map[string]float64{"100м": 11.35, "200м": 23.12}},
			0.15, 5.1, 9.4, 0.5),
		withKinematics(models.Athlete{ID: "3", Name: "Dmitri Volkov", Age: 27, Gender: models.GenderMale,
			Specialization: []string{"400м", "800м"}, PersonalBests: map[string]float64{"400м": 46.32, "800м": 106.8}},
			0.17, 4.8, 9.2, 0.6),
		withKinematics(models.Athlete{ID: "4", Name: "Elena Sokolova", Age: 29, Gender: models.GenderFemale,
			Specialization: []string{"1500м", "5000м"}, PersonalBests: map[string]float64{"1500м": 248.5, "5000м": 932.0}},
			0.19, 3.9, 7.1, 0.3),
		withKinematics(models.Athlete{ID: "5", Name: "Ivan Petrov", Age: 31, Gender: models.GenderMale,
			Specialization: []string{"5000м", "10000м"}, PersonalBests: map[string]float64{"5000м": 812.4, "10000м": 1704.0}},
			0.2, 3.6, 7.4, 0),
		withKinematics(models.Athlete{ID: "6", Name: "Anna Kuznetsova", Age: 20, Gender: models.GenderFemale,
			Specialization: []string{"200м", "400м"}, PersonalBests: map[string]float64{"200м": 23.48, "400м": 52.9}},
			0, 4.9, 8.9, 0),
		withKinematics(models.Athlete{ID: "7", Name: "Sergei Orlov", Age: 25, Gender: models.GenderMale,
			Specialization: []string{"100м"}, PersonalBests: map[string]float64{"100м": 10.48}},
			0, 5.4, 10.2, 0),
		{ID: "8", Name: "Olga Smirnova", Age: 23, Gender: models.GenderOther, Specialization: []string{"800м"}},
	}

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	sessions := []models.RunSession{
		{
			ID: "s1", AthleteID: "1", Date: base, Type: models.SessionRace, Distance: 100, Time: 10.32,
			Splits: []float64{2.9, 2.5, 2.4, 2.52}, Pace: 103.2,
			HeartRate: &models.HeartRateSummary{Avg: 168, Max: 191},
			Weather:   &models.WeatherSnapshot{Condition: models.WeatherSunny, Temperature: 21, Wind: 0.8},
			Notes:     "Season opener",
		},
		{
			ID: "s2", AthleteID: "1", Date: base.Add(7 * day), Type: models.SessionTraining, Distance: 200, Time: 21.4,
			Splits: []float64{5.6, 5.2, 5.2, 5.4}, Pace: 107.0,
			HeartRate: &models.HeartRateSummary{Avg: 172, Max: 194},
		},
		{
			ID: "s3", AthleteID: "1", Date: base.Add(14 * day), Type: models.SessionRace, Distance: 100, Time: 10.25,
			Splits: []float64{2.88, 2.47, 2.4, 2.5}, Pace: 102.5,
			Weather: &models.WeatherSnapshot{Condition: models.WeatherCloudy, Temperature: 17, Wind: 1.6},
		},
		{
			ID: "s4", AthleteID: "2", Date: base.Add(3 * day), Type: models.SessionRace, Distance: 100, Time: 11.48,
			Splits: []float64{3.1, 2.8, 2.72, 2.86}, Pace: 114.8,
		},
		{
			ID: "s5", AthleteID: "3", Date: base.Add(5 * day), Type: models.SessionRace, Distance: 400, Time: 46.9,
			Splits: []float64{11.1, 11.3, 11.8, 12.7}, Pace: 117.3,
			HeartRate: &models.HeartRateSummary{Avg: 181, Max: 198},
		},
		{
			ID: "s6", AthleteID: "4", Date: base.Add(9 * day), Type: models.SessionTraining, Distance: 5000, Time: 951.2,
			Splits: []float64{72.1, 72.8, 73.0, 73.1, 73.4, 73.2, 73.6, 73.5, 73.9, 73.2, 73.0, 73.4, 72.0}, Pace: 190.2,
			Weather: &models.WeatherSnapshot{Condition: models.WeatherRainy, Temperature: 12, Wind: 3.1},
			Notes:   "Tempo run in the rain",
		},
		{
			ID: "s7", AthleteID: "5", Date: base.Add(11 * day), Type: models.SessionRace, Distance: 10000, Time: 1721.5,
			Splits: []float64{68.2, 68.5, 68.9, 68.6, 68.8, 68.9, 69.0, 69.2, 69.1, 69.0, 69.3, 69.2, 69.4, 69.1, 69.0, 68.8, 69.2, 69.3, 69.1, 68.9, 68.7, 68.8, 68.5, 68.9, 68.9}, Pace: 172.2,
		},
		{
			ID: "s8", AthleteID: "6", Date: base.Add(2 * day), Type: models.SessionRace, Distance: 400, Time: 53.4,
			Splits: []float64{12.6, 13.0, 13.5, 14.3}, Pace: 133.5,
		},
	}

	raceResults := map[int][]models.RaceResult{
		100: {
			{Position: 1, AthleteID: "1", Name: "Alexei Morozov", Time: 10.28, Difference: 0},
			{Position: 2, AthleteID: "7", Name: "Sergei Orlov", Time: 10.51, Difference: 0.23},
			{Position: 3, AthleteID: "2", Name: "Maria Ivanova", Time: 11.42, Difference: 1.14},
			{Position: 4, AthleteID: "6", Name: "Anna Kuznetsova", Time: 11.87, Difference: 1.59},
		},
		400: {
			{Position: 1, AthleteID: "3", Name: "Dmitri Volkov", Time: 46.55, Difference: 0},
			{Position: 2, AthleteID: "6", Name: "Anna Kuznetsova", Time: 52.71, Difference: 6.16},
		},
	}

	probabilities := []models.ProbabilityAnalysis{
		{
			AthleteID: "1", Distance: 100, TargetTime: 10.2, Probability: 0.42,
			ConfidenceInterval: [2]float64{10.0, 10.4},
			Factors: []models.ProbabilityFactor{
				{Name: "Current form", Impact: 0.7},
				{Name: "Recovery", Impact: 0.5},
				{Name: "Mental state", Impact: 0.6},
				{Name: "Distance history", Impact: 0.75},
				{Name: "Weather conditions", Impact: -0.1},
			},
			PositionProbabilities: []models.PositionProbability{
				{Position: 1, Probability: 0.32},
				{Position: 2, Probability: 0.14},
				{Position: 3, Probability: 0.06},
				{Position: 4, Probability: 0.16},
				{Position: 5, Probability: 0.16},
				{Position: 6, Probability: 0.16},
			},
		},
	}

	return NewReferenceData(athletes, sessions, raceResults, probabilities)
}
