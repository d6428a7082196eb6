package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/stitts-dev/athletics-sim/internal/models"
)

const (
	shortRaceMaxDistance = 1500
	shortRaceSplits      = 4
	longRaceSplitLength  = 400
	minSplitTime         = 1.0
	competitionDiscount  = 0.02
)

var terrainMultipliers = map[models.TerrainType]float64{
	models.TerrainTrack: 0.98,
	models.TerrainRoad:  1.0,
	models.TerrainHilly: 1.08,
	models.TerrainTrail: 1.12,
	models.TerrainCross: 1.10,
}

var weatherMultipliers = map[models.WeatherCondition]float64{
	models.WeatherIdeal:  1.0,
	models.WeatherSunny:  1.0,
	models.WeatherCloudy: 1.0,
	models.WeatherRainy:  1.05,
	models.WeatherWindy:  1.04,
	models.WeatherHot:    1.06,
	models.WeatherCold:   1.03,
}

// Unknown terrain or weather counts as neutral
func TerrainMultiplier(t models.TerrainType) float64 {
	if m, ok := terrainMultipliers[t]; ok {
		return m
	}
	return 1.0
}

func WeatherMultiplier(w models.WeatherCondition) float64 {
	if m, ok := weatherMultipliers[w]; ok {
		return m
	}
	return 1.0
}

// SplitCount is 4 up to 1500 m, then one split per 400 m
func SplitCount(distance int) int {
	if distance <= shortRaceMaxDistance {
		return shortRaceSplits
	}
	return int(math.Ceil(float64(distance) / longRaceSplitLength))
}

// ExpectedTime is the adjusted target before per-split noise
func ExpectedTime(settings models.SimulationSettings) float64 {
	base := settings.BasePace * float64(settings.Distance) / 1000
	return base *
		TerrainMultiplier(settings.Terrain) *
		WeatherMultiplier(settings.Weather) *
		(1 - settings.CompetitionFactor*competitionDiscount)
}

// SimulateSession generates a simulated run. The total time is the sum of the
// rounded splits, so it can differ from ExpectedTime.
func SimulateSession(athleteID string, settings models.SimulationSettings, rng *rand.Rand, now time.Time) *models.RunSession {
	n := SplitCount(settings.Distance)
	perSplit := ExpectedTime(settings) / float64(n)
	noise := NewSymmetricDistribution(settings.Variability)

	splits := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		fatigue := 1 + settings.FatigueRate*float64(i)/float64(n)
		split := round1(perSplit * fatigue * (1 + noise.Sample(rng)))
		if split < minSplitTime {
			split = minSplitTime
		}
		splits[i] = split
		total += split
	}
	total = round1(total)

	weather := settings.Weather
	if weather == "" {
		weather = models.WeatherIdeal
	}

	return &models.RunSession{
		ID:        uuid.New().String(),
		AthleteID: athleteID,
		Date:      now,
		Type:      models.SessionSimulation,
		Distance:  settings.Distance,
		Time:      total,
		Splits:    splits,
		Pace:      round1(total / (float64(settings.Distance) / 1000)),
		Weather:   &models.WeatherSnapshot{Condition: weather},
		Notes:     "Simulated on " + string(terrainOrDefault(settings.Terrain)) + " terrain",
	}
}

func terrainOrDefault(t models.TerrainType) models.TerrainType {
	if t == "" {
		return models.TerrainTrack
	}
	return t
}
