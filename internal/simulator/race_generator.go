package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

const (
	MaxRaceField   = 6
	fallbackSpeed  = 7.0 // m/s when no personal best is usable
	raceTimeJitter = 0.02
)

// RaceGenerator synthesizes race results from personal bests.
// The reference pool is read-only; backfill selects without removal.
type RaceGenerator struct {
	pool   []models.Athlete
	jitter *UniformDistribution

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRaceGenerator(pool []models.Athlete, rng *rand.Rand) *RaceGenerator {
	cp := make([]models.Athlete, len(pool))
	copy(cp, pool)
	return &RaceGenerator{
		pool:   cp,
		jitter: NewSymmetricDistribution(raceTimeJitter),
		rng:    rng,
	}
}

// GenerateRaceWithCompetitors runs main against competitors, filling the field up to
// six from the reference pool, and returns rows sorted by time.
func (g *RaceGenerator) GenerateRaceWithCompetitors(main models.Athlete, distance int, competitors []models.Athlete) ([]models.RaceResult, error) {
	if distance <= 0 {
		return nil, fmt.Errorf("invalid race distance %d", distance)
	}

	roster := g.buildRoster(main, competitors)

	g.mu.Lock()
	results := make([]models.RaceResult, 0, len(roster))
	for i := range roster {
		base := EstimateBaseTime(&roster[i], distance)
		results = append(results, models.RaceResult{
			AthleteID: roster[i].ID,
			Name:      roster[i].Name,
			Time:      round2(base * (1 + g.jitter.Sample(g.rng))),
		})
	}
	g.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Time < results[j].Time
	})
	RankResults(results)
	return results, nil
}

func (g *RaceGenerator) buildRoster(main models.Athlete, competitors []models.Athlete) []models.Athlete {
	roster := make([]models.Athlete, 0, MaxRaceField)
	seen := make(map[string]bool, MaxRaceField)

	add := func(a models.Athlete) {
		if len(roster) >= MaxRaceField || seen[a.ID] {
			return
		}
		seen[a.ID] = true
		roster = append(roster, a)
	}

	add(main)
	for _, c := range competitors {
		add(c)
	}
	for _, a := range g.pool {
		add(a)
	}
	return roster
}

// EstimateBaseTime predicts a finishing time for the distance: the exact personal best,
// else the nearest personal best scaled linearly, else distance at 7 m/s.
func EstimateBaseTime(athlete *models.Athlete, distance int) float64 {
	if pb, ok := athlete.PersonalBest(distance); ok {
		return pb
	}

	nearest, nearestTime := 0, 0.0
	for event, t := range athlete.PersonalBests {
		d, ok := models.EventDistance(event)
		if !ok || t <= 0 {
			continue
		}
		gap := math.Abs(float64(d - distance))
		best := math.Abs(float64(nearest - distance))
		if nearest == 0 || gap < best || (gap == best && d < nearest) {
			nearest, nearestTime = d, t
		}
	}
	if nearest > 0 {
		return nearestTime * float64(distance) / float64(nearest)
	}
	return float64(distance) / fallbackSpeed
}

// RankResults assigns positions in slice order and the gap to the winner
func RankResults(results []models.RaceResult) {
	if len(results) == 0 {
		return
	}
	winner := results[0].Time
	for i := range results {
		results[i].Position = i + 1
		results[i].Difference = round2(results[i].Time - winner)
	}
	results[0].Difference = 0
}
