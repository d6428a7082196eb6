package simulator

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

const (
	TickSeconds         = 0.1 // simulated time per tick
	AccelerationPhase   = 2.0
	DefaultAcceleration = 5.0 // m/s²
	DefaultMaxSpeed     = 9.0 // m/s
	SplitInterval       = 20.0
	cruiseJitter        = 0.1
)

var jerseyColors = []string{"#e53935", "#1e88e5", "#43a047", "#fdd835", "#8e24aa", "#fb8c00", "#00acc1", "#6d4c41"}

// NewLiveRace seeds a race in the starting state with zeroed competitors
func NewLiveRace(raceID string, distance int, athletes []models.Athlete, now time.Time) *models.LiveRaceData {
	race := &models.LiveRaceData{
		RaceID:    raceID,
		Distance:  distance,
		Status:    models.RaceStarting,
		Athletes:  make([]models.RaceAthlete, 0, len(athletes)),
		StartedAt: now,
	}

	for i, a := range athletes {
		accel, maxSpeed := DefaultAcceleration, DefaultMaxSpeed
		if a.Acceleration != nil && *a.Acceleration > 0 {
			accel = *a.Acceleration
		}
		if a.MaxSpeed != nil && *a.MaxSpeed > 0 {
			maxSpeed = *a.MaxSpeed
		}
		race.Athletes = append(race.Athletes, models.RaceAthlete{
			AthleteID:    a.ID,
			Number:       i + 1,
			Name:         a.Name,
			Color:        jerseyColors[i%len(jerseyColors)],
			Position:     i + 1,
			Splits:       []float64{},
			Acceleration: accel,
			MaxSpeed:     maxSpeed,
		})
	}
	return race
}

// AdvanceRace moves the race forward one tick. It returns true on the tick that
// finishes the race, and is a no-op for a race that is not running.
func AdvanceRace(race *models.LiveRaceData, rng *rand.Rand) bool {
	if race.Status != models.RaceRunning {
		return false
	}

	race.ElapsedTime = round1(race.ElapsedTime + TickSeconds)
	finishLine := float64(race.Distance)
	jitter := NewSymmetricDistribution(cruiseJitter)

	for i := range race.Athletes {
		a := &race.Athletes[i]
		if a.Finished() {
			continue
		}

		if race.ElapsedTime < AccelerationPhase {
			a.Speed = a.Acceleration * race.ElapsedTime
		} else {
			a.Speed = a.MaxSpeed + jitter.Sample(rng)
		}
		a.Distance += a.Speed * TickSeconds

		if a.Distance >= finishLine {
			a.Distance = finishLine
			a.Speed = 0
			ft := race.ElapsedTime
			a.FinishTime = &ft
		}

		for int(math.Floor(a.Distance/SplitInterval)) > len(a.Splits) {
			a.Splits = append(a.Splits, race.ElapsedTime)
		}
	}

	sort.SliceStable(race.Athletes, func(i, j int) bool {
		return race.Athletes[i].Distance > race.Athletes[j].Distance
	})
	for i := range race.Athletes {
		race.Athletes[i].Position = i + 1
	}

	return race.AllFinished() && race.Advance(models.RaceFinished)
}

// FinalResults ranks finished athletes by finishing time, keeping the live order on ties
func FinalResults(race *models.LiveRaceData) []models.RaceResult {
	athletes := make([]models.RaceAthlete, len(race.Athletes))
	copy(athletes, race.Athletes)
	sort.SliceStable(athletes, func(i, j int) bool {
		return finishTime(&athletes[i], race) < finishTime(&athletes[j], race)
	})

	results := make([]models.RaceResult, len(athletes))
	for i := range athletes {
		results[i] = models.RaceResult{
			AthleteID: athletes[i].AthleteID,
			Name:      athletes[i].Name,
			Time:      round2(finishTime(&athletes[i], race)),
		}
	}
	RankResults(results)
	return results
}

func finishTime(a *models.RaceAthlete, race *models.LiveRaceData) float64 {
	if a.FinishTime != nil {
		return *a.FinishTime
	}
	return race.ElapsedTime
}
