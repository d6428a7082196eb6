package simulator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

func f64(v float64) *float64 { return &v }

func testPool() []models.Athlete {
	return []models.Athlete{
		{ID: "1", Name: "Sprinter A", Age: 22, Gender: models.GenderMale, PersonalBests: map[string]float64{"100м": 10.4, "200м": 21.0}},
		{ID: "2", Name: "Sprinter B", Age: 25, Gender: models.GenderFemale, PersonalBests: map[string]float64{"100м": 11.3}},
		{ID: "3", Name: "Miler", Age: 28, Gender: models.GenderMale, PersonalBests: map[string]float64{"1500м": 225.0}},
		{ID: "4", Name: "Hurdler", Age: 21, Gender: models.GenderFemale, PersonalBests: map[string]float64{"400м": 52.1}},
		{ID: "5", Name: "Rookie", Age: 18, Gender: models.GenderOther},
		{ID: "6", Name: "Veteran", Age: 35, Gender: models.GenderMale, PersonalBests: map[string]float64{"200м": 22.5}},
		{ID: "7", Name: "Walker", Age: 30, Gender: models.GenderMale, PersonalBests: map[string]float64{"5000м": 900}},
	}
}

func TestSplitCount(t *testing.T) {
	tests := []struct {
		distance int
		want     int
	}{
		{100, 4},
		{800, 4},
		{1500, 4},
		{1600, 4},
		{3000, 8},
		{5000, 13},
		{10000, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitCount(tt.distance), "distance %d", tt.distance)
	}
}

func TestSimulateSessionTotalsMatchSplits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for _, distance := range []int{100, 400, 1500, 3000, 5000, 10000} {
		for _, terrain := range []models.TerrainType{models.TerrainTrack, models.TerrainHilly, models.TerrainTrail} {
			settings := models.SimulationSettings{
				Distance:          distance,
				BasePace:          200,
				Variability:       0.1,
				FatigueRate:       0.2,
				Weather:           models.WeatherRainy,
				Terrain:           terrain,
				CompetitionFactor: 0.7,
			}
			session := SimulateSession("1", settings, rng, now)

			require.Len(t, session.Splits, SplitCount(distance))
			var sum float64
			for _, s := range session.Splits {
				assert.GreaterOrEqual(t, s, minSplitTime)
				sum += s
			}
			assert.InDelta(t, math.Round(sum*10)/10, session.Time, 1e-9)
			assert.Equal(t, session.Time, round1(session.Time))
			assert.Equal(t, models.SessionSimulation, session.Type)
			assert.Equal(t, now, session.Date)
			assert.NotEmpty(t, session.ID)
		}
	}
}

func TestSimulateSessionSplitFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	settings := models.SimulationSettings{Distance: 10, BasePace: 1, Variability: 1}
	session := SimulateSession("1", settings, rng, time.Now())
	for _, s := range session.Splits {
		assert.Equal(t, minSplitTime, s)
	}
	assert.Equal(t, 4.0, session.Time)
}

func TestExpectedTimeMultipliers(t *testing.T) {
	settings := models.SimulationSettings{Distance: 1000, BasePace: 200, Terrain: models.TerrainRoad, Weather: models.WeatherIdeal}
	assert.InDelta(t, 200, ExpectedTime(settings), 1e-9)

	settings.Terrain = models.TerrainHilly
	settings.Weather = models.WeatherHot
	settings.CompetitionFactor = 1
	assert.InDelta(t, 200*1.08*1.06*0.98, ExpectedTime(settings), 1e-9)

	assert.Equal(t, 1.0, TerrainMultiplier("moon"))
	assert.Equal(t, 1.0, WeatherMultiplier("fog"))
}

func TestBaseProbabilityTiers(t *testing.T) {
	athlete := &models.Athlete{ID: "1", PersonalBests: map[string]float64{"100м": 10.0}}

	tests := []struct {
		name   string
		target float64
		want   float64
	}{
		{"much faster than pb", 9.4, 0.2},
		{"slightly faster than pb", 9.8, 0.4},
		{"equal to pb", 10.0, 0.7},
		{"slightly slower", 10.2, 0.7},
		{"much slower", 10.5, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseProbability(athlete, 100, tt.target))
		})
	}

	assert.Equal(t, 0.5, BaseProbability(athlete, 200, 20.0))
}

func TestBaseProbabilityMonotonicInTarget(t *testing.T) {
	athlete := &models.Athlete{ID: "1", PersonalBests: map[string]float64{"400м": 50.0}}
	prev := 0.0
	for target := 40.0; target <= 60.0; target += 0.25 {
		p := BaseProbability(athlete, 400, target)
		assert.GreaterOrEqual(t, p, prev, "target %.2f", target)
		prev = p
	}
}

func TestRecentFormImpact(t *testing.T) {
	sessions := []models.RunSession{
		{Distance: 100, Time: 11.0},
		{Distance: 110, Time: 11.4},
		{Distance: 400, Time: 50.0},
	}

	impact, ok := RecentFormImpact(100, 10.0, sessions)
	require.True(t, ok)
	assert.Equal(t, -0.2, impact)

	impact, _ = RecentFormImpact(100, 11.1, sessions)
	assert.Equal(t, -0.1, impact)

	impact, _ = RecentFormImpact(100, 12.0, sessions)
	assert.Equal(t, 0.1, impact)

	_, ok = RecentFormImpact(1500, 240, sessions)
	assert.False(t, ok)
}

func TestCalculateProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	athlete := &models.Athlete{ID: "1", PersonalBests: map[string]float64{"100м": 10.0}}
	recent := []models.RunSession{{Distance: 100, Time: 10.1}}

	analysis := CalculateProbability(athlete, 100, 10.5, recent, rng)

	// 0.85 base, recent average faster than target adds 0.01
	assert.InDelta(t, 0.86, analysis.Probability, 1e-9)
	assert.Equal(t, [2]float64{10.3, 10.7}, analysis.ConfidenceInterval)
	assert.Equal(t, "1", analysis.AthleteID)
	assert.Equal(t, PositionProbabilities(0.85), analysis.PositionProbabilities, "positions follow the base tier")

	require.Len(t, analysis.Factors, len(probabilityFactors))
	for i, f := range analysis.Factors {
		assert.Equal(t, probabilityFactors[i].name, f.Name)
		assert.True(t, probabilityFactors[i].dist.Contains(f.Impact), "%s impact %.2f", f.Name, f.Impact)
	}
}

func TestCalculateProbabilityClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	athlete := &models.Athlete{ID: "1", PersonalBests: map[string]float64{"100м": 10.0}}

	high := CalculateProbability(athlete, 100, 12.0, []models.RunSession{{Distance: 100, Time: 10.0}}, rng)
	assert.LessOrEqual(t, high.Probability, maxProbability)

	low := CalculateProbability(athlete, 100, 8.0, []models.RunSession{{Distance: 100, Time: 11.0}}, rng)
	assert.InDelta(t, 0.18, low.Probability, 1e-9)
	assert.GreaterOrEqual(t, low.Probability, minProbability)
}

func TestPositionProbabilitiesSumToOne(t *testing.T) {
	for p := 0.05; p <= 0.95; p += 0.01 {
		probs := PositionProbabilities(p)
		require.Len(t, probs, 6)

		var sum float64
		for i, pp := range probs {
			assert.Equal(t, i+1, pp.Position)
			assert.GreaterOrEqual(t, pp.Probability, 0.0)
			sum += pp.Probability
		}
		assert.InDelta(t, 1.0, sum, 0.01, "probability %.2f", p)
	}
}

func TestTopNProbabilityAdditive(t *testing.T) {
	probs := PositionProbabilities(0.7)

	first := CalculateTopNProbability(probs, []int{1})
	second := CalculateTopNProbability(probs, []int{2})
	both := CalculateTopNProbability(probs, []int{1, 2})

	assert.InDelta(t, first+second, both, 0.011)
	assert.Equal(t, 0.0, CalculateTopNProbability(probs, []int{9}))
	assert.InDelta(t, 1.0, CalculateTopNProbability(probs, []int{1, 2, 3, 4, 5, 6}), 0.01)
}

func TestEstimateBaseTime(t *testing.T) {
	exact := &models.Athlete{PersonalBests: map[string]float64{"100м": 10.5}}
	assert.Equal(t, 10.5, EstimateBaseTime(exact, 100))

	scaled := &models.Athlete{PersonalBests: map[string]float64{"200м": 21.0, "1500м": 240}}
	assert.InDelta(t, 42.0, EstimateBaseTime(scaled, 400), 1e-9)

	none := &models.Athlete{}
	assert.InDelta(t, 100.0/7, EstimateBaseTime(none, 100), 1e-9)
}

func TestGenerateRaceWithCompetitorsBackfills(t *testing.T) {
	pool := testPool()
	gen := NewRaceGenerator(pool, rand.New(rand.NewSource(11)))

	results, err := gen.GenerateRaceWithCompetitors(pool[0], 100, nil)
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, 0.0, results[0].Difference)
	seen := map[string]bool{}
	for i, r := range results {
		assert.Equal(t, i+1, r.Position)
		assert.False(t, seen[r.AthleteID], "duplicate athlete %s", r.AthleteID)
		seen[r.AthleteID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, r.Time, results[i-1].Time)
			assert.InDelta(t, r.Time-results[0].Time, r.Difference, 0.011)
		}
	}
	assert.True(t, seen["1"])

	// the pool is not consumed between calls
	again, err := gen.GenerateRaceWithCompetitors(pool[0], 100, nil)
	require.NoError(t, err)
	assert.Len(t, again, 6)
}

func TestGenerateRaceWithCompetitorsRespectsGivenField(t *testing.T) {
	pool := testPool()
	gen := NewRaceGenerator(nil, rand.New(rand.NewSource(5)))

	results, err := gen.GenerateRaceWithCompetitors(pool[0], 100, []models.Athlete{pool[1], pool[0]})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Contains(t, []string{"1", "2"}, r.AthleteID)
		if r.AthleteID == "1" {
			assert.InDelta(t, 10.4, r.Time, 10.4*raceTimeJitter+0.01)
		}
	}

	_, err = gen.GenerateRaceWithCompetitors(pool[0], 0, nil)
	assert.Error(t, err)
}

func TestNewLiveRace(t *testing.T) {
	pool := testPool()
	pool[0].Acceleration = f64(6)
	pool[0].MaxSpeed = f64(10.5)

	race := NewLiveRace("race-1", 100, pool[:3], time.Now())

	assert.Equal(t, models.RaceStarting, race.Status)
	require.Len(t, race.Athletes, 3)
	for i, a := range race.Athletes {
		assert.Equal(t, i+1, a.Position)
		assert.Equal(t, i+1, a.Number)
		assert.Zero(t, a.Distance)
		assert.Zero(t, a.Speed)
		assert.Empty(t, a.Splits)
		assert.NotEmpty(t, a.Color)
	}
	assert.Equal(t, 6.0, race.Athletes[0].Acceleration)
	assert.Equal(t, 10.5, race.Athletes[0].MaxSpeed)
	assert.Equal(t, DefaultAcceleration, race.Athletes[1].Acceleration)
	assert.Equal(t, DefaultMaxSpeed, race.Athletes[1].MaxSpeed)
}

func TestAdvanceRaceAccelerationPhase(t *testing.T) {
	race := NewLiveRace("r", 100, testPool()[:1], time.Now())
	rng := rand.New(rand.NewSource(1))

	assert.False(t, AdvanceRace(race, rng), "starting race must not advance")
	assert.Zero(t, race.ElapsedTime)

	race.Status = models.RaceRunning
	AdvanceRace(race, rng)
	assert.InDelta(t, 0.1, race.ElapsedTime, 1e-9)
	assert.InDelta(t, 0.5, race.Athletes[0].Speed, 1e-9)
	assert.InDelta(t, 0.05, race.Athletes[0].Distance, 1e-9)

	for race.ElapsedTime < AccelerationPhase {
		AdvanceRace(race, rng)
	}
	AdvanceRace(race, rng)
	assert.InDelta(t, DefaultMaxSpeed, race.Athletes[0].Speed, cruiseJitter)
}

func TestHundredMetreRaceFinishes(t *testing.T) {
	pool := testPool()
	race := NewLiveRace("r", 100, pool[:2], time.Now())
	race.Status = models.RaceRunning
	rng := rand.New(rand.NewSource(99))

	finishes := 0
	for i := 0; i < 1000 && race.Status != models.RaceFinished; i++ {
		if AdvanceRace(race, rng) {
			finishes++
		}
		for j, a := range race.Athletes {
			assert.Equal(t, j+1, a.Position)
			assert.LessOrEqual(t, a.Distance, 100.0)
			if j > 0 {
				assert.LessOrEqual(t, a.Distance, race.Athletes[j-1].Distance)
			}
		}
	}

	assert.Equal(t, 1, finishes)
	assert.Equal(t, models.RaceFinished, race.Status)
	assert.False(t, AdvanceRace(race, rng), "finished race must not advance")

	for _, a := range race.Athletes {
		assert.Equal(t, 100.0, a.Distance)
		assert.Zero(t, a.Speed)
		assert.Len(t, a.Splits, 5)
		require.NotNil(t, a.FinishTime)
	}

	results := FinalResults(race)
	require.Len(t, results, 2)
	assert.Equal(t, 0.0, results[0].Difference)
	assert.Equal(t, 1, results[0].Position)
	assert.GreaterOrEqual(t, results[1].Time, results[0].Time)
}
