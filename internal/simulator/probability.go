package simulator

import (
	"math"
	"math/rand"

	"github.com/stitts-dev/athletics-sim/internal/models"
)

const (
	noPersonalBestProbability = 0.5
	recentSessionWeight       = 0.1
	recentDistanceTolerance   = 0.2
	minProbability            = 0.05
	maxProbability            = 0.95
	confidenceSpread          = 0.02
	finishingPositions        = 6
)

// Factor ranges for the named impact factors
var probabilityFactors = []struct {
	name string
	dist *UniformDistribution
}{
	{"Current form", NewUniformDistribution(0.4, 0.8)},
	{"Recovery", NewUniformDistribution(0.3, 0.7)},
	{"Mental state", NewUniformDistribution(0.2, 0.8)},
	{"Distance history", NewUniformDistribution(0.5, 0.8)},
	{"Weather conditions", NewUniformDistribution(-0.3, 0.3)},
}

// BaseProbability is the tier derived from the target's distance to the personal best.
// A positive improvement means the target is faster than the PB.
func BaseProbability(athlete *models.Athlete, distance int, targetTime float64) float64 {
	pb, ok := athlete.PersonalBest(distance)
	if !ok {
		return noPersonalBestProbability
	}

	improvement := (pb - targetTime) / pb
	switch {
	case improvement > 0.05:
		return 0.2
	case improvement > 0:
		return 0.4
	case improvement > -0.03:
		return 0.7
	default:
		return 0.85
	}
}

// RecentFormImpact scores recent sessions near the distance against the target.
// The second return is false when no session qualifies.
func RecentFormImpact(distance int, targetTime float64, sessions []models.RunSession) (float64, bool) {
	var total float64
	var count int
	for _, s := range sessions {
		if s.Time <= 0 {
			continue
		}
		rel := math.Abs(float64(s.Distance-distance)) / float64(distance)
		if s.Distance == distance || rel <= recentDistanceTolerance {
			total += s.Time
			count++
		}
	}
	if count == 0 {
		return 0, false
	}

	avg := total / float64(count)
	performance := (avg - targetTime) / avg
	switch {
	case performance > 0.05:
		return -0.2, true
	case performance > 0:
		return -0.1, true
	default:
		return 0.1, true
	}
}

// CalculateProbability estimates the chance of running targetTime over distance.
// Factor impacts are random; everything else is deterministic. Finishing positions
// follow the base tier, before recent form adjusts the headline probability.
func CalculateProbability(athlete *models.Athlete, distance int, targetTime float64, recent []models.RunSession, rng *rand.Rand) *models.ProbabilityAnalysis {
	base := BaseProbability(athlete, distance, targetTime)

	probability := base
	if impact, ok := RecentFormImpact(distance, targetTime, recent); ok {
		probability += impact * recentSessionWeight
	}
	probability = math.Max(minProbability, math.Min(maxProbability, probability))

	factors := make([]models.ProbabilityFactor, 0, len(probabilityFactors))
	for _, f := range probabilityFactors {
		factors = append(factors, models.ProbabilityFactor{
			Name:   f.name,
			Impact: round2(f.dist.Sample(rng)),
		})
	}

	return &models.ProbabilityAnalysis{
		AthleteID:   athlete.ID,
		Distance:    distance,
		TargetTime:  targetTime,
		Probability: round2(probability),
		ConfidenceInterval: [2]float64{
			round1(targetTime * (1 - confidenceSpread)),
			round1(targetTime * (1 + confidenceSpread)),
		},
		Factors:               factors,
		PositionProbabilities: PositionProbabilities(base),
	}
}

// PositionProbabilities spreads a probability over finishing positions 1-6.
// Values are rounded to two decimals and sum to exactly 1.
func PositionProbabilities(probability float64) []models.PositionProbability {
	raw := make([]float64, finishingPositions)
	raw[0] = round2(probability * 0.6)
	raw[1] = round2(probability * 0.25)
	raw[2] = round2(probability * 0.10)
	rest := math.Max(0, (1-(raw[0]+raw[1]+raw[2]))/3)
	for i := 3; i < finishingPositions; i++ {
		raw[i] = round2(rest)
	}

	var sum float64
	for _, v := range raw {
		sum += v
	}

	out := make([]models.PositionProbability, finishingPositions)
	var normalized float64
	largest := 0
	for i, v := range raw {
		p := v
		if sum > 0 {
			p = round2(v / sum)
		}
		out[i] = models.PositionProbability{Position: i + 1, Probability: p}
		normalized += p
		if p > out[largest].Probability {
			largest = i
		}
	}

	// rounding residue goes to the most likely position
	if residue := round2(1 - normalized); residue != 0 {
		out[largest].Probability = round2(out[largest].Probability + residue)
	}
	return out
}

// CalculateTopNProbability sums the probabilities of the requested positions.
// Positions missing from the table count as zero.
func CalculateTopNProbability(probabilities []models.PositionProbability, positions []int) float64 {
	wanted := make(map[int]bool, len(positions))
	for _, p := range positions {
		wanted[p] = true
	}

	var total float64
	for _, pp := range probabilities {
		if wanted[pp.Position] {
			total += pp.Probability
		}
	}
	return round2(total)
}
