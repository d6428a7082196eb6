package models

type ProbabilityFactor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"` // roughly -1..1
}

type PositionProbability struct {
	Position    int     `json:"position"`
	Probability float64 `json:"probability"`
}

// ProbabilityAnalysis estimates the chance of an athlete running a target time
type ProbabilityAnalysis struct {
	AthleteID             string                `json:"athleteId"`
	Distance              int                   `json:"distance"`
	TargetTime            float64               `json:"targetTime"`
	Probability           float64               `json:"probability"`
	ConfidenceInterval    [2]float64            `json:"confidenceInterval"`
	Factors               []ProbabilityFactor   `json:"factors"`
	PositionProbabilities []PositionProbability `json:"positionProbabilities"`
}

type TopNProbability struct {
	Positions   []int   `json:"positions"`
	Probability float64 `json:"probability"`
}

// Clone returns a deep copy safe to hand to callers and subscribers
func (p *ProbabilityAnalysis) Clone() *ProbabilityAnalysis {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Factors != nil {
		cp.Factors = append(make([]ProbabilityFactor, 0, len(p.Factors)), p.Factors...)
	}
	if p.PositionProbabilities != nil {
		cp.PositionProbabilities = append(make([]PositionProbability, 0, len(p.PositionProbabilities)), p.PositionProbabilities...)
	}
	return &cp
}

// CloneTopN deep-copies a set of top-N rows
func CloneTopN(rows []TopNProbability) []TopNProbability {
	if rows == nil {
		return nil
	}
	out := make([]TopNProbability, len(rows))
	for i, r := range rows {
		out[i] = r
		if r.Positions != nil {
			out[i].Positions = append(make([]int, 0, len(r.Positions)), r.Positions...)
		}
	}
	return out
}
