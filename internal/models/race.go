package models

import "time"

type RaceStatus string

const (
	RaceWaiting  RaceStatus = "waiting"
	RaceStarting RaceStatus = "starting"
	RaceRunning  RaceStatus = "running"
	RaceFinished RaceStatus = "finished"
)

var raceStatusOrder = map[RaceStatus]int{
	RaceWaiting:  0,
	RaceStarting: 1,
	RaceRunning:  2,
	RaceFinished: 3,
}

// CanTransitionTo reports whether a race may move from s to next. Status only moves forward.
func (s RaceStatus) CanTransitionTo(next RaceStatus) bool {
	from, ok := raceStatusOrder[s]
	if !ok {
		return false
	}
	to, ok := raceStatusOrder[next]
	return ok && to > from
}

// IsActive reports whether the race has started but not finished
func (s RaceStatus) IsActive() bool {
	return s == RaceStarting || s == RaceRunning
}

// LiveRaceData is the state of one race in progress
type LiveRaceData struct {
	RaceID      string        `json:"raceId"`
	Distance    int           `json:"distance"`
	Status      RaceStatus    `json:"status"`
	ElapsedTime float64       `json:"elapsedTime"`
	Athletes    []RaceAthlete `json:"athletes"`
	StartedAt   time.Time     `json:"startedAt"`
}

type RaceAthlete struct {
	AthleteID  string    `json:"athleteId"`
	Number     int       `json:"number"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Position   int       `json:"position"`
	Distance   float64   `json:"distance"`
	Speed      float64   `json:"speed"`
	Splits     []float64 `json:"splits"`
	FinishTime *float64  `json:"finishTime,omitempty"`

	// Kinematics resolved at race start
	Acceleration float64 `json:"-"`
	MaxSpeed     float64 `json:"-"`
}

// Finished reports whether the athlete reached the finish line
func (a *RaceAthlete) Finished() bool {
	return a.FinishTime != nil
}

// Clone returns a deep copy safe to hand to subscribers
func (r *LiveRaceData) Clone() *LiveRaceData {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Athletes = make([]RaceAthlete, len(r.Athletes))
	for i, a := range r.Athletes {
		a.Splits = append([]float64(nil), a.Splits...)
		if a.FinishTime != nil {
			ft := *a.FinishTime
			a.FinishTime = &ft
		}
		cp.Athletes[i] = a
	}
	return &cp
}

// Advance moves the race to next and reports whether the transition was allowed
func (r *LiveRaceData) Advance(next RaceStatus) bool {
	if !r.Status.CanTransitionTo(next) {
		return false
	}
	r.Status = next
	return true
}

// AllFinished reports whether every athlete crossed the line
func (r *LiveRaceData) AllFinished() bool {
	if len(r.Athletes) == 0 {
		return false
	}
	for i := range r.Athletes {
		if !r.Athletes[i].Finished() {
			return false
		}
	}
	return true
}

// RaceResult is one ranking row of a finished or generated race
type RaceResult struct {
	Position   int     `json:"position"`
	AthleteID  string  `json:"athleteId"`
	Name       string  `json:"name"`
	Time       float64 `json:"time"`
	Difference float64 `json:"difference"`
}
