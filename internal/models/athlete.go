package models

import (
	"fmt"
	"strconv"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Athlete is immutable reference data supplied by the mock layer or the realtime backend
type Athlete struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Age            int                `json:"age"`
	Gender         Gender             `json:"gender"`
	Specialization []string           `json:"specialization"`
	PersonalBests  map[string]float64 `json:"personalBests"` // event key -> seconds

	// Kinematic parameters used by the live race
	ReactionTime *float64 `json:"reactionTime,omitempty"` // s
	Acceleration *float64 `json:"acceleration,omitempty"` // m/s²
	MaxSpeed     *float64 `json:"maxSpeed,omitempty"`     // m/s
	Deceleration *float64 `json:"deceleration,omitempty"` // m/s²
}

const eventSuffix = "м"

// EventKey returns the personal-best key for a distance in meters, e.g. "100м"
func EventKey(distance int) string {
	return strconv.Itoa(distance) + eventSuffix
}

// EventDistance parses an event key back into meters
func EventDistance(key string) (int, bool) {
	if !strings.HasSuffix(key, eventSuffix) {
		return 0, false
	}
	d, err := strconv.Atoi(strings.TrimSuffix(key, eventSuffix))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// PersonalBest returns the athlete's best time for the distance, if any
func (a *Athlete) PersonalBest(distance int) (float64, bool) {
	pb, ok := a.PersonalBests[EventKey(distance)]
	return pb, ok && pb > 0
}

func (a *Athlete) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("athlete id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("athlete %s: name is required", a.ID)
	}
	if a.Age <= 0 {
		return fmt.Errorf("athlete %s: age must be positive", a.ID)
	}
	switch a.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		return fmt.Errorf("athlete %s: unknown gender %q", a.ID, a.Gender)
	}
	for event, t := range a.PersonalBests {
		if t <= 0 {
			return fmt.Errorf("athlete %s: personal best for %s must be positive", a.ID, event)
		}
	}
	return nil
}

// Clone returns a deep copy of the athlete
func (a *Athlete) Clone() Athlete {
	cp := *a
	if a.Specialization != nil {
		cp.Specialization = append(make([]string, 0, len(a.Specialization)), a.Specialization...)
	}
	if a.PersonalBests != nil {
		cp.PersonalBests = make(map[string]float64, len(a.PersonalBests))
		for k, v := range a.PersonalBests {
			cp.PersonalBests[k] = v
		}
	}
	cp.ReactionTime = cloneFloat(a.ReactionTime)
	cp.Acceleration = cloneFloat(a.Acceleration)
	cp.MaxSpeed = cloneFloat(a.MaxSpeed)
	cp.Deceleration = cloneFloat(a.Deceleration)
	return cp
}

// CloneAthletes deep-copies a roster
func CloneAthletes(athletes []Athlete) []Athlete {
	if athletes == nil {
		return nil
	}
	out := make([]Athlete, len(athletes))
	for i, a := range athletes {
		out[i] = a.Clone()
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
