package models

import "encoding/json"

// MessageType names an application message carried over the realtime transport
type MessageType string

const (
	MsgRequestSimulation    MessageType = "request_simulation"
	MsgSimulationResult     MessageType = "simulation_result"
	MsgRequestAthletes      MessageType = "request_athletes"
	MsgAthletesList         MessageType = "athletes_list"
	MsgRequestSessions      MessageType = "request_sessions"
	MsgSessionsList         MessageType = "sessions_list"
	MsgRequestRaceResults   MessageType = "request_race_results"
	MsgRaceResults          MessageType = "race_results"
	MsgRequestLiveRace      MessageType = "request_live_race"
	MsgLiveRaceUpdate       MessageType = "live_race_update"
	MsgRequestProbabilities MessageType = "request_probabilities"
	MsgProbabilityResults   MessageType = "probability_results"
	MsgAthleteUpdate        MessageType = "athlete_update"
	MsgSessionUpdate        MessageType = "session_update"
	MsgError                MessageType = "error"

	// Gateway-only frame pushed to dashboard clients
	MsgNotification MessageType = "notification"
)

// Message is the envelope of every publication and RPC payload
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage marshals payload into an envelope
func NewMessage(t MessageType, payload interface{}, requestID string) (*Message, error) {
	msg := &Message{Type: t, RequestID: requestID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// Request payloads sent by the façade in connected mode

type SimulationRequest struct {
	AthleteID string             `json:"athleteId"`
	Settings  SimulationSettings `json:"settings"`
}

type SessionsRequest struct {
	AthleteID string `json:"athleteId,omitempty"`
}

type RaceResultsRequest struct {
	Distance  int    `json:"distance"`
	AthleteID string `json:"athleteId,omitempty"`
}

type LiveRaceRequest struct {
	Distance   int      `json:"distance"`
	AthleteIDs []string `json:"athleteIds"`
}

type ProbabilityRequest struct {
	AthleteID  string  `json:"athleteId"`
	Distance   int     `json:"distance"`
	TargetTime float64 `json:"targetTime"`
}

// SessionsList is the payload of sessions_list pushes
type SessionsList struct {
	AthleteID string       `json:"athleteId,omitempty"`
	Sessions  []RunSession `json:"sessions"`
}

// RaceResultsPayload is the payload of race_results pushes
type RaceResultsPayload struct {
	Distance  int          `json:"distance"`
	AthleteID string       `json:"athleteId,omitempty"`
	Results   []RaceResult `json:"results"`
}

// EntityUpdate is the payload of athlete_update and session_update pushes
type EntityUpdate struct {
	AthleteID string `json:"athleteId"`
	SessionID string `json:"sessionId,omitempty"`
}

// ErrorPayload is the payload of error pushes
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a toast-style event raised on connection-state transitions
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}
