package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/athletics-sim/internal/models"
	"github.com/stitts-dev/athletics-sim/internal/providers"
	"github.com/stitts-dev/athletics-sim/internal/simulator"
	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

type Mode string

const (
	ModeMock      Mode = "mock"
	ModeConnected Mode = "connected"
)

const keyAthletes = "athletes"

// SimulationConfig holds the timings of the simulation façade
type SimulationConfig struct {
	Channel              string
	MockDelay            time.Duration
	ResponseTimeout      time.Duration
	LiveRaceStartTimeout time.Duration
	LiveRaceTick         time.Duration
	LiveRaceStartDelay   time.Duration
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Channel:              "athletics",
		MockDelay:            500 * time.Millisecond,
		ResponseTimeout:      30 * time.Second,
		LiveRaceStartTimeout: 10 * time.Second,
		LiveRaceTick:         100 * time.Millisecond,
		LiveRaceStartDelay:   time.Second,
	}
}

// pendingRequest waits for the push answering one outbound request
type pendingRequest struct {
	responseType models.MessageType
	requestID    string
	match        func(msg *models.Message) bool
	ch           chan *models.Message
}

// SimulationAPI is the single entry point of the dashboard. It serves reference
// data and simulations locally in mock mode and through the realtime backend
// once connected.
type SimulationAPI struct {
	client    providers.RealtimeClient
	reconnect *providers.ReconnectPolicy
	cache     *ResultCache
	data      *ReferenceData
	generator *simulator.RaceGenerator
	runner    *liveRaceRunner
	config    SimulationConfig
	logger    *logrus.Logger
	now       Clock

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.RWMutex
	mode    Mode
	pending map[*pendingRequest]struct{}

	simulationResults  *Subject[*models.RunSession]
	raceResults        *Subject[[]models.RaceResult]
	liveRaceUpdates    *Subject[*models.LiveRaceData]
	probabilityResults *Subject[*models.ProbabilityAnalysis]
	notifications      *Subject[models.Notification]

	detach []func()
}

type SimulationOption func(a *SimulationAPI)

// WithSeed makes every random draw of the façade reproducible
func WithSeed(seed int64) SimulationOption {
	return func(a *SimulationAPI) { a.rng = rand.New(rand.NewSource(seed)) }
}

func WithNow(clock Clock) SimulationOption {
	return func(a *SimulationAPI) { a.now = clock }
}

func NewSimulationAPI(
	client providers.RealtimeClient,
	reconnect *providers.ReconnectPolicy,
	cache *ResultCache,
	data *ReferenceData,
	config SimulationConfig,
	logger *logrus.Logger,
	opts ...SimulationOption,
) *SimulationAPI {
	a := &SimulationAPI{
		client:             client,
		reconnect:          reconnect,
		cache:              cache,
		data:               data,
		config:             config,
		logger:             logger,
		now:                time.Now,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		mode:               ModeMock,
		pending:            make(map[*pendingRequest]struct{}),
		simulationResults:  NewSubject[*models.RunSession](),
		raceResults:        NewSubject[[]models.RaceResult](),
		liveRaceUpdates:    NewSubject[*models.LiveRaceData](),
		probabilityResults: NewSubject[*models.ProbabilityAnalysis](),
		notifications:      NewSubject[models.Notification](),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.generator = simulator.NewRaceGenerator(data.Athletes(), rand.New(rand.NewSource(a.rng.Int63())))
	a.runner = newLiveRaceRunner(config.LiveRaceTick, config.LiveRaceStartDelay, rand.New(rand.NewSource(a.rng.Int63())), logger)
	a.runner.onUpdate = a.liveRaceUpdates.Publish
	a.runner.onFinish = a.handleRaceFinished

	a.detach = append(a.detach,
		client.OnStateChange(a.handleStateChange),
		client.AddMessageListener(a.handleMessage),
	)
	return a
}

// Init connects to url and switches to connected mode once open. An empty url
// selects mock mode.
func (a *SimulationAPI) Init(ctx context.Context, url string) error {
	if url == "" {
		a.reconnect.Disconnect()
		a.setMode(ModeMock)
		a.logger.Info("Simulation API running in mock mode")
		return nil
	}

	if err := a.reconnect.Connect(ctx, url); err != nil {
		return fmt.Errorf("init realtime connection: %w", err)
	}
	return nil
}

// Close stops the live race, disconnects and detaches from the client
func (a *SimulationAPI) Close() {
	a.StopLiveRaceSimulation()
	for _, fn := range a.detach {
		fn()
	}
	a.detach = nil
	a.reconnect.Close()
}

func (a *SimulationAPI) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *SimulationAPI) setMode(mode Mode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
}

func (a *SimulationAPI) ConnectionState() providers.ConnectionState {
	return a.client.State()
}

func (a *SimulationAPI) ConnectionStatus() providers.ConnectionStatus {
	return a.client.Status()
}

// GetAthletes returns the athlete roster, cache first
func (a *SimulationAPI) GetAthletes(ctx context.Context) ([]models.Athlete, error) {
	if cached, ok := Lookup[[]models.Athlete](ctx, a.cache, keyAthletes); ok {
		return models.CloneAthletes(cached), nil
	}

	var athletes []models.Athlete
	if a.Mode() == ModeConnected {
		resp, err := a.request(ctx, models.MsgRequestAthletes, models.MsgAthletesList, nil, a.config.ResponseTimeout, matchAny)
		if err != nil {
			return nil, err
		}
		if athletes, err = decodePayload[[]models.Athlete](resp); err != nil {
			return nil, err
		}
	} else {
		if err := sleepContext(ctx, a.config.MockDelay); err != nil {
			return nil, err
		}
		athletes = a.data.Athletes()
	}

	a.cache.Set(keyAthletes, athletes)
	return models.CloneAthletes(athletes), nil
}

// GetSessions returns run sessions, newest first, for one athlete or all of them
func (a *SimulationAPI) GetSessions(ctx context.Context, athleteID string) ([]models.RunSession, error) {
	key := sessionsKey(athleteID)
	if cached, ok := Lookup[[]models.RunSession](ctx, a.cache, key); ok {
		return models.CloneSessions(cached), nil
	}

	var sessions []models.RunSession
	if a.Mode() == ModeConnected {
		match := func(msg *models.Message) bool {
			list, err := decodePayload[models.SessionsList](msg)
			return err == nil && list.AthleteID == athleteID
		}
		resp, err := a.request(ctx, models.MsgRequestSessions, models.MsgSessionsList,
			models.SessionsRequest{AthleteID: athleteID}, a.config.ResponseTimeout, match)
		if err != nil {
			return nil, err
		}
		list, err := decodePayload[models.SessionsList](resp)
		if err != nil {
			return nil, err
		}
		sessions = list.Sessions
	} else {
		if err := sleepContext(ctx, a.config.MockDelay); err != nil {
			return nil, err
		}
		sessions = a.data.Sessions(athleteID)
	}

	a.cache.Set(key, sessions)
	return models.CloneSessions(sessions), nil
}

// RequestSimulation simulates a run for the athlete. Connected mode waits for the
// backend's result; mock mode computes it locally.
func (a *SimulationAPI) RequestSimulation(ctx context.Context, athleteID string, settings models.SimulationSettings) (*models.RunSession, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidInput, err)
	}
	log := a.logger.WithFields(logrus.Fields{"athlete_id": athleteID, "distance": settings.Distance})

	if a.Mode() == ModeConnected {
		match := func(msg *models.Message) bool {
			session, err := decodePayload[models.RunSession](msg)
			return err == nil && session.AthleteID == athleteID
		}
		resp, err := a.request(ctx, models.MsgRequestSimulation, models.MsgSimulationResult,
			models.SimulationRequest{AthleteID: athleteID, Settings: settings}, a.config.ResponseTimeout, match)
		if err != nil {
			return nil, err
		}
		session, err := decodePayload[models.RunSession](resp)
		if err != nil {
			return nil, err
		}
		return &session, nil
	}

	if _, ok := a.data.Athlete(athleteID); !ok {
		return nil, fmt.Errorf("athlete %s: %w", athleteID, utils.ErrNotFound)
	}
	if err := sleepContext(ctx, a.config.MockDelay); err != nil {
		return nil, err
	}

	a.rngMu.Lock()
	session := simulator.SimulateSession(athleteID, settings, a.rng, a.now())
	a.rngMu.Unlock()

	a.data.AddSession(*session)
	a.invalidateSessions(athleteID)
	log.WithField("time", session.Time).Info("Simulation completed")

	a.simulationResults.Publish(session)
	return session, nil
}

// GetProbabilityAnalysis estimates the chance of running targetTime. Unknown
// athletes yield utils.ErrNotFound.
func (a *SimulationAPI) GetProbabilityAnalysis(ctx context.Context, athleteID string, distance int, targetTime float64) (*models.ProbabilityAnalysis, error) {
	if distance <= 0 || targetTime <= 0 {
		return nil, fmt.Errorf("%w: distance and target time must be positive", utils.ErrInvalidInput)
	}

	key := probabilityKey(athleteID, distance, targetTime)
	if cached, ok := Lookup[*models.ProbabilityAnalysis](ctx, a.cache, key); ok && cached != nil {
		return cached.Clone(), nil
	}

	var analysis *models.ProbabilityAnalysis
	if a.Mode() == ModeConnected {
		match := func(msg *models.Message) bool {
			p, err := decodePayload[models.ProbabilityAnalysis](msg)
			return err == nil && p.AthleteID == athleteID && p.Distance == distance
		}
		resp, err := a.request(ctx, models.MsgRequestProbabilities, models.MsgProbabilityResults,
			models.ProbabilityRequest{AthleteID: athleteID, Distance: distance, TargetTime: targetTime}, a.config.ResponseTimeout, match)
		if err != nil {
			return nil, err
		}
		decoded, err := decodePayload[models.ProbabilityAnalysis](resp)
		if err != nil {
			return nil, err
		}
		analysis = &decoded
	} else {
		athlete, ok := a.data.Athlete(athleteID)
		if !ok {
			return nil, fmt.Errorf("athlete %s: %w", athleteID, utils.ErrNotFound)
		}
		precomputed, ok := a.data.Probability(athleteID, distance, targetTime)
		if ok {
			analysis = precomputed
		} else {
			a.rngMu.Lock()
			analysis = simulator.CalculateProbability(&athlete, distance, targetTime, a.data.Sessions(athleteID), a.rng)
			a.rngMu.Unlock()
		}
		a.probabilityResults.Publish(analysis.Clone())
	}

	a.cache.Set(key, analysis)
	return analysis.Clone(), nil
}

// GetRaceResults returns results for a distance. With an athlete id a race
// against the reference pool is generated in mock mode.
func (a *SimulationAPI) GetRaceResults(ctx context.Context, distance int, athleteID string) ([]models.RaceResult, error) {
	if distance <= 0 {
		return nil, fmt.Errorf("%w: distance must be positive", utils.ErrInvalidInput)
	}

	key := raceResultsKey(distance, athleteID)
	if cached, ok := Lookup[[]models.RaceResult](ctx, a.cache, key); ok {
		return append([]models.RaceResult(nil), cached...), nil
	}

	var results []models.RaceResult
	if a.Mode() == ModeConnected {
		match := func(msg *models.Message) bool {
			p, err := decodePayload[models.RaceResultsPayload](msg)
			return err == nil && p.Distance == distance && p.AthleteID == athleteID
		}
		resp, err := a.request(ctx, models.MsgRequestRaceResults, models.MsgRaceResults,
			models.RaceResultsRequest{Distance: distance, AthleteID: athleteID}, a.config.ResponseTimeout, match)
		if err != nil {
			return nil, err
		}
		payload, err := decodePayload[models.RaceResultsPayload](resp)
		if err != nil {
			return nil, err
		}
		results = payload.Results
	} else {
		if err := sleepContext(ctx, a.config.MockDelay); err != nil {
			return nil, err
		}
		if athleteID == "" {
			results, _ = a.data.RaceResults(distance)
		} else {
			athlete, ok := a.data.Athlete(athleteID)
			if !ok {
				return nil, fmt.Errorf("athlete %s: %w", athleteID, utils.ErrNotFound)
			}
			generated, err := a.generator.GenerateRaceWithCompetitors(athlete, distance, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", utils.ErrSimulationFailed, err)
			}
			results = generated
		}
	}

	if results == nil {
		results = []models.RaceResult{}
	}
	a.cache.Set(key, results)
	return append([]models.RaceResult(nil), results...), nil
}

// GetTopNProbabilities sums the athlete's finishing-position probabilities for
// each requested position set. The target time is the athlete's expected time.
func (a *SimulationAPI) GetTopNProbabilities(ctx context.Context, athleteID string, distance int, positionSets [][]int) ([]models.TopNProbability, error) {
	key := topNKey(athleteID, distance, positionSets)
	if cached, ok := Lookup[[]models.TopNProbability](ctx, a.cache, key); ok {
		return models.CloneTopN(cached), nil
	}

	athlete, err := a.findAthlete(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	target := math.Round(simulator.EstimateBaseTime(&athlete, distance)*100) / 100

	analysis, err := a.GetProbabilityAnalysis(ctx, athleteID, distance, target)
	if err != nil {
		return nil, err
	}

	results := make([]models.TopNProbability, 0, len(positionSets))
	for _, set := range positionSets {
		results = append(results, models.TopNProbability{
			Positions:   append([]int(nil), set...),
			Probability: simulator.CalculateTopNProbability(analysis.PositionProbabilities, set),
		})
	}

	a.cache.Set(key, results)
	return models.CloneTopN(results), nil
}

// StartLiveRaceSimulation stops any running race and starts a new one. Mock mode
// returns as soon as the starting snapshot is broadcast; connected mode waits for
// the backend to report the race as starting or running.
func (a *SimulationAPI) StartLiveRaceSimulation(ctx context.Context, distance int, athleteIDs []string) (string, error) {
	if distance <= 0 || len(athleteIDs) == 0 {
		return "", fmt.Errorf("%w: a live race needs a distance and at least one athlete", utils.ErrInvalidInput)
	}

	a.StopLiveRaceSimulation()

	if a.Mode() == ModeConnected {
		match := func(msg *models.Message) bool {
			race, err := decodePayload[models.LiveRaceData](msg)
			return err == nil && race.Status.IsActive()
		}
		resp, err := a.request(ctx, models.MsgRequestLiveRace, models.MsgLiveRaceUpdate,
			models.LiveRaceRequest{Distance: distance, AthleteIDs: athleteIDs}, a.config.LiveRaceStartTimeout, match)
		if err != nil {
			return "", err
		}
		race, err := decodePayload[models.LiveRaceData](resp)
		if err != nil {
			return "", err
		}
		return race.RaceID, nil
	}

	seen := make(map[string]bool, len(athleteIDs))
	competitors := make([]models.Athlete, 0, len(athleteIDs))
	for _, id := range athleteIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if athlete, ok := a.data.Athlete(id); ok {
			competitors = append(competitors, athlete)
		}
	}
	if len(competitors) == 0 {
		return "", fmt.Errorf("no known athletes in %v: %w", athleteIDs, utils.ErrNotFound)
	}

	race := simulator.NewLiveRace(uuid.New().String(), distance, competitors, a.now())
	a.runner.Start(race)
	return race.RaceID, nil
}

// StopLiveRaceSimulation cancels the running race, if any
func (a *SimulationAPI) StopLiveRaceSimulation() {
	if a.runner.Stop() {
		a.logger.Info("Live race simulation stopped")
	}
}

// LiveRaceActive returns the id of the running race
func (a *SimulationAPI) LiveRaceActive() (string, bool) {
	return a.runner.Active()
}

func (a *SimulationAPI) OnSimulationResult(fn func(session *models.RunSession)) func() {
	return a.simulationResults.Subscribe(fn)
}

func (a *SimulationAPI) OnRaceResults(fn func(results []models.RaceResult)) func() {
	return a.raceResults.Subscribe(fn)
}

func (a *SimulationAPI) OnLiveRaceUpdate(fn func(race *models.LiveRaceData)) func() {
	return a.liveRaceUpdates.Subscribe(fn)
}

func (a *SimulationAPI) OnProbabilityResults(fn func(analysis *models.ProbabilityAnalysis)) func() {
	return a.probabilityResults.Subscribe(fn)
}

func (a *SimulationAPI) OnNotification(fn func(n models.Notification)) func() {
	return a.notifications.Subscribe(fn)
}

func (a *SimulationAPI) findAthlete(ctx context.Context, athleteID string) (models.Athlete, error) {
	if a.Mode() == ModeMock {
		if athlete, ok := a.data.Athlete(athleteID); ok {
			return athlete, nil
		}
		return models.Athlete{}, fmt.Errorf("athlete %s: %w", athleteID, utils.ErrNotFound)
	}

	athletes, err := a.GetAthletes(ctx)
	if err != nil {
		return models.Athlete{}, err
	}
	for _, athlete := range athletes {
		if athlete.ID == athleteID {
			return athlete, nil
		}
	}
	return models.Athlete{}, fmt.Errorf("athlete %s: %w", athleteID, utils.ErrNotFound)
}

func (a *SimulationAPI) handleRaceFinished(race *models.LiveRaceData, results []models.RaceResult) {
	a.cache.Set(raceResultsKey(race.Distance, ""), results)
	a.raceResults.Publish(results)
}

func (a *SimulationAPI) handleStateChange(change providers.StateChange) {
	switch change.State {
	case providers.StateOpen:
		a.cache.InvalidateAll()
		a.setMode(ModeConnected)

		ctx, cancel := context.WithTimeout(context.Background(), a.config.ResponseTimeout)
		defer cancel()
		if err := a.client.Subscribe(ctx, a.config.Channel, nil); err != nil && !errors.Is(err, utils.ErrAlreadySubscribed) {
			a.logger.WithError(err).WithField("channel", a.config.Channel).Error("Failed to subscribe to simulation channel")
		}

		a.notifications.Publish(models.Notification{
			Level:   models.NotifySuccess,
			Title:   "Connected",
			Message: "Realtime connection established",
		})
	case providers.StateError:
		a.setMode(ModeMock)
		message := "Realtime connection failed"
		if change.Err != nil {
			message += ": " + change.Err.Reason
		}
		a.notifications.Publish(models.Notification{
			Level:   models.NotifyError,
			Title:   "Connection error",
			Message: message,
		})
	case providers.StateClosed:
		a.setMode(ModeMock)
		a.notifications.Publish(models.Notification{
			Level:   models.NotifyWarning,
			Title:   "Disconnected",
			Message: "Realtime connection closed",
		})
	}
}

// handleMessage dispatches pushes from the realtime channel
func (a *SimulationAPI) handleMessage(channel string, msg *models.Message) {
	a.resolvePending(msg)
	log := a.logger.WithFields(logrus.Fields{
		"channel":      channel,
		"message_type": msg.Type,
	})

	switch msg.Type {
	case models.MsgSimulationResult:
		session, err := decodePayload[models.RunSession](msg)
		if err != nil {
			log.WithError(err).Error("Malformed simulation result")
			return
		}
		a.invalidateSessions(session.AthleteID)
		a.simulationResults.Publish(&session)

	case models.MsgRaceResults:
		payload, err := decodePayload[models.RaceResultsPayload](msg)
		if err != nil {
			log.WithError(err).Error("Malformed race results")
			return
		}
		a.cache.Set(raceResultsKey(payload.Distance, payload.AthleteID), payload.Results)
		a.raceResults.Publish(payload.Results)

	case models.MsgLiveRaceUpdate:
		race, err := decodePayload[models.LiveRaceData](msg)
		if err != nil {
			log.WithError(err).Error("Malformed live race update")
			return
		}
		a.liveRaceUpdates.Publish(&race)

	case models.MsgProbabilityResults:
		analysis, err := decodePayload[models.ProbabilityAnalysis](msg)
		if err != nil {
			log.WithError(err).Error("Malformed probability results")
			return
		}
		a.cache.Set(probabilityKey(analysis.AthleteID, analysis.Distance, analysis.TargetTime), &analysis)
		a.probabilityResults.Publish(analysis.Clone())

	case models.MsgAthletesList:
		athletes, err := decodePayload[[]models.Athlete](msg)
		if err != nil {
			log.WithError(err).Error("Malformed athletes list, cache not updated")
			return
		}
		a.cache.Set(keyAthletes, athletes)

	case models.MsgSessionsList:
		list, err := decodePayload[models.SessionsList](msg)
		if err != nil {
			log.WithError(err).Error("Malformed sessions list, cache not updated")
			return
		}
		a.cache.Set(sessionsKey(list.AthleteID), list.Sessions)

	case models.MsgAthleteUpdate:
		update, err := decodePayload[models.EntityUpdate](msg)
		if err != nil {
			log.WithError(err).Error("Malformed athlete update")
			return
		}
		a.cache.Invalidate(keyAthletes)
		a.invalidateSessions(update.AthleteID)
		a.cache.InvalidatePrefix(probabilityKeyPrefix(update.AthleteID))
		a.cache.InvalidatePrefix(topNKeyPrefix(update.AthleteID))

	case models.MsgSessionUpdate:
		update, err := decodePayload[models.EntityUpdate](msg)
		if err != nil {
			log.WithError(err).Error("Malformed session update")
			return
		}
		a.invalidateSessions(update.AthleteID)

	case models.MsgError:
		payload, err := decodePayload[models.ErrorPayload](msg)
		if err != nil {
			log.WithError(err).Error("Malformed error message")
			return
		}
		log.WithFields(logrus.Fields{
			"code":       payload.Code,
			"request_id": msg.RequestID,
		}).Error(payload.Message)

	default:
		log.Debug("Ignoring unknown message type")
	}
}

// resolvePending hands msg to the waits it answers. A request id must match
// exactly; without one the wait's field matcher decides.
func (a *SimulationAPI) resolvePending(msg *models.Message) {
	a.mu.Lock()
	var matched []*pendingRequest
	for p := range a.pending {
		if p.responseType != msg.Type {
			continue
		}
		if msg.RequestID != "" {
			if msg.RequestID != p.requestID {
				continue
			}
		} else if p.match == nil || !p.match(msg) {
			continue
		}
		matched = append(matched, p)
		delete(a.pending, p)
	}
	a.mu.Unlock()

	for _, p := range matched {
		p.ch <- msg
	}
}

// request sends a tagged request and waits for the correlated push. The wait is
// always unregistered on return.
func (a *SimulationAPI) request(ctx context.Context, requestType, responseType models.MessageType, payload interface{}, timeout time.Duration, match func(msg *models.Message) bool) (*models.Message, error) {
	requestID := uuid.New().String()
	msg, err := models.NewMessage(requestType, payload, requestID)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", requestType, err)
	}

	p := &pendingRequest{
		responseType: responseType,
		requestID:    requestID,
		match:        match,
		ch:           make(chan *models.Message, 1),
	}
	a.mu.Lock()
	a.pending[p] = struct{}{}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, p)
		a.mu.Unlock()
	}()

	log := a.logger.WithFields(logrus.Fields{
		"request_id":   requestID,
		"message_type": requestType,
	})

	if err := a.client.Send(requestType, msg); err != nil {
		return nil, err
	}
	log.Debug("Awaiting correlated response")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-p.ch:
		return resp, nil
	case <-timer.C:
		log.WithField("timeout", timeout.String()).Warn("No response to realtime request")
		return nil, fmt.Errorf("%s after %s: %w", requestType, timeout, utils.ErrRequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PendingRequests counts correlated waits still registered
func (a *SimulationAPI) PendingRequests() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pending)
}

func (a *SimulationAPI) invalidateSessions(athleteID string) {
	a.cache.Invalidate(sessionsKey(athleteID))
	a.cache.Invalidate(sessionsKey(""))
}

func matchAny(*models.Message) bool { return true }

func decodePayload[T any](msg *models.Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, fmt.Errorf("%s: empty payload: %w", msg.Type, utils.ErrMalformedPayload)
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("%s: %v: %w", msg.Type, err, utils.ErrMalformedPayload)
	}
	return v, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cache key generators
func sessionsKey(athleteID string) string {
	if athleteID == "" {
		return "sessions:all"
	}
	return "sessions:" + athleteID
}

func raceResultsKey(distance int, athleteID string) string {
	if athleteID == "" {
		athleteID = "all"
	}
	return fmt.Sprintf("race-results:%d:%s", distance, athleteID)
}

func probabilityKeyPrefix(athleteID string) string {
	return "probability:" + athleteID + ":"
}

func probabilityKey(athleteID string, distance int, targetTime float64) string {
	return fmt.Sprintf("%s%d:%.2f", probabilityKeyPrefix(athleteID), distance, targetTime)
}

func topNKeyPrefix(athleteID string) string {
	return "topn:" + athleteID + ":"
}

func topNKey(athleteID string, distance int, positionSets [][]int) string {
	return fmt.Sprintf("%s%d:%v", topNKeyPrefix(athleteID), distance, positionSets)
}
