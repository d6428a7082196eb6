package services

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/athletics-sim/internal/models"
	"github.com/stitts-dev/athletics-sim/internal/simulator"
)

// liveRaceRunner owns the tick loop of at most one live race
type liveRaceRunner struct {
	tick       time.Duration
	startDelay time.Duration
	logger     *logrus.Logger

	onUpdate func(race *models.LiveRaceData)
	onFinish func(race *models.LiveRaceData, results []models.RaceResult)

	mu         sync.Mutex
	rng        *rand.Rand
	cancel     context.CancelFunc
	generation uint64
	raceID     string
	loops      int32
}

func newLiveRaceRunner(tick, startDelay time.Duration, rng *rand.Rand, logger *logrus.Logger) *liveRaceRunner {
	return &liveRaceRunner{
		tick:       tick,
		startDelay: startDelay,
		rng:        rng,
		logger:     logger,
	}
}

// Start broadcasts the starting snapshot and launches the tick loop.
// Any running race is stopped first.
func (r *liveRaceRunner) Start(race *models.LiveRaceData) {
	r.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.cancel = cancel
	r.raceID = race.RaceID
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"race_id":  race.RaceID,
		"distance": race.Distance,
		"athletes": len(race.Athletes),
	}).Info("Live race starting")

	r.onUpdate(race.Clone())

	atomic.AddInt32(&r.loops, 1)
	go r.run(ctx, gen, race)
}

// Stop cancels the active tick loop without waiting for it. Safe to call from
// an update callback and when nothing is running.
func (r *liveRaceRunner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(r.generation)
}

func (r *liveRaceRunner) stopLocked(gen uint64) bool {
	if r.cancel == nil || gen != r.generation {
		return false
	}
	r.cancel()
	r.cancel = nil
	r.raceID = ""
	return true
}

// Active returns the id of the running race
func (r *liveRaceRunner) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raceID, r.cancel != nil
}

// RunningLoops counts tick goroutines that have not exited yet
func (r *liveRaceRunner) RunningLoops() int {
	return int(atomic.LoadInt32(&r.loops))
}

// publish broadcasts a snapshot if loop gen still owns the runner. It reports
// false once the loop has been stopped or replaced.
func (r *liveRaceRunner) publish(gen uint64, race *models.LiveRaceData) bool {
	r.mu.Lock()
	owned := r.cancel != nil && gen == r.generation
	var snapshot *models.LiveRaceData
	if owned {
		snapshot = race.Clone()
	}
	r.mu.Unlock()

	if !owned {
		return false
	}
	r.onUpdate(snapshot)
	return true
}

func (r *liveRaceRunner) run(ctx context.Context, gen uint64, race *models.LiveRaceData) {
	defer atomic.AddInt32(&r.loops, -1)
	log := r.logger.WithFields(logrus.Fields{
		"race_id":  race.RaceID,
		"distance": race.Distance,
	})

	if r.startDelay > 0 {
		delay := time.NewTimer(r.startDelay)
		select {
		case <-ctx.Done():
			delay.Stop()
			log.Debug("Live race cancelled before start")
			return
		case <-delay.C:
		}
	}

	if !race.Advance(models.RaceRunning) {
		log.WithField("status", race.Status).Warn("Live race cannot start from its current status")
		r.mu.Lock()
		r.stopLocked(gen)
		r.mu.Unlock()
		return
	}
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.WithField("elapsed", race.ElapsedTime).Info("Live race stopped")
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		finished := simulator.AdvanceRace(race, r.rng)
		r.mu.Unlock()

		if !finished {
			if !r.publish(gen, race) {
				return
			}
			continue
		}

		// the terminal tick clears the handle before it is broadcast
		r.mu.Lock()
		owned := r.stopLocked(gen)
		r.mu.Unlock()
		if !owned {
			return
		}

		snapshot := race.Clone()
		results := simulator.FinalResults(race)
		log.WithField("elapsed", race.ElapsedTime).Info("Live race finished")

		r.onUpdate(snapshot)
		r.onFinish(snapshot, results)
		return
	}
}
