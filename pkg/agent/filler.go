package agent

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/escalation"
	"github.com/handoff-sh/handoff/pkg/metrics"
)

// fillerTask produces stall content at randomized intervals while an
// escalation is pending. One task per escalation; Stop cancels the task and
// joins it, so after Stop returns no further utterance can surface.
type fillerTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startFiller(log *zap.SugaredLogger, cfg config.Filler, model Model, escalationID, reason, details string, history []escalation.Turn) *fillerTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &fillerTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(ctx, log, cfg, model, escalationID, reason, details, history)
	return t
}

func (t *fillerTask) run(ctx context.Context, log *zap.SugaredLogger, cfg config.Filler, model Model, escalationID, reason, details string, history []escalation.Turn) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("panic in filler task recovered", "escalationID", escalationID, "panic", r)
		}
	}()

	// Let the escalation announcement finish before the first stall message.
	if !sleepCtx(ctx, time.Duration(cfg.InitialDelayMs)*time.Millisecond) {
		return
	}

	for sent := 0; sent < cfg.MaxMessages; sent++ {
		if ctx.Err() != nil {
			return
		}

		instructions, err := renderFillerInstructions(reason, details, history)
		if err != nil {
			log.Errorw("Failed to render filler instructions", "escalationID", escalationID, "error", err)
			return
		}

		text, err := model.Generate(ctx, instructions)
		if err != nil {
			log.Warnw("Filler generation failed", "escalationID", escalationID, "error", err)
			return
		}
		// The response may have arrived while generation was in flight; a
		// stale utterance must never be spoken after cancellation.
		if ctx.Err() != nil {
			return
		}
		if err := model.Speak(ctx, text); err != nil {
			log.Warnw("Filler speak failed", "escalationID", escalationID, "error", err)
			return
		}
		metrics.FillerMessages.Inc()
		log.Debugw("Filler message spoken", "escalationID", escalationID, "message", sent+1)

		if !sleepCtx(ctx, randomInterval(cfg)) {
			return
		}
	}
	log.Debugw("Filler budget exhausted", "escalationID", escalationID, "messages", cfg.MaxMessages)
}

// Stop cancels the task and blocks until it has fully stopped. Safe to call
// any number of times and from any goroutine.
func (t *fillerTask) Stop() {
	t.cancel()
	<-t.done
}

func randomInterval(cfg config.Filler) time.Duration {
	minMs := cfg.MinIntervalMs
	maxMs := cfg.MaxIntervalMs
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond // #nosec G404 -- pacing jitter, not crypto
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
