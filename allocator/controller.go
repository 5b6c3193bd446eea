package allocator

import (
	"context"
	"time"

	"oci-instance-grabber/metrics"

	"github.com/rs/zerolog/log"
)

// Default backoffs between attempts. Transient server-side errors clear
// quickly; anything else gets the long delay to avoid hot-looping on a
// request that will keep failing.
const (
	DefaultTransientBackoff = 20 * time.Second
	DefaultRejectedBackoff  = 60 * time.Second
)

// SubmitFunc submits one launch attempt. It is synchronous; the controller
// never runs two submissions concurrently.
type SubmitFunc func(ctx context.Context, c Candidate) Outcome

// Recorder persists failed attempts.
type Recorder interface {
	Record(f Failure) error
}

// Controller runs the acquisition loop: cycle through candidates, submit,
// record failures, back off, repeat until acquired or cancelled.
type Controller struct {
	recorder         Recorder
	transientBackoff time.Duration
	rejectedBackoff  time.Duration
}

// NewController builds a controller. Non-positive backoffs fall back to the
// defaults.
func NewController(r Recorder, transient, rejected time.Duration) *Controller {
	if transient <= 0 {
		transient = DefaultTransientBackoff
	}
	if rejected <= 0 {
		rejected = DefaultRejectedBackoff
	}
	return &Controller{recorder: r, transientBackoff: transient, rejectedBackoff: rejected}
}

func (c *Controller) backoffFor(cl Classification) time.Duration {
	if cl == Transient {
		return c.transientBackoff
	}
	return c.rejectedBackoff
}

// Run cycles through candidates in order, wrapping around after the last,
// until one submission succeeds or ctx is cancelled. Every failure is
// recorded and retried; a recorder write error is logged and does not stop
// the loop. The only error return is an empty candidate set, in which case
// no submission is ever made.
func (c *Controller) Run(ctx context.Context, candidates []Candidate, submit SubmitFunc) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoLocations
	}

	attempts := 0
	for i := 0; ; i = (i + 1) % len(candidates) {
		if ctx.Err() != nil {
			log.Info().Int("attempts", attempts).Msg("cancellation requested; stopping acquisition loop")
			return Result{Reason: ReasonCancelled, Attempts: attempts}, nil
		}

		cand := candidates[i]
		start := time.Now()
		out := submit(ctx, cand)
		attempts++
		metrics.AttemptDuration.Observe(time.Since(start).Seconds())

		if out.Failure == nil {
			metrics.LaunchAttemptsTotal.WithLabelValues("acquired").Inc()
			log.Info().
				Str("instanceId", out.InstanceID).
				Str("availabilityDomain", cand.AvailabilityDomain).
				Int("attempts", attempts).
				Msg("instance acquired")
			return Result{
				Reason:             ReasonAcquired,
				InstanceID:         out.InstanceID,
				AvailabilityDomain: cand.AvailabilityDomain,
				Attempts:           attempts,
			}, nil
		}

		f := *out.Failure
		metrics.LaunchAttemptsTotal.WithLabelValues(string(f.Classification)).Inc()
		log.Warn().
			Str("classification", string(f.Classification)).
			Int("status", f.StatusCode).
			Str("availabilityDomain", f.AvailabilityDomain).
			Msg(f.String())

		if err := c.recorder.Record(f); err != nil {
			// Recorder failures are non-fatal to the loop.
			log.Error().Err(err).Msg("failed to record launch failure")
		}

		backoff := c.backoffFor(f.Classification)
		metrics.BackoffsTotal.WithLabelValues(string(f.Classification)).Inc()
		log.Debug().Dur("backoff", backoff).Str("classification", string(f.Classification)).Msg("backing off before next attempt")
		if Sleep(ctx, backoff) == DelayInterrupted {
			log.Info().Int("attempts", attempts).Msg("interrupted during backoff; stopping acquisition loop")
			return Result{Reason: ReasonCancelled, Attempts: attempts}, nil
		}
	}
}
