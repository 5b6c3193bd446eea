package allocator

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRecorder struct {
	failures []Failure
	err      error
}

func (r *fakeRecorder) Record(f Failure) error {
	r.failures = append(r.failures, f)
	return r.err
}

func failWith(status int, ad string) Outcome {
	return Outcome{Failure: &Failure{
		Classification:     Classify(status),
		StatusCode:         status,
		Message:            "rejected",
		Timestamp:          time.Now(),
		AvailabilityDomain: ad,
	}}
}

func testCandidates(ads ...string) []Candidate {
	tmpl := Template{Shape: "VM.Standard.A1.Flex", DisplayName: "Armz0"}
	out := make([]Candidate, 0, len(ads))
	for _, ad := range ads {
		out = append(out, Candidate{Template: tmpl, AvailabilityDomain: ad})
	}
	return out
}

func TestNewController_Defaults(t *testing.T) {
	tests := []struct {
		name          string
		transient     time.Duration
		rejected      time.Duration
		wantTransient time.Duration
		wantRejected  time.Duration
	}{
		{name: "zero falls back to defaults", wantTransient: DefaultTransientBackoff, wantRejected: DefaultRejectedBackoff},
		{name: "explicit kept", transient: time.Second, rejected: 2 * time.Second, wantTransient: time.Second, wantRejected: 2 * time.Second},
		{name: "negative falls back", transient: -time.Second, rejected: -time.Second, wantTransient: DefaultTransientBackoff, wantRejected: DefaultRejectedBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(&fakeRecorder{}, tt.transient, tt.rejected)
			if c.transientBackoff != tt.wantTransient || c.rejectedBackoff != tt.wantRejected {
				t.Errorf("NewController() backoffs got=(%v,%v) want=(%v,%v)",
					c.transientBackoff, c.rejectedBackoff, tt.wantTransient, tt.wantRejected)
			}
		})
	}
}

func TestController_backoffFor(t *testing.T) {
	c := NewController(&fakeRecorder{}, 0, 0)
	tests := []struct {
		name string
		cl   Classification
		want time.Duration
	}{
		{"transient gets short backoff", Transient, DefaultTransientBackoff},
		{"rejected gets long backoff", Rejected, DefaultRejectedBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.backoffFor(tt.cl); got != tt.want {
				t.Errorf("backoffFor(%v) got=%v want=%v", tt.cl, got, tt.want)
			}
		})
	}
}

func TestController_Run_EmptyCandidates(t *testing.T) {
	c := NewController(&fakeRecorder{}, time.Millisecond, time.Millisecond)
	calls := 0
	_, err := c.Run(context.Background(), nil, func(ctx context.Context, cand Candidate) Outcome {
		calls++
		return Outcome{InstanceID: "never"}
	})
	if !errors.Is(err, ErrNoLocations) {
		t.Fatalf("Run() err=%#v want=%#v", err, ErrNoLocations)
	}
	if calls != 0 {
		t.Fatalf("Run() made %d submissions on empty candidate set", calls)
	}
}

// Two 500s, then success: both failures recorded as transient, handle comes
// from the third candidate.
func TestController_Run_AcquiredAfterTransientFailures(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewController(rec, time.Millisecond, time.Millisecond)
	candidates := testCandidates("ad-1", "ad-2", "ad-3")

	calls := 0
	res, err := c.Run(context.Background(), candidates, func(ctx context.Context, cand Candidate) Outcome {
		calls++
		if calls <= 2 {
			return failWith(500, cand.AvailabilityDomain)
		}
		return Outcome{InstanceID: "ocid1.instance.oc1..xyz"}
	})
	if err != nil {
		t.Fatalf("Run() unexpected err: %#v", err)
	}
	if res.Reason != ReasonAcquired || res.InstanceID != "ocid1.instance.oc1..xyz" || res.AvailabilityDomain != "ad-3" {
		t.Fatalf("Run() result mismatch: %#v", res)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts got=%d want=3", res.Attempts)
	}
	if len(rec.failures) != 2 {
		t.Fatalf("recorded failures got=%d want=2", len(rec.failures))
	}
	for i, f := range rec.failures {
		if f.Classification != Transient {
			t.Errorf("failure[%d] classification got=%#v want=%#v", i, f.Classification, Transient)
		}
	}
}

// Single candidate rejected forever; cancellation during the backoff must
// end the run cleanly instead of surfacing an error.
func TestController_Run_CancelledDuringBackoff(t *testing.T) {
	rec := &fakeRecorder{}
	// Long backoff so the run can only finish via interruption.
	c := NewController(rec, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	res, err := c.Run(ctx, testCandidates("ad-1"), func(ctx context.Context, cand Candidate) Outcome {
		calls++
		if calls == 3 {
			cancel()
		}
		return failWith(409, cand.AvailabilityDomain)
	})
	if err != nil {
		t.Fatalf("Run() unexpected err: %#v", err)
	}
	if res.Reason != ReasonCancelled {
		t.Fatalf("Run() reason got=%#v want=%#v", res.Reason, ReasonCancelled)
	}
	if calls != 3 {
		t.Errorf("submissions after cancel: calls=%d want=3", calls)
	}
	for i, f := range rec.failures {
		if f.Classification != Rejected {
			t.Errorf("failure[%d] classification got=%#v want=%#v", i, f.Classification, Rejected)
		}
	}
}

func TestController_Run_CancelledBeforeFirstSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewController(&fakeRecorder{}, time.Millisecond, time.Millisecond)
	calls := 0
	res, err := c.Run(ctx, testCandidates("ad-1"), func(ctx context.Context, cand Candidate) Outcome {
		calls++
		return Outcome{InstanceID: "never"}
	})
	if err != nil {
		t.Fatalf("Run() unexpected err: %#v", err)
	}
	if res.Reason != ReasonCancelled || calls != 0 {
		t.Fatalf("Run() got reason=%#v calls=%d; want cancelled with no submissions", res.Reason, calls)
	}
}

// Consecutive failures must rotate through all availability domains instead
// of hammering one.
func TestController_Run_RoundRobin(t *testing.T) {
	c := NewController(&fakeRecorder{}, time.Millisecond, time.Millisecond)
	candidates := testCandidates("ad-1", "ad-2", "ad-3")

	var order []string
	res, err := c.Run(context.Background(), candidates, func(ctx context.Context, cand Candidate) Outcome {
		order = append(order, cand.AvailabilityDomain)
		if len(order) < 5 {
			return failWith(503, cand.AvailabilityDomain)
		}
		return Outcome{InstanceID: "ocid1.instance.oc1..abc"}
	})
	if err != nil || res.Reason != ReasonAcquired {
		t.Fatalf("Run() res=%#v err=%#v", res, err)
	}
	want := []string{"ad-1", "ad-2", "ad-3", "ad-1", "ad-2"}
	if len(order) != len(want) {
		t.Fatalf("order length got=%d want=%d (%#v)", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] got=%#v want=%#v", i, order[i], want[i])
		}
	}
	for i := 1; i < len(order); i++ {
		if order[i] == order[i-1] {
			t.Errorf("same availability domain submitted twice in a row at %d: %#v", i, order)
		}
	}
}

// A recorder write failure is reported but never stops the loop.
func TestController_Run_RecorderErrorNonFatal(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	c := NewController(rec, time.Millisecond, time.Millisecond)

	calls := 0
	res, err := c.Run(context.Background(), testCandidates("ad-1", "ad-2"), func(ctx context.Context, cand Candidate) Outcome {
		calls++
		if calls < 3 {
			return failWith(500, cand.AvailabilityDomain)
		}
		return Outcome{InstanceID: "ocid1.instance.oc1..ok"}
	})
	if err != nil {
		t.Fatalf("Run() unexpected err: %#v", err)
	}
	if res.Reason != ReasonAcquired || calls != 3 {
		t.Fatalf("Run() reason=%#v calls=%d; loop should have survived recorder errors", res.Reason, calls)
	}
	if len(rec.failures) != 2 {
		t.Errorf("recorder invocations got=%d want=2", len(rec.failures))
	}
}
