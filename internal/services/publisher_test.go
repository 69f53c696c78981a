package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/graph"
)

// fakePublishAPI scripts the platform responses for PublishOne.
type fakePublishAPI struct {
	createID  string
	createErr error

	// statuses is consumed one entry per ContainerStatus call; the last
	// entry repeats once exhausted.
	statuses  []graph.ContainerState
	statusErr error

	// publishErrs is consumed one entry per PublishContainer call; nil
	// entries succeed with publishID.
	publishID   string
	publishErrs []error

	statusCalls  int
	publishCalls int
}

func (f *fakePublishAPI) CreateContainer(_ context.Context, _, _, _ string, _ domain.MediaKind) (string, error) {
	return f.createID, f.createErr
}

func (f *fakePublishAPI) ContainerStatus(context.Context, string) (graph.ContainerState, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	i := f.statusCalls - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakePublishAPI) PublishContainer(context.Context, string, string) (string, error) {
	f.publishCalls++
	if f.publishCalls <= len(f.publishErrs) {
		if err := f.publishErrs[f.publishCalls-1]; err != nil {
			return "", err
		}
	}
	return f.publishID, nil
}

// newTestPublisher wires a Publisher with a recording no-op sleep and a
// small poll budget so timeout paths stay fast.
func newTestPublisher(api PublishAPI) (*Publisher, *[]time.Duration) {
	var slept []time.Duration
	p := &Publisher{
		API:              api,
		Poll:             PollConfig{Interval: 4 * time.Second, ImageBudget: 20 * time.Second, VideoBudget: 40 * time.Second},
		PublishRetryMax:  3,
		PublishRetryBase: 15 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	return p, &slept
}

func notReadyErr() error {
	return &graph.PublishError{AccountID: "acc-1", Cause: &graph.APIError{Code: 9007, Message: "Media not ready"}}
}

func TestPublishOne_HappyPath(t *testing.T) {
	api := &fakePublishAPI{
		createID:  "ctr-1",
		statuses:  []graph.ContainerState{graph.StateReady},
		publishID: "post-9",
	}
	p, slept := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "Brand A", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if !out.Published {
		t.Fatalf("outcome not published: %+v", out)
	}
	if out.PostID != "post-9" {
		t.Errorf("PostID = %q, want post-9", out.PostID)
	}
	if out.Reason != "" {
		t.Errorf("Reason = %q, want empty", out.Reason)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want none on immediate readiness", *slept)
	}
	if got, want := out.Summary(), "Brand A: published (id post-9)"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestPublishOne_CreationFailure(t *testing.T) {
	api := &fakePublishAPI{createErr: &graph.CreationError{AccountID: "acc-1", Cause: errors.New("no id in response")}}
	p, _ := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if out.Published {
		t.Fatalf("outcome published despite creation failure: %+v", out)
	}
	if out.Reason != ReasonCreationFailed {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonCreationFailed)
	}
	if api.statusCalls != 0 || api.publishCalls != 0 {
		t.Errorf("status/publish called after failed creation: %d/%d", api.statusCalls, api.publishCalls)
	}
}

func TestPublishOne_PollsUntilReady(t *testing.T) {
	api := &fakePublishAPI{
		createID:  "ctr-1",
		statuses:  []graph.ContainerState{graph.StateProcessing, graph.StateProcessing, graph.StateReady},
		publishID: "post-1",
	}
	p, slept := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/v.mp4", "hi", domain.MediaVideo)
	if !out.Published {
		t.Fatalf("outcome not published: %+v", out)
	}
	if api.statusCalls != 3 {
		t.Errorf("statusCalls = %d, want 3", api.statusCalls)
	}
	for i, d := range *slept {
		if d != 4*time.Second {
			t.Errorf("sleep %d = %v, want 4s poll interval", i, d)
		}
	}
	if len(*slept) != 2 {
		t.Errorf("slept %d times, want 2", len(*slept))
	}
}

func TestPublishOne_ProcessingError(t *testing.T) {
	api := &fakePublishAPI{
		createID: "ctr-1",
		statuses: []graph.ContainerState{graph.StateProcessing, graph.StateError},
	}
	p, _ := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/v.mp4", "hi", domain.MediaVideo)
	if out.Published {
		t.Fatalf("outcome published despite processing error: %+v", out)
	}
	if out.Reason != ReasonProcessingError {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonProcessingError)
	}
	if api.publishCalls != 0 {
		t.Errorf("publish called after processing error")
	}
}

func TestPublishOne_ProcessingTimeout(t *testing.T) {
	api := &fakePublishAPI{
		createID: "ctr-1",
		statuses: []graph.ContainerState{graph.StateProcessing},
	}
	p, _ := newTestPublisher(api)

	// Image budget 20s / 4s interval = 5 poll attempts, then give up.
	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if out.Published {
		t.Fatalf("outcome published despite timeout: %+v", out)
	}
	if out.Reason != ReasonProcessingTimeout {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonProcessingTimeout)
	}
	if api.statusCalls != 5 {
		t.Errorf("statusCalls = %d, want 5", api.statusCalls)
	}
	if api.publishCalls != 0 {
		t.Errorf("publish called after timeout")
	}
}

func TestPublishOne_StatusQueryErrorTreatedAsProcessing(t *testing.T) {
	api := &fakePublishAPI{
		createID:  "ctr-1",
		statusErr: errors.New("502 from platform"),
	}
	p, _ := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if out.Published {
		t.Fatalf("outcome published despite status failures: %+v", out)
	}
	if out.Reason != ReasonProcessingTimeout {
		t.Errorf("Reason = %q, want %q (bad reads ride out the budget)", out.Reason, ReasonProcessingTimeout)
	}
	if api.statusCalls != 5 {
		t.Errorf("statusCalls = %d, want 5", api.statusCalls)
	}
}

func TestPublishOne_RetriesNotReadyThenPublishes(t *testing.T) {
	api := &fakePublishAPI{
		createID:    "ctr-1",
		statuses:    []graph.ContainerState{graph.StateReady},
		publishID:   "post-2",
		publishErrs: []error{notReadyErr(), notReadyErr(), nil},
	}
	p, slept := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/v.mp4", "hi", domain.MediaVideo)
	if !out.Published {
		t.Fatalf("outcome not published: %+v", out)
	}
	if api.publishCalls != 3 {
		t.Errorf("publishCalls = %d, want 3", api.publishCalls)
	}
	want := []time.Duration{15 * time.Second, 30 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestPublishOne_NotReadyExhaustsRetries(t *testing.T) {
	api := &fakePublishAPI{
		createID:    "ctr-1",
		statuses:    []graph.ContainerState{graph.StateReady},
		publishErrs: []error{notReadyErr(), notReadyErr(), notReadyErr()},
	}
	p, _ := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "Brand A", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if out.Published {
		t.Fatalf("outcome published despite retry exhaustion: %+v", out)
	}
	if out.Reason != ReasonPublishFailed {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonPublishFailed)
	}
	if api.publishCalls != 3 {
		t.Errorf("publishCalls = %d, want 3", api.publishCalls)
	}
	if got, want := out.Summary(), "Brand A: failed: publish failed"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestPublishOne_NonRetryablePublishErrorFailsFast(t *testing.T) {
	permErr := &graph.PublishError{AccountID: "acc-1", Cause: &graph.APIError{Code: 100, Message: "Invalid parameter"}}
	api := &fakePublishAPI{
		createID:    "ctr-1",
		statuses:    []graph.ContainerState{graph.StateReady},
		publishErrs: []error{permErr},
	}
	p, slept := newTestPublisher(api)

	out := p.PublishOne(context.Background(), "acc-1", "", "https://cdn.example.com/x.jpg", "hi", domain.MediaImage)
	if out.Published {
		t.Fatalf("outcome published despite permanent error: %+v", out)
	}
	if api.publishCalls != 1 {
		t.Errorf("publishCalls = %d, want 1 (no retry on permanent errors)", api.publishCalls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want none", *slept)
	}
}

func TestOutcomeSummary_FallsBackToAccountID(t *testing.T) {
	o := Outcome{AccountID: "17841400000000000", Published: true, PostID: "p1"}
	if got, want := o.Summary(), "17841400000000000: published (id p1)"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
