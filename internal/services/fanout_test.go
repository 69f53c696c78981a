package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// fakeAccountPublisher scripts per-account outcomes.
type fakeAccountPublisher struct {
	mu    sync.Mutex
	calls []string
	// fail lists account IDs whose publish should fail.
	fail map[string]bool
}

func (f *fakeAccountPublisher) PublishOne(_ context.Context, accountID, accountName, _, _ string, _ domain.MediaKind) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, accountID)
	f.mu.Unlock()

	out := Outcome{AccountID: accountID, AccountName: accountName}
	if f.fail[accountID] {
		out.Reason = ReasonPublishFailed
		return out
	}
	out.Published = true
	out.PostID = "post-" + accountID
	return out
}

type fakeResolver struct {
	names map[string]string
	err   error
}

func (f *fakeResolver) DisplayNames(context.Context) (map[string]string, error) {
	return f.names, f.err
}

type fakeCleaner struct {
	calls int32
	err   error
	last  string
}

func (f *fakeCleaner) Destroy(_ context.Context, publicID string, _ domain.MediaKind) error {
	atomic.AddInt32(&f.calls, 1)
	f.last = publicID
	return f.err
}

type fakeAudit struct {
	calls   int
	results []string
	user    string
	err     error
}

func (f *fakeAudit) Append(_ context.Context, _ *gorm.DB, username string, _ []string, _ string, _ domain.MediaKind, results []string) (*domain.PostLog, error) {
	f.calls++
	f.user = username
	f.results = results
	return &domain.PostLog{}, f.err
}

func fanoutPost(accounts ...string) *domain.ScheduledPost {
	return &domain.ScheduledPost{
		ID:         "p-1",
		AccountIDs: domain.JoinIDList(accounts),
		Caption:    "launch day",
		MediaURL:   "https://cdn.example.com/x.jpg",
		StorageID:  "asset-1",
		MediaKind:  domain.MediaImage,
		Username:   "admin",
	}
}

func TestFanoutExecute_NoAccounts(t *testing.T) {
	f := NewFanout(nil, &fakeAccountPublisher{}, &fakeResolver{}, &fakeCleaner{}, &fakeAudit{})
	if _, err := f.Execute(context.Background(), fanoutPost()); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("Execute = %v, want ErrNoAccounts", err)
	}
}

func TestFanoutExecute_CancelledContext(t *testing.T) {
	cleaner := &fakeCleaner{}
	audit := &fakeAudit{}
	f := NewFanout(nil, &fakeAccountPublisher{}, &fakeResolver{}, cleaner, audit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Execute(ctx, fanoutPost("a1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute = %v, want context.Canceled", err)
	}
	if cleaner.calls != 0 || audit.calls != 0 {
		t.Errorf("side effects ran on a cancelled run: destroy=%d audit=%d", cleaner.calls, audit.calls)
	}
}

func TestFanoutExecute_OutcomesInStoredOrder(t *testing.T) {
	pub := &fakeAccountPublisher{}
	f := NewFanout(nil, pub, &fakeResolver{names: map[string]string{"a1": "One", "a2": "Two", "a3": "Three"}}, &fakeCleaner{}, &fakeAudit{})
	f.Workers = 2

	outcomes, err := f.Execute(context.Background(), fanoutPost("a1", "a2", "a3"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if outcomes[i].AccountID != want {
			t.Errorf("outcome %d is %q, want %q (stored order)", i, outcomes[i].AccountID, want)
		}
	}
	if outcomes[1].AccountName != "Two" {
		t.Errorf("AccountName = %q, want resolved name", outcomes[1].AccountName)
	}
}

func TestFanoutExecute_PartialFailureDoesNotAbortOthers(t *testing.T) {
	pub := &fakeAccountPublisher{fail: map[string]bool{"a2": true}}
	cleaner := &fakeCleaner{}
	audit := &fakeAudit{}
	f := NewFanout(nil, pub, &fakeResolver{}, cleaner, audit)

	outcomes, err := f.Execute(context.Background(), fanoutPost("a1", "a2", "a3"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcomes[0].Published || outcomes[1].Published || !outcomes[2].Published {
		t.Fatalf("published flags = %v %v %v, want true false true",
			outcomes[0].Published, outcomes[1].Published, outcomes[2].Published)
	}
	if len(pub.calls) != 3 {
		t.Errorf("publisher invoked %d times, want 3", len(pub.calls))
	}
}

func TestFanoutExecute_CleanupAndAuditExactlyOnce(t *testing.T) {
	pub := &fakeAccountPublisher{fail: map[string]bool{"a1": true, "a2": true}}
	cleaner := &fakeCleaner{}
	audit := &fakeAudit{}
	f := NewFanout(nil, pub, &fakeResolver{}, cleaner, audit)

	outcomes, err := f.Execute(context.Background(), fanoutPost("a1", "a2"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if cleaner.calls != 1 {
		t.Errorf("Destroy called %d times, want exactly 1", cleaner.calls)
	}
	if cleaner.last != "asset-1" {
		t.Errorf("Destroy public ID = %q, want asset-1", cleaner.last)
	}
	if audit.calls != 1 {
		t.Errorf("Append called %d times, want exactly 1", audit.calls)
	}
	if audit.user != "admin" {
		t.Errorf("audit username = %q, want admin", audit.user)
	}
	if len(audit.results) != len(outcomes) {
		t.Fatalf("audit rows = %d, want %d", len(audit.results), len(outcomes))
	}
	for i, line := range audit.results {
		if !strings.Contains(line, outcomes[i].AccountID) {
			t.Errorf("audit line %d = %q, missing account %q", i, line, outcomes[i].AccountID)
		}
	}
}

func TestFanoutExecute_CleanupFailureDoesNotFailRun(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("storage unreachable")}
	audit := &fakeAudit{}
	f := NewFanout(nil, &fakeAccountPublisher{}, &fakeResolver{}, cleaner, audit)

	outcomes, err := f.Execute(context.Background(), fanoutPost("a1"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcomes[0].Published {
		t.Errorf("outcome not published: %+v", outcomes[0])
	}
	if audit.calls != 1 {
		t.Errorf("audit skipped after cleanup failure")
	}
}

func TestFanoutExecute_ResolverFailureFallsBackToIDs(t *testing.T) {
	f := NewFanout(nil, &fakeAccountPublisher{}, &fakeResolver{err: errors.New("token expired")}, &fakeCleaner{}, &fakeAudit{})

	outcomes, err := f.Execute(context.Background(), fanoutPost("a1"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcomes[0].AccountName != "" {
		t.Errorf("AccountName = %q, want empty (Summary falls back to the ID)", outcomes[0].AccountName)
	}
	if got, want := outcomes[0].Summary(), "a1: published (id post-a1)"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
