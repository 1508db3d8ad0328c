package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/circuitbreaker"
)

type mockChangelogAPI struct {
	published []string
	err       error
}

func (m *mockChangelogAPI) PublishEntry(ctx context.Context, entryID string) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, entryID)
	return nil
}

func TestPublishExecutor_Execute(t *testing.T) {
	api := &mockChangelogAPI{}
	exec := NewPublishExecutor(api, zap.NewNop().Sugar())

	if err := exec.Execute(context.Background(), "entry-1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(api.published) != 1 || api.published[0] != "entry-1" {
		t.Errorf("expected entry-1 published, got %v", api.published)
	}
}

func TestPublishExecutor_EmptyEntityID(t *testing.T) {
	exec := NewPublishExecutor(&mockChangelogAPI{}, zap.NewNop().Sugar())

	if err := exec.Execute(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty entry id")
	}
}

func TestPublishExecutor_APIErrorPropagates(t *testing.T) {
	api := &mockChangelogAPI{err: errors.New("entry deleted")}
	exec := NewPublishExecutor(api, zap.NewNop().Sugar())

	err := exec.Execute(context.Background(), "entry-2")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "entry-2") {
		t.Errorf("expected entry id in error, got %q", err)
	}
}

func TestHTTPChangelogAPI_PublishEntry(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := NewHTTPChangelogAPI(srv.URL, "secret-token")
	if err := api.PublishEntry(context.Background(), "abc-123"); err != nil {
		t.Fatalf("PublishEntry failed: %v", err)
	}

	if gotPath != "/api/changelog/entries/abc-123/publish" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
}

func TestHTTPChangelogAPI_ConflictIsIdempotentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	api := NewHTTPChangelogAPI(srv.URL, "")
	if err := api.PublishEntry(context.Background(), "abc-123"); err != nil {
		t.Errorf("409 should count as success, got %v", err)
	}
}

func TestHTTPChangelogAPI_ServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	api := NewHTTPChangelogAPI(srv.URL, "")
	if err := api.PublishEntry(context.Background(), "abc-123"); err == nil {
		t.Error("expected error on 500")
	}
}

func TestHTTPChangelogAPI_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	api := NewHTTPChangelogAPI(srv.URL, "").WithBreaker(circuitbreaker.New(2, time.Minute))

	for i := 0; i < 2; i++ {
		if err := api.PublishEntry(context.Background(), "x"); err == nil {
			t.Fatalf("call %d should have failed", i)
		}
	}

	err := api.PublishEntry(context.Background(), "x")
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("open circuit must not reach the server, got %d calls", calls.Load())
	}
}
