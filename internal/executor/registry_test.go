package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Lookup(domain.JobTypeTelemetrySend); ok {
		t.Error("lookup on empty registry should report false")
	}

	sentinel := errors.New("ran")
	reg.Register(domain.JobTypeTelemetrySend, Func(func(ctx context.Context, entityID string) error {
		return sentinel
	}))

	ex, ok := reg.Lookup(domain.JobTypeTelemetrySend)
	if !ok {
		t.Fatal("expected executor to be registered")
	}
	if err := ex.Execute(context.Background(), ""); !errors.Is(err, sentinel) {
		t.Errorf("expected the registered executor to run, got %v", err)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry()

	reg.Register(domain.JobTypePublishChangelogEntry, Func(func(ctx context.Context, entityID string) error {
		return errors.New("old")
	}))
	reg.Register(domain.JobTypePublishChangelogEntry, Func(func(ctx context.Context, entityID string) error {
		return nil
	}))

	ex, _ := reg.Lookup(domain.JobTypePublishChangelogEntry)
	if err := ex.Execute(context.Background(), ""); err != nil {
		t.Errorf("expected replacement executor, got %v", err)
	}
}

func TestRegistry_TypesStableOrder(t *testing.T) {
	reg := NewRegistry()
	noop := Func(func(ctx context.Context, entityID string) error { return nil })

	reg.Register(domain.JobTypeTelemetrySend, noop)
	reg.Register(domain.JobTypePublishChangelogEntry, noop)
	reg.Register(domain.JobTypeRenewSSLCertificate, noop)

	want := []domain.JobType{
		domain.JobTypePublishChangelogEntry,
		domain.JobTypeRenewSSLCertificate,
		domain.JobTypeTelemetrySend,
	}
	got := reg.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %d types, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
