package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unquietwiki/changerawr-sub003/internal/circuitbreaker"
)

// ChangelogAPI is the narrow slice of the changelog write API this executor
// needs. Publishing an already-published entry must succeed without side
// effects; implementations own that idempotency.
type ChangelogAPI interface {
	PublishEntry(ctx context.Context, entryID string) error
}

// PublishExecutor publishes one changelog entry identified by the job's
// entity id.
type PublishExecutor struct {
	api    ChangelogAPI
	logger *zap.SugaredLogger
}

func NewPublishExecutor(api ChangelogAPI, logger *zap.SugaredLogger) *PublishExecutor {
	return &PublishExecutor{api: api, logger: logger.Named("publish")}
}

func (e *PublishExecutor) Execute(ctx context.Context, entityID string) error {
	if entityID == "" {
		return fmt.Errorf("publish: empty entry id")
	}
	if err := e.api.PublishEntry(ctx, entityID); err != nil {
		return fmt.Errorf("publish entry %s: %w", entityID, err)
	}
	e.logger.Infow("changelog entry published", "entry_id", entityID)
	return nil
}

const defaultAPITimeout = 30 * time.Second

// HTTPChangelogAPI publishes entries through the changelog service's HTTP API.
type HTTPChangelogAPI struct {
	client  *http.Client
	baseURL string
	token   string
	breaker *circuitbreaker.CircuitBreaker
}

func NewHTTPChangelogAPI(baseURL, token string) *HTTPChangelogAPI {
	return &HTTPChangelogAPI{
		client:  &http.Client{Timeout: defaultAPITimeout},
		baseURL: baseURL,
		token:   token,
	}
}

// WithBreaker guards publish calls with a circuit breaker keyed by base URL.
func (a *HTTPChangelogAPI) WithBreaker(cb *circuitbreaker.CircuitBreaker) *HTTPChangelogAPI {
	a.breaker = cb
	return a
}

// PublishEntry marks an entry published. A 409 from the API means the entry
// is already published and counts as success.
func (a *HTTPChangelogAPI) PublishEntry(ctx context.Context, entryID string) error {
	url := fmt.Sprintf("%s/api/changelog/entries/%s/publish", a.baseURL, entryID)

	if a.breaker != nil {
		if err := a.breaker.Allow(a.baseURL); err != nil {
			return fmt.Errorf("changelog api: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if a.breaker != nil {
			a.breaker.RecordFailure(a.baseURL)
		}
		return fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if a.breaker != nil {
			a.breaker.RecordSuccess(a.baseURL)
		}
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Already published. Idempotent success.
		if a.breaker != nil {
			a.breaker.RecordSuccess(a.baseURL)
		}
		return nil
	default:
		if a.breaker != nil {
			a.breaker.RecordFailure(a.baseURL)
		}
		return fmt.Errorf("publish request: unexpected status %d", resp.StatusCode)
	}
}
