package certs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unquietwiki/changerawr-sub003/internal/domain"
)

const defaultRenewTimeout = 2 * time.Minute

// HTTPRenewer drives renewals through the certificate service endpoint.
// The endpoint owns the issuance protocol; a renewal here is one POST that
// either returns the new validity window or fails.
type HTTPRenewer struct {
	client   *http.Client
	endpoint string
	token    string
}

func NewHTTPRenewer(endpoint, token string) *HTTPRenewer {
	return &HTTPRenewer{
		client:   &http.Client{Timeout: defaultRenewTimeout},
		endpoint: endpoint,
		token:    token,
	}
}

type renewRequest struct {
	Domain string `json:"domain"`
}

type renewResponse struct {
	Domain    string    `json:"domain"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *HTTPRenewer) Renew(ctx context.Context, domainName string) (domain.Certificate, error) {
	body, err := json.Marshal(renewRequest{Domain: domainName})
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("renew request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Certificate{}, fmt.Errorf("renew request: unexpected status %d", resp.StatusCode)
	}

	var result renewResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Certificate{}, fmt.Errorf("decode response: %w", err)
	}

	return domain.Certificate{
		Domain:    result.Domain,
		IssuedAt:  result.IssuedAt,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

var _ Renewer = (*HTTPRenewer)(nil)
