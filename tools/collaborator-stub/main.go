// collaborator-stub stands in for the three external services jobd talks to:
// the changelog API, the telemetry collector, and the certificate renewal
// endpoint. Point the jobd env vars at it for local development.
//
//	CHANGELOG_API_URL=http://localhost:9999
//	TELEMETRY_URL=http://localhost:9999/telemetry
//	CERT_RENEW_URL=http://localhost:9999/renew
//
// FAIL_PUBLISH, FAIL_TELEMETRY, and FAIL_RENEW force 500s to exercise the
// retry path. /stats shows everything received so far.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type request struct {
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Body      string `json:"body"`
}

type stats struct {
	Publishes    int64     `json:"publishes"`
	Snapshots    int64     `json:"snapshots"`
	Renewals     int64     `json:"renewals"`
	LastRequests []request `json:"last_requests"`
	Since        string    `json:"since"`
}

var (
	mu           sync.Mutex
	publishes    int64
	snapshots    int64
	renewals     int64
	lastRequests []request
	since        time.Time
	maxStored    = 50
)

func main() {
	since = time.Now().UTC()

	addr := ":9999"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/api/changelog/entries/", publishHandler)
	http.HandleFunc("/telemetry", telemetryHandler)
	http.HandleFunc("/renew", renewHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		publishes, snapshots, renewals = 0, 0, 0
		lastRequests = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("collaborator-stub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func record(r *http.Request, body string) {
	req := request{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
	}
	lastRequests = append(lastRequests, req)
	if len(lastRequests) > maxStored {
		lastRequests = lastRequests[len(lastRequests)-maxStored:]
	}
}

func publishHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if os.Getenv("FAIL_PUBLISH") != "" {
		log.Printf("publish rejected (FAIL_PUBLISH): %s", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	entryID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/changelog/entries/"), "/publish")

	mu.Lock()
	publishes++
	record(r, string(body))
	current := publishes
	mu.Unlock()

	log.Printf("publish #%d: entry=%s", current, entryID)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"published":%q}`, entryID)
}

func telemetryHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if os.Getenv("FAIL_TELEMETRY") != "" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	mu.Lock()
	snapshots++
	record(r, string(body))
	current := snapshots
	mu.Unlock()

	log.Printf("telemetry snapshot #%d: %s", current, string(body))
	w.WriteHeader(http.StatusAccepted)
}

func renewHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if os.Getenv("FAIL_RENEW") != "" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mu.Lock()
	renewals++
	record(r, req.Domain)
	current := renewals
	mu.Unlock()

	now := time.Now().UTC()
	log.Printf("renewal #%d: domain=%s", current, req.Domain)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"domain":     req.Domain,
		"issued_at":  now,
		"expires_at": now.Add(90 * 24 * time.Hour),
	})
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Publishes:    publishes,
		Snapshots:    snapshots,
		Renewals:     renewals,
		LastRequests: lastRequests,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
