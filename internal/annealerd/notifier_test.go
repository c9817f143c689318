package annealerd

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		allowInternal bool
		errType       error
	}{
		{name: "valid external URL", url: "https://example.com/callback"},
		{name: "valid localhost for development", url: "http://localhost:8000/callback"},
		{name: "URL with run_id template", url: "http://localhost:8000/callback/{run_id}"},
		{name: "invalid scheme", url: "ftp://example.com/callback", errType: ErrInvalidURL},
		{name: "missing hostname", url: "http:///callback", errType: ErrInvalidURL},
		{name: "metadata endpoint - IP", url: "http://169.254.169.254/metadata", errType: ErrMetadataEndpoint},
		{name: "metadata endpoint - hostname", url: "http://metadata.google.internal/metadata", errType: ErrMetadataEndpoint},
		{name: "wildcard address", url: "http://0.0.0.0:8000/callback", errType: ErrInternalHost},
		{name: "wildcard address allowed internal", url: "http://0.0.0.0:8000/callback", allowInternal: true, errType: ErrInternalHost},
		{name: "direct loopback IP", url: "http://127.0.0.1:8000/callback", errType: ErrInternalHost},
		{name: "private IP", url: "http://10.1.2.3/callback", errType: ErrInternalHost},
		{name: "loopback allowed internal", url: "http://127.0.0.1:8000/callback", allowInternal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCallbackURL(tt.url, tt.allowInternal)
			if tt.errType == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.errType) {
				t.Fatalf("expected %v, got %v", tt.errType, err)
			}
		})
	}
}

type callbackRecorder struct {
	mu       sync.Mutex
	calls    int
	failures int
	payloads []NotificationPayload
	secrets  []string
	paths    []string
}

func (c *callbackRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	var p NotificationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.payloads = append(c.payloads, p)
	c.secrets = append(c.secrets, r.Header.Get(CallbackSecretHeader))
	c.paths = append(c.paths, r.URL.Path)
	w.WriteHeader(http.StatusNoContent)
}

func TestNotifierDeliversWithRetries(t *testing.T) {
	rec := &callbackRecorder{failures: 2}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := NewNotifier(NotifierConfig{
		AllowInternal: true,
		MaxRetries:    3,
		Backoff:       utils.NewConstantBackoff(5 * time.Millisecond),
	})
	n.Notify(srv.URL+"/hooks/{run_id}", "s3cret", &RunRecord{Run: Run{
		ID:              "run-1",
		Status:          models.RunStatusFailed,
		CreatedAtUnixMs: 1,
		Error:           "simulation stage failed",
	}})
	n.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", rec.calls)
	}
	if len(rec.payloads) != 1 {
		t.Fatalf("expected one delivered payload, got %d", len(rec.payloads))
	}
	p := rec.payloads[0]
	if p.RunID != "run-1" || p.Status != models.RunStatusFailed || p.Error != "simulation stage failed" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if rec.secrets[0] != "s3cret" {
		t.Fatalf("expected callback secret header, got %q", rec.secrets[0])
	}
	if rec.paths[0] != "/hooks/run-1" {
		t.Fatalf("expected run_id substituted in path, got %q", rec.paths[0])
	}
}

func TestNotifierGivesUp(t *testing.T) {
	rec := &callbackRecorder{failures: 100}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := NewNotifier(NotifierConfig{AllowInternal: true, MaxRetries: 1, Backoff: utils.NewConstantBackoff(time.Millisecond)})
	n.Notify(srv.URL, "", &RunRecord{Run: Run{ID: "run-1", Status: models.RunStatusCompleted}})
	n.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", rec.calls)
	}
}

func TestNotifierSkipsEmptyURL(t *testing.T) {
	n := NewNotifier(NotifierConfig{})
	n.Notify("", "", &RunRecord{Run: Run{ID: "run-1"}})
	n.Wait()
}

func TestExecutorNotifiesOnCompletion(t *testing.T) {
	rec := &callbackRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newDaemon(t, false)
	in := testInput(map[string]any{"temperature_list": []any{300}})
	in.CallbackURL = srv.URL + "/done"
	if _, err := d.store.Create("run-1", in); err != nil {
		t.Fatal(err)
	}
	if _, err := d.executor.Start("run-1"); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, d.store, "run-1", models.RunStatusCompleted)
	waitFor(t, "callback", func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.payloads) == 1
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	p := rec.payloads[0]
	if p.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}
	if p.Energies == nil || p.Energies.Len() != 2 {
		t.Fatalf("expected energy report with two entries, got %+v", p.Energies)
	}
}
