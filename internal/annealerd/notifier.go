package annealerd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
)

// CallbackSecretHeader carries the per-run callback secret
const CallbackSecretHeader = "X-Annealing-Callback-Secret"

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID           string               `json:"run_id"`
	Status          models.RunStatus     `json:"status"`
	CreatedAtUnixMs int64                `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                `json:"ended_at_unix_ms,omitempty"`
	Error           string               `json:"error,omitempty"`
	Energies        *models.EnergyReport `json:"output_parameters,omitempty"`
	Timestamp       int64                `json:"timestamp"`
}

// NotifierConfig configures callback delivery
type NotifierConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    utils.BackoffStrategy
	// AllowInternal permits loopback and private addresses, for local development
	AllowInternal bool
}

// Notifier posts run completion to client callback URLs
type Notifier struct {
	httpClient    *http.Client
	maxRetries    int
	backoff       utils.BackoffStrategy
	allowInternal bool
	wg            sync.WaitGroup
}

// NewNotifier creates a notifier; zero fields take 10s, 3 retries and exponential
// backoff from one second.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, false)
	}
	return &Notifier{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		maxRetries:    cfg.MaxRetries,
		backoff:       cfg.Backoff,
		allowInternal: cfg.AllowInternal,
	}
}

// Validate checks a callback URL before a run is accepted
func (n *Notifier) Validate(callbackURL string) error {
	if callbackURL == "" {
		return nil
	}
	return validateCallbackURL(callbackURL, n.allowInternal)
}

// Notify sends the run's final state to callbackURL in the background
func (n *Notifier) Notify(callbackURL, callbackSecret string, rec *RunRecord) {
	if callbackURL == "" {
		return
	}
	if rec == nil {
		logger.Warn("cannot notify: invalid run record", "callback_url", callbackURL)
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", url.PathEscape(rec.Run.ID))
	payload := NotificationPayload{
		RunID:           rec.Run.ID,
		Status:          rec.Run.Status,
		CreatedAtUnixMs: rec.Run.CreatedAtUnixMs,
		StartedAtUnixMs: rec.Run.StartedAtUnixMs,
		EndedAtUnixMs:   rec.Run.EndedAtUnixMs,
		Error:           rec.Run.Error,
		Timestamp:       utils.UnixMs(time.Now()),
	}
	if rec.Outputs != nil {
		payload.Energies = rec.Outputs.OutputParameters
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until every pending notification was delivered or given up
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) sendNotification(callbackURL, callbackSecret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "run_id", payload.RunID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification", "run_id", payload.RunID, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payloadJSON))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "annealing-core/1.0")
		if callbackSecret != "" {
			req.Header.Set(CallbackSecretHeader, callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed", "run_id", payload.RunID, "attempt", attempt+1, "error", err)
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent", "run_id", payload.RunID, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"response_body", string(body),
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"fd00:ec2::254":            true,
	"metadata.google.internal": true,
	"metadata":                 true,
}

func validateCallbackURL(raw string, allowInternal bool) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if metadataHosts[host] {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	if ip.IsUnspecified() {
		return fmt.Errorf("%w: %s", ErrInternalHost, host)
	}
	if !allowInternal && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
		return fmt.Errorf("%w: %s", ErrInternalHost, host)
	}
	return nil
}
