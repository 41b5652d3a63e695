package glpi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SessionConfig configures the session manager.
type SessionConfig struct {
	BaseURL   string
	AppToken  string
	UserToken string

	// TTL is how long GLPI keeps a session alive (default 1h).
	TTL time.Duration
	// RenewBuffer forces renewal this long before expiry (default 5m).
	RenewBuffer time.Duration

	MaxRetries  int
	BackoffUnit time.Duration
	HTTPTimeout time.Duration
}

func (c *SessionConfig) withDefaults() SessionConfig {
	out := *c
	if out.TTL <= 0 {
		out.TTL = time.Hour
	}
	if out.RenewBuffer <= 0 {
		out.RenewBuffer = 5 * time.Minute
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.BackoffUnit <= 0 {
		out.BackoffUnit = time.Second
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 5 * time.Second
	}
	return out
}

// SessionManager owns the GLPI session token lifecycle: acquire, hold,
// renew, tear down. All state transitions serialise on one mutex, so
// concurrent callers of Headers block until a single authentication
// completes: exactly one initSession per expiry cycle.
type SessionManager struct {
	cfg    SessionConfig
	httpc  *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	createdAt time.Time
	expiresAt time.Time
}

// NewSessionManager creates a session manager. No network traffic happens
// until the first Headers call.
func NewSessionManager(cfg SessionConfig, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.withDefaults()
	return &SessionManager{
		cfg:    c,
		httpc:  &http.Client{Timeout: c.HTTPTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Headers returns the authentication headers for an outbound GLPI call,
// authenticating first when no valid session exists.
func (m *SessionManager) Headers(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.validLocked() {
		if err := m.authenticateLocked(ctx); err != nil {
			return nil, err
		}
	}

	return map[string]string{
		"Session-Token": m.token,
		"App-Token":     m.cfg.AppToken,
		"Content-Type":  "application/json",
	}, nil
}

// Peek returns the current token without triggering authentication.
// Used by the status probe, which must stay cheap.
func (m *SessionManager) Peek() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return "", false
	}
	return m.token, true
}

// Invalidate drops the current session. Idempotent; called by the client
// when GLPI answers 401/403.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		m.logger.Info("Invalidating GLPI session")
	}
	m.token = ""
	m.createdAt = time.Time{}
	m.expiresAt = time.Time{}
}

// Close releases the session via killSession. Best-effort: errors are
// logged and swallowed, shutdown must not fail on them.
func (m *SessionManager) Close(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.token = ""
	m.createdAt = time.Time{}
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if token == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/killSession", nil)
	if err != nil {
		m.logger.Warn("killSession request build failed", "error", err)
		return
	}
	req.Header.Set("App-Token", m.cfg.AppToken)
	req.Header.Set("Session-Token", token)

	resp, err := m.httpc.Do(req)
	if err != nil {
		m.logger.Warn("killSession failed", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	m.logger.Info("GLPI session released", "status", resp.StatusCode)
}

// validLocked reports whether the held session is usable. A session is
// invalid when absent, within the renewal buffer of expiry, or created in
// the future (clock skew).
func (m *SessionManager) validLocked() bool {
	if m.token == "" {
		return false
	}
	now := m.now()
	if now.Before(m.createdAt) {
		return false
	}
	return now.Before(m.expiresAt.Add(-m.cfg.RenewBuffer))
}

type initSessionResponse struct {
	SessionToken string `json:"session_token"`
}

// authenticateLocked performs initSession with exponential backoff.
// Caller holds the mutex.
func (m *SessionManager) authenticateLocked(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.BackoffUnit
	bo.MaxInterval = 30 * m.cfg.BackoffUnit

	var token string
	operation := func() error {
		t, err := m.initSession(ctx)
		if err != nil {
			m.logger.Warn("initSession attempt failed", "error", err)
			return err
		}
		token = t
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(m.cfg.MaxRetries))
	if err := backoff.Retry(operation, policy); err != nil {
		return WrapError(KindAuthFailure, "authentication exhausted retries", err)
	}

	now := m.now()
	m.token = token
	m.createdAt = now
	m.expiresAt = now.Add(m.cfg.TTL)
	m.logger.Info("GLPI session established", "expires_at", m.expiresAt)
	return nil
}

func (m *SessionManager) initSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/initSession", nil)
	if err != nil {
		return "", fmt.Errorf("build initSession request: %w", err)
	}
	req.Header.Set("App-Token", m.cfg.AppToken)
	req.Header.Set("Authorization", "user_token "+m.cfg.UserToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("initSession: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read initSession response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("initSession returned HTTP %d", resp.StatusCode)
	}

	var parsed initSessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode initSession response: %w", err)
	}
	if parsed.SessionToken == "" {
		return "", fmt.Errorf("initSession response missing session_token")
	}
	return parsed.SessionToken, nil
}
