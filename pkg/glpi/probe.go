package glpi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Probe statuses.
const (
	ProbeOnline  = "online"
	ProbeWarning = "warning"
	ProbeOffline = "offline"
)

// ProbeResult is the outcome of one liveness check.
type ProbeResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"response_time"` // milliseconds
	TokenValid   bool   `json:"token_valid"`
}

// TokenPeeker exposes the current session token without triggering
// authentication. Implemented by SessionManager.
type TokenPeeker interface {
	Peek() (string, bool)
}

// Probe is a cheap GLPI liveness check. It reuses an existing session token
// when one is valid and otherwise pings anonymously; it never authenticates.
type Probe struct {
	baseURL  string
	appToken string
	session  TokenPeeker
	httpc    *http.Client
	logger   *slog.Logger
}

// NewProbe creates a probe with a 1-second request timeout.
func NewProbe(baseURL, appToken string, session TokenPeeker, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		baseURL:  baseURL,
		appToken: appToken,
		session:  session,
		httpc:    &http.Client{Timeout: time.Second},
		logger:   logger,
	}
}

// Status checks GLPI reachability.
//
// With a valid session: getGlpiConfig, 200 → online, any other answer →
// warning. Without one: an anonymous GET of the API root, where 200/401/403
// all prove the server is up. Timeouts map to warning, transport errors to
// offline.
func (p *Probe) Status(ctx context.Context) ProbeResult {
	start := time.Now()
	token, valid := p.session.Peek()

	var (
		status  int
		err     error
		message string
	)
	if valid {
		status, err = p.get(ctx, p.baseURL+"/getGlpiConfig", token)
	} else {
		status, err = p.get(ctx, p.baseURL+"/", "")
	}
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if isTimeout(err) {
			return ProbeResult{Status: ProbeWarning, Message: "GLPI respondeu lentamente (timeout)", ResponseTime: elapsed, TokenValid: valid}
		}
		p.logger.Warn("GLPI probe transport error", "error", err)
		return ProbeResult{Status: ProbeOffline, Message: "GLPI inacessível: " + err.Error(), ResponseTime: elapsed, TokenValid: valid}
	}

	online := status == http.StatusOK
	if !valid {
		// Anonymous ping: an auth rejection still proves the server is up.
		online = online || status == http.StatusUnauthorized || status == http.StatusForbidden
	}

	if online {
		message = "GLPI operacional"
		return ProbeResult{Status: ProbeOnline, Message: message, ResponseTime: elapsed, TokenValid: valid}
	}
	return ProbeResult{Status: ProbeWarning, Message: "GLPI respondeu com status inesperado", ResponseTime: elapsed, TokenValid: valid}
}

func (p *Probe) get(ctx context.Context, url, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if token != "" {
		req.Header.Set("App-Token", p.appToken)
		req.Header.Set("Session-Token", token)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
