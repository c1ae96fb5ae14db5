// Package studyapi talks to the local study service that owns users and
// computes review schedules. Calls go through a circuit breaker so an
// unavailable service fails each item fast instead of timing out.
package studyapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/platform/config"
	"study_sync/internal/platform/metrics"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

type apiResponse struct {
	status int
	body   []byte
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[apiResponse]
	log        zerolog.Logger
}

func NewClient(cfg config.StudyConfig, log zerolog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		log:        log,
	}
	name := "study-service"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	c.breaker = gobreaker.NewCircuitBreaker[apiResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("event", "circuit_breaker").Str("from", from.String()).Str("to", to.String()).Msg("study service breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	} `json:"errors"`
}

func (e envelope) errorText() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, er := range e.Errors {
		msgs = append(msgs, er.Message)
	}
	return strings.Join(msgs, "; ")
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return env, nil
	}
	err := json.Unmarshal(body, &env)
	return env, err
}

// call sends one request through the breaker. Transport failures and 5xx
// count against the breaker; any other status is returned to the caller.
func (c *Client) call(ctx context.Context, method, path string, payload interface{}, bearer string) (apiResponse, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return apiResponse{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	resp, err := c.breaker.Execute(func() (apiResponse, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return apiResponse{}, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return apiResponse{}, err
		}
		defer res.Body.Close()
		body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return apiResponse{}, err
		}
		out := apiResponse{status: res.StatusCode, body: body}
		if res.StatusCode >= 500 {
			return out, fmt.Errorf("HTTP %d", res.StatusCode)
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apiResponse{}, fmt.Errorf("%s %s: %v: %w", method, path, err, common.ErrServiceUnavailable)
		}
		return resp, fmt.Errorf("%s %s: %v: %w", method, path, err, common.ErrRemoteService)
	}
	return resp, nil
}

// isAlreadyExists recognises the service's idempotent conflict signal.
func isAlreadyExists(r apiResponse) bool {
	return r.status == http.StatusConflict && strings.Contains(strings.ToLower(string(r.body)), "already exists")
}

func unexpectedStatus(op string, r apiResponse) error {
	msg := strings.TrimSpace(string(r.body))
	if env, err := decodeEnvelope(r.body); err == nil && len(env.Errors) > 0 {
		msg = env.errorText()
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%s: HTTP %d: %s: %w", op, r.status, msg, common.ErrRemoteService)
}

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
