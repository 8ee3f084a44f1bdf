// Package soundcloud talks to the private SoundCloud web APIs with an OAuth
// token copied from a logged-in browser session.
//
// Two APIs are used: the REST api-v2 (profile and uploaded tracks with their
// public counters) and the GraphQL insights API (plays broken down by
// country, city and track). Neither is documented, so requests mimic the
// headers sent by the web clients.
package soundcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIBaseURL = "https://api-v2.soundcloud.com"
	DefaultGraphQLURL = "https://graph.soundcloud.com/graphql"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

	maxRetries   = 3
	maxBodyBytes = 16 << 20
	errBodyBytes = 500
)

var (
	ErrMissingToken   = errors.New("oauth token not set")
	ErrMalformedToken = errors.New("malformed oauth token, expected 2-XXXXXX-USERID-XXXX")
	ErrUnauthorized   = errors.New("authentication failed, the oauth token may have expired")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Body)
}

// ParseUserID extracts the numeric user ID embedded in the token.
func ParseUserID(token string) (string, error) {
	parts := strings.Split(token, "-")
	if len(parts) < 3 || parts[2] == "" {
		return "", ErrMalformedToken
	}

	return parts[2], nil
}

type Config struct {
	Token      string
	APIBaseURL string
	GraphQLURL string

	// Interval is the minimum spacing between two requests.
	Interval time.Duration
	Timeout  time.Duration

	Logger *zap.Logger
}

type Client struct {
	apiBaseURL string
	graphQLURL string

	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger

	backoff time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}

	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	log = log.With(zap.String("client", "soundcloud"))

	// The web clients send "Authorization: OAuth <token>".
	token := &oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "OAuth",
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   http.DefaultTransport,
		},
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "soundcloud-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// the upstream answered, the request itself was the problem
			var statusErr *StatusError
			return err == nil ||
				errors.Is(err, ErrUnauthorized) ||
				errors.Is(err, context.Canceled) ||
				(errors.As(err, &statusErr) && statusErr.StatusCode < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		graphQLURL: cfg.GraphQLURL,
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		cb:         cb,
		log:        log,
		backoff:    time.Second,
	}, nil
}

type requestFunc func(ctx context.Context) (*http.Request, error)

// do paces, executes and reads one request through the circuit breaker.
func (c *Client) do(ctx context.Context, newRequest requestFunc) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.cb.Execute(func() ([]byte, error) {
		resp, err := c.doWithRetry(ctx, newRequest)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden:
			return nil, ErrUnauthorized

		default:
			if len(body) > errBodyBytes {
				body = body[:errBodyBytes]
			}

			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
	})
}

func (c *Client) doWithRetry(ctx context.Context, newRequest requestFunc) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()

		if attempt == maxRetries {
			return nil, fmt.Errorf("%w after %d retries", ErrRateLimited, maxRetries)
		}

		delay := c.backoff * (1 << attempt)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				delay = time.Duration(seconds) * time.Second
			}
		}

		c.log.Warn("rate limited, retrying",
			zap.Duration("retry_delay", delay),
			zap.Int("attempt", attempt+1),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) getJSON(ctx context.Context, url string, result any) error {
	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Origin", "https://soundcloud.com")
		req.Header.Set("Referer", "https://soundcloud.com/")
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "*/*")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Apollographql-Client-Name", "insights-ui")
		req.Header.Set("Apollographql-Client-Version", "0.1.0")
		req.Header.Set("Origin", "https://insights-ui.soundcloud.com")
		req.Header.Set("Referer", "https://insights-ui.soundcloud.com/")
		req.Header.Set("User-Agent", userAgent)
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
