// Package platform issues reply actions against the Instagram Graph API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/monuchauhan/InstaBot/core/config"
)

// Result identifies what the platform created.
type Result struct {
	ID string
}

// Client is the outbound half of the platform boundary.
type Client interface {
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) (Result, error)
	SendDirectMessage(ctx context.Context, accessToken, recipientID, text string) (Result, error)
}

const maxResponseBytes = 64 << 10

type graphClient struct {
	baseURL    string
	version    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewGraphClient builds a Client for the Graph API. Each call carries the
// configured timeout, waits on a shared rate limiter and goes through a circuit
// breaker that only counts transient failures.
func NewGraphClient(cfg config.PlatformConfig, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := *httpClient
	if cfg.CallTimeout > 0 {
		c.Timeout = cfg.CallTimeout
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &graphClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.APIVersion,
		httpClient: &c,
		limiter:    rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "instagram-graph",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// permanent failures say nothing about platform health
			IsSuccessful: func(err error) bool {
				return err == nil || !Retryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("platform circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (c *graphClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) (Result, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/replies?%s", c.baseURL, c.version, url.PathEscape(commentID),
		url.Values{"message": {text}}.Encode())
	body, err := c.do(ctx, accessToken, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: gjson.GetBytes(body, "id").String()}, nil
}

type messageRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

func (c *graphClient) SendDirectMessage(ctx context.Context, accessToken, recipientID, text string) (Result, error) {
	var req messageRequest
	req.Recipient.ID = recipientID
	req.Message.Text = text
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, &Error{Class: ClassPermanent, Err: fmt.Errorf("encoding message: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/%s/me/messages", c.baseURL, c.version)
	body, err := c.do(ctx, accessToken, endpoint, payload)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: gjson.GetBytes(body, "message_id").String()}, nil
}

func (c *graphClient) do(ctx context.Context, accessToken, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Class: ClassTransient, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, accessToken, endpoint, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Class: ClassTransient, Err: err}
		}
		return nil, err
	}
	return out.([]byte), nil
}

func (c *graphClient) post(ctx context.Context, accessToken, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return nil, &Error{Class: ClassPermanent, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// network errors, timeouts and cancellation all enter the retry path
		return nil, &Error{Class: ClassTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Class: ClassTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp.StatusCode, body)
	}
	return body, nil
}
