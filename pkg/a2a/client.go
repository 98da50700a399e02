package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// MaxRetries bounds the number of transport-level retry attempts for
	// a single Dispatch call. A second failure is treated as a genuine
	// outage rather than a blip worth retrying.
	MaxRetries = 1
	// RetryBackoffMin and RetryBackoffMax bound the jittered delay between
	// a failed attempt and its retry.
	RetryBackoffMin = 250 * time.Millisecond
	RetryBackoffMax = 750 * time.Millisecond
)

// Client dispatches Tasks to a single remote agent over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client targeting baseURL (e.g. "http://retriever:8081").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Card fetches the remote agent's discovery document.
func (c *Client) Card(ctx context.Context) (*Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/agent.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrKindTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d fetching agent card", ErrKindTransport, resp.StatusCode)
	}
	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("%s: decoding agent card: %w", ErrKindTransport, err)
	}
	return &card, nil
}

// Dispatch sends a Task to the remote agent and waits for its TaskResult.
// Transport failures (connection refused, non-2xx, timeout) are retried
// once after a jittered backoff; skill-level failures reported inside a
// TaskResult are returned as-is without retry, since the remote agent has
// already produced a definitive answer.
func (c *Client) Dispatch(ctx context.Context, task *Task) (*TaskResult, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.doDispatch(ctx, task)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if permanentErr, ok := err.(*backoff.PermanentError); ok {
			return nil, permanentErr.Unwrap()
		}
	}
	return nil, fmt.Errorf("%s: dispatch to %s failed after %d attempts: %w", ErrKindTransport, c.baseURL, MaxRetries+1, lastErr)
}

func (c *Client) doDispatch(ctx context.Context, task *Task) (*TaskResult, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshaling task: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err // transport-level, retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result TaskResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding task result: %w", err))
	}
	return &result, nil
}
