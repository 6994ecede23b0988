package rate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxRESTResponseSize = 64 << 10

// RESTCounter is a Counter that speaks the Upstash-style REST pipeline
// protocol: one POST carrying INCR, PEXPIRE NX, and PTTL for the key.
type RESTCounter struct {
	endpoint string
	token    string
	client   *http.Client
	prefix   string
}

type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewRESTCounter targets baseURL (without the /pipeline suffix). A nil client
// selects http.DefaultClient.
func NewRESTCounter(baseURL, token string, client *http.Client, prefix string) *RESTCounter {
	if client == nil {
		client = http.DefaultClient
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RESTCounter{
		endpoint: strings.TrimRight(baseURL, "/") + "/pipeline",
		token:    token,
		client:   client,
		prefix:   prefix,
	}
}

// Name implements Counter.
func (c *RESTCounter) Name() string {
	return BackendREST
}

// Increment implements Counter. Any transport error, non-2xx status, or
// per-command error is reported as ErrCounterUnavailable.
func (c *RESTCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.prefix + key
	body, err := json.Marshal([][]any{
		{"INCR", k},
		{"PEXPIRE", k, windowMillis(window), "NX"},
		{"PTTL", k},
	})
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRESTResponseSize))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, 0, fmt.Errorf("%w: status %d", ErrCounterUnavailable, resp.StatusCode)
	}

	var replies []restReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRESTResponseSize)).Decode(&replies); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCounterResponse, err)
	}
	if len(replies) != 3 {
		return 0, 0, fmt.Errorf("%w: expected 3 replies, got %d", ErrCounterResponse, len(replies))
	}
	for _, r := range replies {
		if r.Error != "" {
			return 0, 0, fmt.Errorf("%w: %s", ErrCounterUnavailable, r.Error)
		}
	}

	var count, ttl int64
	if err := json.Unmarshal(replies[0].Result, &count); err != nil {
		return 0, 0, fmt.Errorf("%w: count: %v", ErrCounterResponse, err)
	}
	if err := json.Unmarshal(replies[2].Result, &ttl); err != nil {
		return 0, 0, fmt.Errorf("%w: ttl: %v", ErrCounterResponse, err)
	}

	return count, time.Duration(ttl) * time.Millisecond, nil
}
