// Package hostcall implements the policy-gated HTTP connector. It is a
// producer for the scheduler: every finished request becomes exactly one
// HostcallComplete outcome (or, for streaming requests, a chunk sequence
// ending in one final chunk), delivered through the host's single-writer
// funnel rather than by touching the scheduler directly.
package hostcall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/me/exthost/internal/sched"
)

// streamChunkSize is the read granularity for streaming responses.
const streamChunkSize = 32 * 1024

// Request describes one outbound host call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Submitter delivers an ingestion operation to the scheduler's owning
// goroutine. internal/host provides the production implementation.
type Submitter func(op func(*sched.Scheduler))

// Connector executes host calls and feeds their outcomes back into the
// event loop. All its own operations are total: policy violations and
// transport failures become Error outcomes, never Go errors to the caller.
type Connector struct {
	policy Policy
	client *http.Client
	submit Submitter
	logger *slog.Logger
}

// New creates a connector. The client timeout is left to the per-request
// context so that the policy's Timeout is the single knob.
func New(policy Policy, submit Submitter, logger *slog.Logger) *Connector {
	return &Connector{
		policy: policy,
		client: &http.Client{},
		submit: submit,
		logger: logger.With("component", "hostcall"),
	}
}

// Do executes a non-streaming request asynchronously. Exactly one
// HostcallComplete outcome is submitted for callID: Success with the
// status and body, or Error with a stable code.
func (c *Connector) Do(ctx context.Context, callID string, req Request) {
	if v := c.policy.check(req.URL); v != nil {
		c.logger.Debug("request rejected", "call_id", callID, "code", v.code)
		c.complete(callID, sched.ErrorOutcome(v.code, v.message))
		return
	}

	go func() {
		outcome := c.execute(ctx, callID, req)
		c.complete(callID, outcome)
	}()
}

// DoStream executes a streaming request asynchronously. The response body
// is delivered as StreamChunk outcomes with a per-call monotonic sequence;
// exactly one trailing chunk carries IsFinal, whether the stream ended
// normally, overflowed the body cap, or failed mid-read (the final chunk
// then carries an error field instead of data).
func (c *Connector) DoStream(ctx context.Context, callID string, req Request) {
	if v := c.policy.check(req.URL); v != nil {
		c.logger.Debug("stream rejected", "call_id", callID, "code", v.code)
		c.streamChunk(callID, 0, map[string]any{"error": v.code, "message": v.message}, true)
		return
	}

	go c.executeStream(ctx, callID, req)
}

func (c *Connector) complete(callID string, outcome sched.Outcome) {
	c.submit(func(s *sched.Scheduler) {
		s.EnqueueHostcallComplete(callID, outcome)
	})
}

func (c *Connector) streamChunk(callID string, sequence uint64, chunk any, isFinal bool) {
	c.submit(func(s *sched.Scheduler) {
		s.EnqueueStreamChunk(callID, sequence, chunk, isFinal)
	})
}

func (c *Connector) execute(ctx context.Context, callID string, req Request) sched.Outcome {
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return errOutcome(err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if c.policy.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, c.policy.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return errOutcome(err)
	}
	if c.policy.MaxBodyBytes > 0 && int64(len(body)) > c.policy.MaxBodyBytes {
		return sched.ErrorOutcome(CodeTooLarge,
			fmt.Sprintf("response body exceeds %d bytes", c.policy.MaxBodyBytes))
	}

	c.logger.Debug("request complete", "call_id", callID, "status", resp.StatusCode, "bytes", len(body))
	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return sched.SuccessOutcome(map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    string(body),
	})
}

func (c *Connector) executeStream(ctx context.Context, callID string, req Request) {
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		o := errOutcome(err)
		c.streamChunk(callID, 0, map[string]any{"error": o.Code, "message": o.Message}, true)
		return
	}
	defer resp.Body.Close()

	var sequence uint64
	var total int64
	buf := make([]byte, streamChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			total += int64(n)
			if c.policy.MaxBodyBytes > 0 && total > c.policy.MaxBodyBytes {
				c.streamChunk(callID, sequence, map[string]any{
					"error":   CodeTooLarge,
					"message": fmt.Sprintf("stream exceeds %d bytes", c.policy.MaxBodyBytes),
				}, true)
				return
			}
			done := errors.Is(err, io.EOF)
			c.streamChunk(callID, sequence, string(buf[:n]), done)
			sequence++
			if done {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Zero-byte EOF: close the stream with an empty final chunk.
				c.streamChunk(callID, sequence, "", true)
				return
			}
			o := errOutcome(err)
			c.streamChunk(callID, sequence, map[string]any{"error": o.Code, "message": o.Message}, true)
			return
		}
	}
}

func (c *Connector) roundTrip(ctx context.Context, req Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return c.client.Do(httpReq)
}

// errOutcome maps a transport error onto a stable outcome code.
func errOutcome(err error) sched.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return sched.ErrorOutcome(CodeTimeout, "request deadline elapsed")
	}
	return sched.ErrorOutcome(CodeNetwork, err.Error())
}
