// Package probe abstracts the external payment-provider and database endpoints
// exercised by integration test cases.
package probe

import (
	"context"
	"fmt"
	"sync"
)

// Response is the outcome reported by an endpoint
type Response struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Probe invokes a named endpoint with a payload
type Probe interface {
	Invoke(ctx context.Context, endpoint string, payload map[string]any) (Response, error)
}

// FuncProbe adapts a function to the Probe interface
type FuncProbe func(ctx context.Context, endpoint string, payload map[string]any) (Response, error)

// Invoke implements Probe
func (f FuncProbe) Invoke(ctx context.Context, endpoint string, payload map[string]any) (Response, error) {
	return f(ctx, endpoint, payload)
}

// StaticProbe returns canned responses per endpoint and records every call.
// Endpoints without a canned response return an error.
type StaticProbe struct {
	mu        sync.Mutex
	responses map[string]Response
	errors    map[string]error
	calls     []Call
}

// Call records a single invocation of a StaticProbe
type Call struct {
	Endpoint string
	Payload  map[string]any
}

// NewStaticProbe creates an empty StaticProbe
func NewStaticProbe() *StaticProbe {
	return &StaticProbe{
		responses: make(map[string]Response),
		errors:    make(map[string]error),
	}
}

// Respond sets the response for endpoint
func (s *StaticProbe) Respond(endpoint string, res Response) *StaticProbe {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[endpoint] = res
	delete(s.errors, endpoint)
	return s
}

// Fail makes every call to endpoint return err
func (s *StaticProbe) Fail(endpoint string, err error) *StaticProbe {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[endpoint] = err
	return s
}

// Invoke implements Probe
func (s *StaticProbe) Invoke(ctx context.Context, endpoint string, payload map[string]any) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Endpoint: endpoint, Payload: payload})

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if err, ok := s.errors[endpoint]; ok {
		return Response{}, err
	}
	res, ok := s.responses[endpoint]
	if !ok {
		return Response{}, fmt.Errorf("no response configured for endpoint %q", endpoint)
	}
	return res, nil
}

// Calls returns a copy of the recorded calls
func (s *StaticProbe) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
