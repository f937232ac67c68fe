package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/types"
)

// Executor runs a single test case
type Executor interface {
	Execute(ctx context.Context, params types.Params) (types.TestResult, error)
}

// ValidationCheck is a pure check over the supplied parameters
type ValidationCheck func(params types.Params) types.TestResult

// Execute implements Executor
func (v ValidationCheck) Execute(_ context.Context, params types.Params) (types.TestResult, error) {
	return v(params), nil
}

// PayloadFunc builds the probe payload from the test parameters
type PayloadFunc func(params types.Params) map[string]any

// IntegrationCheck calls an external endpoint through a Probe. A probe error or
// an unsuccessful response is returned as an *types.IntegrationError.
type IntegrationCheck struct {
	Endpoint string
	Probe    probe.Probe
	Payload  PayloadFunc
}

// Execute implements Executor
func (c IntegrationCheck) Execute(ctx context.Context, params types.Params) (types.TestResult, error) {
	if c.Probe == nil {
		return types.TestResult{}, &types.IntegrationError{Endpoint: c.Endpoint, Err: errors.New("no probe configured")}
	}

	payload := map[string]any(params)
	if c.Payload != nil {
		payload = c.Payload(params)
	}

	res, err := c.Probe.Invoke(ctx, c.Endpoint, payload)
	if err != nil {
		return types.TestResult{}, &types.IntegrationError{Endpoint: c.Endpoint, Err: err}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "endpoint reported failure"
		}
		return types.TestResult{Success: false, Message: msg, Data: res.Data},
			&types.IntegrationError{Endpoint: c.Endpoint, Err: errors.New(msg)}
	}
	return types.TestResult{
		Success: true,
		Message: fmt.Sprintf("%s responded successfully", c.Endpoint),
		Data:    res.Data,
	}, nil
}

// Entry is a registered test: static metadata, default parameters and executor
type Entry struct {
	Metadata types.TestMetadata
	Params   types.Params
	Executor Executor
}
