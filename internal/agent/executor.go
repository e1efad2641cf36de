package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fenwick-ai/agentcore/internal/backoff"
	"github.com/fenwick-ai/agentcore/internal/validation"
	"github.com/fenwick-ai/agentcore/pkg/models"
)

// AdapterConfig configures the tool adapter's per-call timeout, retry count,
// and backoff policy.
type AdapterConfig struct {
	// Timeout bounds a single execution attempt. Default: 30s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt fails
	// with a retryable error. Default: 2.
	MaxRetries int
	// Backoff is the policy used to space out retries. Default:
	// backoff.DefaultPolicy().
	Backoff backoff.Policy
	// Logger receives debug/warn events for retries and validation
	// failures. A nil Logger falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultAdapterConfig returns the adapter's default configuration.
func DefaultAdapterConfig() *AdapterConfig {
	return &AdapterConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    backoff.DefaultPolicy(),
	}
}

// Adapter is the Tool Adapter: it validates tool input against the tool's
// schema, executes the call with a bounded timeout and jittered exponential
// backoff retry, and normalizes the raw return value against the output
// schema before handing back a models.ToolResult.
type Adapter struct {
	registry *Registry
	config   *AdapterConfig

	metricsMu sync.Mutex
	metrics   AdapterMetrics
}

// AdapterMetrics tracks aggregate counts across all calls made through an
// Adapter.
type AdapterMetrics struct {
	TotalCalls    int64
	TotalRetries  int64
	TotalFailures int64
	TotalTimeouts int64
	TotalPanics   int64
}

// NewAdapter creates a tool adapter over registry. A nil config uses
// DefaultAdapterConfig.
func NewAdapter(registry *Registry, config *AdapterConfig) *Adapter {
	if config == nil {
		config = DefaultAdapterConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Adapter{registry: registry, config: config}
}

// Metrics returns a snapshot of the adapter's aggregate counters.
func (a *Adapter) Metrics() AdapterMetrics {
	a.metricsMu.Lock()
	defer a.metricsMu.Unlock()
	return a.metrics
}

// Call validates, executes (with retry/backoff/timeout), and normalizes a
// single tool call. It never returns a Go error for ordinary tool
// failures — those are reported through the returned ToolResult's
// ErrorCode/ErrorDetails per invariant I2 (ok implies schemaValidated); an
// unknown tool name is reported as an ErrCodeNotFound result. Call only
// returns an error when the tool's spec cannot be synthesized or the
// normalized input cannot be re-encoded.
func (a *Adapter) Call(ctx context.Context, call models.ToolCall) (*models.ToolResult, error) {
	start := time.Now()

	tool, ok := a.registry.Get(call.Name)
	if !ok {
		return &models.ToolResult{
			OK:           false,
			ErrorCode:    models.ErrCodeNotFound,
			ErrorDetails: fmt.Sprintf("tool not found: %s", call.Name),
			Attempt:      1,
			LatencyMS:    msSince(start),
		}, nil
	}

	spec, err := a.registry.Spec(call.Name)
	if err != nil {
		return nil, fmt.Errorf("synthesize tool spec: %w", err)
	}

	var inputInstance any
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &inputInstance); err != nil {
			return &models.ToolResult{
				OK:           false,
				ErrorCode:    models.ErrCodeInvalidInput,
				ErrorDetails: fmt.Sprintf("input is not valid JSON: %v", err),
				Attempt:      1,
				LatencyMS:    msSince(start),
			}, nil
		}
	} else {
		inputInstance = map[string]any{}
	}

	normalizedInput, verr := validation.ValidateAndNormalize(inputInstance, spec.InputSchema)
	if verr != nil {
		return &models.ToolResult{
			OK:           false,
			ErrorCode:    models.ErrCodeSchemaViolation,
			ErrorDetails: verr.Error(),
			Attempt:      1,
			LatencyMS:    msSince(start),
		}, nil
	}

	normalizedBytes, err := json.Marshal(normalizedInput)
	if err != nil {
		return nil, fmt.Errorf("re-encode normalized input: %w", err)
	}

	return a.executeWithRetry(ctx, tool, call, normalizedBytes, spec, start), nil
}

// executeWithRetry runs the tool, retrying on classified-retryable errors
// up to config.MaxRetries times with backoff between attempts.
func (a *Adapter) executeWithRetry(ctx context.Context, tool Tool, call models.ToolCall, input json.RawMessage, spec *models.ToolSpec, start time.Time) *models.ToolResult {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= a.config.MaxRetries+1; attempt++ {
		attempts = attempt
		a.bump(&a.metrics.TotalCalls, 1)

		output, err := a.executeOnce(ctx, tool, call, input)
		if err == nil {
			normalizedOutput, nerr := validation.ValidateAndNormalize(jsonAny(output), spec.OutputSchema)
			if nerr != nil {
				return &models.ToolResult{
					OK:              false,
					Data:            output,
					ErrorCode:       models.ErrCodeSchemaViolation,
					ErrorDetails:    nerr.Error(),
					SchemaValidated: false,
					Attempt:         attempt,
					LatencyMS:       msSince(start),
				}
			}
			data, _ := json.Marshal(normalizedOutput)
			return &models.ToolResult{
				OK:              true,
				Data:            data,
				SchemaValidated: true,
				Attempt:         attempt,
				LatencyMS:       msSince(start),
			}
		}

		lastErr = err

		if !IsRetryable(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt > a.config.MaxRetries {
			break
		}

		a.bump(&a.metrics.TotalRetries, 1)
		a.config.Logger.Debug("retrying tool call", "tool", call.Name, "attempt", attempt, "error", err)

		delay := backoff.Compute(a.config.Backoff, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = NewToolError(call.Name, ctx.Err()).WithCode(models.ErrCodeTimeout)
		}
	}

	a.bump(&a.metrics.TotalFailures, 1)
	toolErr, _ := GetToolError(lastErr)
	code := models.ErrCodeInternal
	details := lastErr.Error()
	if toolErr != nil {
		code = toolErr.Code
		if code == models.ErrCodeTimeout {
			a.bump(&a.metrics.TotalTimeouts, 1)
		}
	}

	return &models.ToolResult{
		OK:           false,
		ErrorCode:    code,
		ErrorDetails: details,
		Attempt:      attempts,
		LatencyMS:    msSince(start),
	}
}

// executeOnce runs a single attempt under a per-attempt timeout, recovering
// from panics and classifying the resulting error.
func (a *Adapter) executeOnce(ctx context.Context, tool Tool, call models.ToolCall, input json.RawMessage) (json.RawMessage, error) {
	execCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	type outcome struct {
		data json.RawMessage
		err  error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				a.bump(&a.metrics.TotalPanics, 1)
				err := NewToolError(call.Name, fmt.Errorf("panic: %v\n%s", r, stack)).WithCode(models.ErrCodeInternal)
				resultCh <- outcome{err: err}
			}
		}()
		data, err := tool.Execute(execCtx, input)
		if err != nil {
			resultCh <- outcome{err: NewToolError(call.Name, err).WithToolCallID(call.ID)}
			return
		}
		resultCh <- outcome{data: data}
	}()

	select {
	case res := <-resultCh:
		return res.data, res.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, NewToolError(call.Name, ctx.Err()).WithCode(models.ErrCodeTimeout).WithToolCallID(call.ID)
		}
		return nil, NewToolError(call.Name, ErrToolTimeout).WithCode(models.ErrCodeTimeout).
			WithToolCallID(call.ID).
			WithMessage(fmt.Sprintf("execution timed out after %s", a.config.Timeout))
	}
}

func (a *Adapter) bump(counter *int64, n int64) {
	a.metricsMu.Lock()
	*counter += n
	a.metricsMu.Unlock()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func jsonAny(data json.RawMessage) any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return map[string]any{}
	}
	return v
}
