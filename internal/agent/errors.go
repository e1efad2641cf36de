package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fenwick-ai/agentcore/pkg/models"
)

// Sentinel errors for tool-adapter and turn-loop conditions. The registry
// wraps ErrToolNotFound and the adapter ErrToolTimeout; the others are not
// returned by this module.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolTimeout      = errors.New("tool execution timed out")
	ErrToolPanic        = errors.New("tool panicked")
	ErrBudgetExhausted  = errors.New("budget exhausted")
	ErrNoPlanner        = errors.New("no planner configured")
	ErrNoCritic         = errors.New("no critic configured")
)

// ToolError is a structured error from tool execution, classified into the
// models.ErrorCode taxonomy so the policy engine can decide whether to
// retry, fall back, or surface the failure to the user.
type ToolError struct {
	Code       models.ErrorCode
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
	Attempts   int
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Code))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError creates a ToolError, classifying cause into the error
// taxonomy automatically.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{
		ToolName: toolName,
		Cause:    cause,
		Code:     models.ErrCodeUnknown,
		Attempts: 1,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Code = classifyToolError(cause)
	}
	return err
}

// WithCode overrides the classified error code.
func (e *ToolError) WithCode(code models.ErrorCode) *ToolError {
	e.Code = code
	return e
}

// WithToolCallID sets the originating tool call ID.
func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

// WithMessage overrides the human-readable message.
func (e *ToolError) WithMessage(msg string) *ToolError {
	e.Message = msg
	return e
}

// WithAttempts records how many attempts had been made when this error was
// produced.
func (e *ToolError) WithAttempts(n int) *ToolError {
	e.Attempts = n
	return e
}

// classifyToolError maps an error onto the models.ErrorCode taxonomy using
// sentinel checks first, then substring matching against the error text,
// the same approach the rest of the corpus uses for errors returned by
// opaque, in-process tool implementations that don't carry structured
// error types of their own.
func classifyToolError(err error) models.ErrorCode {
	if err == nil {
		return models.ErrCodeUnknown
	}

	if errors.Is(err, ErrToolNotFound) {
		return models.ErrCodeNotFound
	}
	if errors.Is(err, ErrToolTimeout) {
		return models.ErrCodeTimeout
	}
	if errors.Is(err, ErrToolPanic) {
		return models.ErrCodeInternal
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"), strings.Contains(errStr, "context deadline"):
		return models.ErrCodeTimeout
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no such"):
		return models.ErrCodeNotFound
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"), strings.Contains(errStr, "429"):
		return models.ErrCodeRateLimited
	case strings.Contains(errStr, "permission"), strings.Contains(errStr, "forbidden"), strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "access denied"):
		return models.ErrCodePermissionDenied
	case strings.Contains(errStr, "unavailable"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"), strings.Contains(errStr, "dns"), strings.Contains(errStr, "refused"), strings.Contains(errStr, "unreachable"):
		return models.ErrCodeUnavailable
	case strings.Contains(errStr, "conflict"), strings.Contains(errStr, "already exists"):
		return models.ErrCodeConflict
	case strings.Contains(errStr, "invalid"), strings.Contains(errStr, "validation"), strings.Contains(errStr, "required"), strings.Contains(errStr, "missing"):
		return models.ErrCodeInvalidInput
	case strings.Contains(errStr, "schema"):
		return models.ErrCodeSchemaViolation
	default:
		return models.ErrCodeInternal
	}
}

// IsToolError reports whether err is or wraps a *ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// GetToolError extracts a *ToolError from err's chain.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// IsRetryable reports whether err's classified error code is worth
// retrying.
func IsRetryable(err error) bool {
	if toolErr, ok := GetToolError(err); ok {
		return toolErr.Code.Retryable()
	}
	return classifyToolError(err).Retryable()
}

// TurnError reports a failure during a specific turn-loop phase.
type TurnError struct {
	Phase     TurnPhase
	TurnIndex int
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("turn error at %s (turn %d): %s", e.Phase, e.TurnIndex, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("turn error at %s (turn %d): %v", e.Phase, e.TurnIndex, e.Cause)
	}
	return fmt.Sprintf("turn error at %s (turn %d)", e.Phase, e.TurnIndex)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Cause
}

// TurnPhase names a stage of the turn loop's Plan -> Execute -> Observe ->
// Critique -> Update State -> Decide cycle.
type TurnPhase string

const (
	PhasePlan        TurnPhase = "plan"
	PhaseExecute     TurnPhase = "execute"
	PhaseObserve     TurnPhase = "observe"
	PhaseCritique    TurnPhase = "critique"
	PhaseUpdateState TurnPhase = "update_state"
	PhaseDecide      TurnPhase = "decide"
)
