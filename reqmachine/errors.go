package reqmachine

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes coded errors include the frame that created them
const enableDebugErrorPrinting bool = false

type ErrCode int

const (
	None ErrCode = iota
	StepLimitExceeded
	DepthLimitExceeded
	InvalidRewriteRule
	BadGenericParam
	BadInitialSymbol
	BadInteriorSymbol
	TermVerification
)

var (
	ErrAlreadyInitialized = errors.New("requirement machine already initialized")
	ErrAlreadyComplete    = errors.New("requirement machine already complete")
	ErrNotComplete        = errors.New("requirement machine is not complete")
)

// CodedError is an error produced while building a machine.
// Its Dump holds the state of the machine when the error was found.
type CodedError interface {
	error
	Code() ErrCode
	Dump() string

	withStack([]byte) CodedError
	getStack() []byte
}

var (
	_ CodedError = (*ResourceExhaustedError)(nil)
	_ CodedError = (*InvariantError)(nil)
)

func FormatWithCode(e CodedError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := strings.Split(string(e.getStack()), "\n")
		if len(stack) > 6 {
			return fmt.Sprintf("%s:(E%03d) %s", strings.TrimSpace(stack[6]), e.Code(), e.Error())
		}
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func newError[E CodedError](err E) CodedError {
	return err.withStack(debug.Stack())
}

// Limit names the circuit breaker that tripped
type Limit string

const (
	StepLimit  Limit = "step"
	DepthLimit Limit = "depth"
)

// Phase names the half of the completion loop that tripped a limit
type Phase string

const (
	CompletionPhase  Phase = "completion"
	UnificationPhase Phase = "concrete type unification"
)

// ResourceExhaustedError means completion did not converge within the configured
// limits. The machine that returned it holds no usable rewrite system.
type ResourceExhaustedError struct {
	Limit Limit
	Phase Phase
	Value int
	dump  string
	stack []byte
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s exceeded %s limit of %d", e.Phase, e.Limit, e.Value)
}

func (e *ResourceExhaustedError) Code() ErrCode {
	if e.Limit == StepLimit {
		return StepLimitExceeded
	}
	return DepthLimitExceeded
}
func (e *ResourceExhaustedError) Dump() string     { return e.dump }
func (e *ResourceExhaustedError) getStack() []byte { return e.stack }
func (e *ResourceExhaustedError) withStack(stack []byte) CodedError {
	e.stack = stack
	return e
}

// InvariantError is a self-consistency failure of a machine under construction,
// or of a term checked against a complete machine
type InvariantError struct {
	ErrCode ErrCode
	Message string
	// Cause is the underlying rewriting error, if any
	Cause error
	dump  string
	stack []byte
}

func (e *InvariantError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}
func (e *InvariantError) Unwrap() error    { return e.Cause }
func (e *InvariantError) Code() ErrCode    { return e.ErrCode }
func (e *InvariantError) Dump() string     { return e.dump }
func (e *InvariantError) getStack() []byte { return e.stack }
func (e *InvariantError) withStack(stack []byte) CodedError {
	e.stack = stack
	return e
}
