// Package rapsterr defines the typed error kinds shared across the RA-PST
// allocation and scheduling engine, and the CLI exit-code mapping for them.
package rapsterr

import "fmt"

// ParseError wraps a failure reading or decoding a process/resource input
// document; pkg/inputdoc returns it for its JSON input format.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRAPSTError reports one or more §3 invariant violations found while
// building or validating an RA-PST arena.
type InvalidRAPSTError struct {
	Err error
}

func (e *InvalidRAPSTError) Error() string {
	return fmt.Sprintf("invalid RA-PST: %v", e.Err)
}

func (e *InvalidRAPSTError) Unwrap() error { return e.Err }

// InvalidBranchError is raised when the heuristic allocator selects, or is
// asked to validate, a branch that fails §3's invariants at runtime.
type InvalidBranchError struct {
	TaskID   string
	BranchID string
	Reason   string
}

func (e *InvalidBranchError) Error() string {
	return fmt.Sprintf("invalid branch %s for task %s: %s", e.BranchID, e.TaskID, e.Reason)
}

// InfeasibleError is returned when the CP adapter's model has no solution.
type InfeasibleError struct {
	Detail string
}

func (e *InfeasibleError) Error() string {
	if e.Detail == "" {
		return "infeasible model"
	}
	return fmt.Sprintf("infeasible model: %s", e.Detail)
}

// SolverTimeoutNoIncumbentError is returned when a time-limited solve expires
// without ever finding a feasible solution.
type SolverTimeoutNoIncumbentError struct {
	TimeLimitSeconds float64
}

func (e *SolverTimeoutNoIncumbentError) Error() string {
	return fmt.Sprintf("solver timed out after %.2fs with no incumbent", e.TimeLimitSeconds)
}

// StartingPointMismatchError is returned when a warm-start document's
// cardinality does not match the number of non-fixed interval variables.
type StartingPointMismatchError struct {
	WarmStartSize int
	ModelSize     int
}

func (e *StartingPointMismatchError) Error() string {
	return fmt.Sprintf("starting point size <%d> does not match model size <%d>", e.WarmStartSize, e.ModelSize)
}

// MixedStrategyUnsupportedError is returned when the driver's pending queue
// contains more than one strategy tag.
type MixedStrategyUnsupportedError struct {
	Strategies []string
}

func (e *MixedStrategyUnsupportedError) Error() string {
	return fmt.Sprintf("mixed strategies in queue are not supported: %v", e.Strategies)
}

// UnsupportedChangeTypeError is returned when a branch's change type cannot
// be applied by the change-operation engine (currently: replace).
type UnsupportedChangeTypeError struct {
	ChangeType string
}

func (e *UnsupportedChangeTypeError) Error() string {
	return fmt.Sprintf("change type %q is not implemented for allocation", e.ChangeType)
}

// SchedulePersistenceError wraps a failure reading or atomically writing the
// schedule document.
type SchedulePersistenceError struct {
	Path string
	Err  error
}

func (e *SchedulePersistenceError) Error() string {
	return fmt.Sprintf("schedule persistence error for %s: %v", e.Path, e.Err)
}

func (e *SchedulePersistenceError) Unwrap() error { return e.Err }

// Exit codes per the CLI surface (spec §6).
const (
	ExitSuccess              = 0
	ExitOther                = 1
	ExitInfeasible           = 2
	ExitSolverTimeoutNoIncum = 3
	ExitMixedStrategy        = 4
)

// ExitCode maps an error returned from the driver to the CLI exit code
// documented in §6. A nil error maps to ExitSuccess.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case asInfeasible(err):
		return ExitInfeasible
	case asTimeout(err):
		return ExitSolverTimeoutNoIncum
	case asMixedStrategy(err):
		return ExitMixedStrategy
	default:
		return ExitOther
	}
}

func asInfeasible(err error) bool {
	_, ok := err.(*InfeasibleError)
	if ok {
		return true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return asInfeasible(u.Unwrap())
	}
	return false
}

func asTimeout(err error) bool {
	_, ok := err.(*SolverTimeoutNoIncumbentError)
	if ok {
		return true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return asTimeout(u.Unwrap())
	}
	return false
}

func asMixedStrategy(err error) bool {
	_, ok := err.(*MixedStrategyUnsupportedError)
	if ok {
		return true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return asMixedStrategy(u.Unwrap())
	}
	return false
}
