package errors

import (
	"errors"
	"fmt"
)

// --- fondsolve Error Types ---

// ConfigError represents an error encountered during the loading, parsing,
// or validation of a solver configuration, a problem document or solver options.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (e.g., problem structure,
// schema version, option values) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// ContractViolationError reports that a search collaborator (a Problem,
// Operator or Heuristic) broke its contract, or that the search graph reached
// an inconsistent state. These errors are critical: the run that observed one
// is discarded.
type ContractViolationError struct {
	Component string // e.g. "operator", "heuristic", "extraction"
	Subject   string // name of the offending operator or state, if known
	Reason    string
	Cause     error
}

func NewContractViolationError(component, subject, reason string, cause error) *ContractViolationError {
	return &ContractViolationError{Component: component, Subject: subject, Reason: reason, Cause: cause}
}
func (e *ContractViolationError) Error() string {
	msg := fmt.Sprintf("contract violation (%s)", e.Component)
	if e.Subject != "" {
		msg = fmt.Sprintf("%s '%s'", msg, e.Subject)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}
func (e *ContractViolationError) Unwrap() error { return e.Cause }

// IsContractViolation checks if an error is a ContractViolationError using errors.As.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError
	return errors.As(err, &cv)
}

// ResourceExhaustedError signals that a search run outgrew its node or memory
// budget. The driver maps it to the OUT_OF_MEMORY result.
type ResourceExhaustedError struct {
	Resource string // "nodes" or "memory"
	Limit    uint64
	Observed uint64
}

func NewResourceExhaustedError(resource string, limit, observed uint64) *ResourceExhaustedError {
	return &ResourceExhaustedError{Resource: resource, Limit: limit, Observed: observed}
}
func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s budget exhausted: %d exceeds limit %d", e.Resource, e.Observed, e.Limit)
}

// IsResourceExhausted checks if an error is a ResourceExhaustedError using errors.As.
func IsResourceExhausted(err error) bool {
	var re *ResourceExhaustedError
	return errors.As(err, &re)
}

// PolicyViolationError is returned by the policy verifier when a policy is not
// closed, not strong-cyclic, or references an operator foreign to the problem.
type PolicyViolationError struct {
	Property string // "closure", "soundness", "operator"
	State    string
	Reason   string
}

func NewPolicyViolationError(property, state, reason string) *PolicyViolationError {
	return &PolicyViolationError{Property: property, State: state, Reason: reason}
}
func (e *PolicyViolationError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("policy violation (%s) at state '%s': %s", e.Property, e.State, e.Reason)
	}
	return fmt.Sprintf("policy violation (%s): %s", e.Property, e.Reason)
}

// NotFoundError indicates that a stored policy could not be found.
type NotFoundError struct {
	Key string
}

func NewNotFoundError(key string) *NotFoundError {
	return &NotFoundError{Key: key}
}
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("policy not found: %s", e.Key)
}
