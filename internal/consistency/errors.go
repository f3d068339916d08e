package consistency

import (
	"errors"
	"fmt"
)

// ErrInvalidRule is returned when registering a rule without an id, check
// function, or valid severity.
var ErrInvalidRule = errors.New("invalid rule")

// ErrUnknownRule is returned when an operation names an unregistered rule.
var ErrUnknownRule = errors.New("unknown rule")

// RuleErrorCode categorizes rule execution failures.
type RuleErrorCode string

const (
	// ErrCodeRuleFailed indicates a rule's check returned an error.
	ErrCodeRuleFailed RuleErrorCode = "RULE_FAILED"

	// ErrCodeRulePanicked indicates a rule's check panicked.
	ErrCodeRulePanicked RuleErrorCode = "RULE_PANICKED"
)

// RuleError describes one rule evaluation that produced no result.
//
// RuleErrors never escape Detect; they are reported in RuleResult.Err.
type RuleError struct {
	// Code identifies the failure category.
	Code RuleErrorCode

	// RuleID identifies the failing rule.
	RuleID string

	// Message is a human-readable description.
	Message string

	// Err is the error the rule returned, if any.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
}

// Unwrap returns the rule's own error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsRuleError returns true if err is a RuleError of any code.
// Uses errors.As to handle wrapped errors.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsRulePanic returns true if err records a panicking rule.
func IsRulePanic(err error) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRulePanicked
	}
	return false
}

func newFailedError(ruleID string, err error) *RuleError {
	return &RuleError{
		Code:    ErrCodeRuleFailed,
		RuleID:  ruleID,
		Message: err.Error(),
		Err:     err,
	}
}

func newPanicError(ruleID string, recovered any) *RuleError {
	re := &RuleError{
		Code:    ErrCodeRulePanicked,
		RuleID:  ruleID,
		Message: fmt.Sprintf("check panicked: %v", recovered),
	}
	if err, ok := recovered.(error); ok {
		re.Err = err
	}
	return re
}
