package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a payment action does not apply to
// the current status.
var ErrInvalidTransition = errors.New("invalid payment transition")

// PaymentStatus is a state of the payment confirmation sub-flow.
type PaymentStatus string

const (
	PaymentNone                 PaymentStatus = ""
	PaymentRequiresConfirmation PaymentStatus = "requires_confirmation"
	PaymentRequiresCode         PaymentStatus = "requires_code"
	PaymentInProgress           PaymentStatus = "in_progress"
	PaymentCompleted            PaymentStatus = "completed"
	PaymentFailed               PaymentStatus = "failed"
	PaymentExpired              PaymentStatus = "expired"
)

// Terminal reports whether no further transition leaves s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentExpired:
		return true
	}
	return false
}

// PaymentAction drives the payment sub-flow.
type PaymentAction string

const (
	ActionRequestCode  PaymentAction = "requestCode"
	ActionValidateCode PaymentAction = "validateCode"
	ActionFail         PaymentAction = "fail"
	ActionExpire       PaymentAction = "expire"
)

// Next returns the status reached by applying action to s.
func (s PaymentStatus) Next(action PaymentAction) (PaymentStatus, error) {
	switch {
	case s == PaymentRequiresConfirmation && action == ActionRequestCode:
		return PaymentRequiresCode, nil
	case s == PaymentRequiresCode && action == ActionValidateCode:
		return PaymentCompleted, nil
	case action == ActionFail && !s.Terminal() && s != PaymentNone:
		return PaymentFailed, nil
	case action == ActionExpire && !s.Terminal() && s != PaymentNone:
		return PaymentExpired, nil
	}
	if s == PaymentNone {
		return s, fmt.Errorf("%w: %s with no pending purchase", ErrInvalidTransition, action)
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, s)
}
