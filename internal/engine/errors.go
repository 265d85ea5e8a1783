package engine

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is wrapped by every validation failure.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports one invalid part of a ledger.
type MalformedInputError struct {
	Account string // empty for ledger-wide problems
	Reason  string
}

func (e *MalformedInputError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("malformed ledger: %s", e.Reason)
	}
	return fmt.Sprintf("malformed account %q: %s", e.Account, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

func malformed(account, format string, args ...any) error {
	return &MalformedInputError{Account: account, Reason: fmt.Sprintf(format, args...)}
}
