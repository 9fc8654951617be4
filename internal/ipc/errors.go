package ipc

import (
	"errors"
	"fmt"
	"strings"

	"ratchet/internal/lifecycle"
)

// JSON-RPC flattens errors to strings, so sentinel identity is carried as a
// prefix and restored on the client side. Exit-code mapping in the CLI depends
// on this round trip.
const (
	codeUnknownItem         = "unknown_item"
	codeInvalidTransition   = "invalid_transition"
	codeNotAwaitingApproval = "not_awaiting_approval"
)

func encodeError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, lifecycle.ErrUnknownItem):
		return fmt.Errorf("%s: %s", codeUnknownItem, err)
	case errors.Is(err, lifecycle.ErrNotAwaitingApproval):
		return fmt.Errorf("%s: %s", codeNotAwaitingApproval, err)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return fmt.Errorf("%s: %s", codeInvalidTransition, err)
	default:
		return err
	}
}

type codedError struct {
	sentinel error
	msg      string
}

func (e *codedError) Error() string { return e.msg }

func (e *codedError) Unwrap() error { return e.sentinel }

// DecodeError restores sentinel identity from an RPC error string.
func DecodeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for code, sentinel := range map[string]error{
		codeUnknownItem:         lifecycle.ErrUnknownItem,
		codeNotAwaitingApproval: lifecycle.ErrNotAwaitingApproval,
		codeInvalidTransition:   lifecycle.ErrInvalidTransition,
	} {
		if strings.HasPrefix(msg, code+":") {
			return &codedError{
				sentinel: sentinel,
				msg:      strings.TrimSpace(strings.TrimPrefix(msg, code+":")),
			}
		}
	}
	return err
}
