package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ratchet/internal/lifecycle"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps error taxonomy to shell-visible codes so scripts can
// distinguish a missing item from a rejected operation from storage trouble.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, lifecycle.ErrUnknownItem):
		return 1
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotAwaitingApproval):
		return 2
	default:
		return 3
	}
}
