package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // All quests passed
	ExitQuestFailed = 1 // One or more quests failed or timed out
	ExitError       = 2 // Configuration, runtime, or infrastructure error
)

// BatchFailureError indicates that the batch ran to completion, but one or
// more quests failed or timed out.
type BatchFailureError struct {
	Message string
}

func (e *BatchFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var batchErr *BatchFailureError
		if errors.As(err, &batchErr) {
			os.Exit(ExitQuestFailed)
		}

		// All other errors are configuration/runtime/infrastructure errors
		os.Exit(ExitError)
	}
}
