package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // All tasks passed
	ExitTaskFailed = 1 // One or more tasks failed
	ExitError      = 2 // Configuration or runtime error
)

// TaskFailureError indicates that the benchmark ran to completion but one or
// more tasks did not succeed.
type TaskFailureError struct {
	Message string
}

func (e *TaskFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var taskFailure *TaskFailureError
		if errors.As(err, &taskFailure) {
			os.Exit(ExitTaskFailed)
		}
		os.Exit(ExitError)
	}
}
