package main

import (
	"errors"
	"os"

	"github.com/andresuchdata/gcs-lfs-agent/pkg/logger"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("agent stopped")
		os.Exit(exitCode(err))
	}
}

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

// configError marks failures that happen before the first event is read.
type configError struct {
	err error
}

func (e *configError) Error() string { return "configuration: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var cerr *configError
	if errors.As(err, &cerr) {
		return exitConfig
	}
	return exitFailure
}
