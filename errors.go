package autocompact

import "errors"

var (
	// ErrInvalidConfig is wrapped by configuration validation errors.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNoTransport is returned when an Executor is built without a transport.
	ErrNoTransport = errors.New("autocompact: transport is required")

	// ErrNoExecutor is returned when a Hook is built without an executor.
	ErrNoExecutor = errors.New("autocompact: executor is required")
)
