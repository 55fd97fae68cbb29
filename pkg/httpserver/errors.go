package httpserver

import "errors"

// Errors returned by Run and Shutdown. Underlying causes are joined to them.
var (
	ErrStart          = errors.New("failed to start HTTP server")
	ErrShutdown       = errors.New("failed to shut down HTTP server gracefully")
	ErrAlreadyRunning = errors.New("server already running")
)
