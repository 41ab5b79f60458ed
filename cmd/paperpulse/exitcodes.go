package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing keys, bad weights)
	ExitDataError   = 3 // Data error (record not found, malformed input)
	ExitJobFailed   = 4 // Job finished in the failed state
	ExitCancelled   = 5 // Job was cancelled before completing
)
