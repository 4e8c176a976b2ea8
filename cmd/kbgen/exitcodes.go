package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success, every condition succeeded or was skipped
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing config, bad paths, missing keys)
	ExitDataError   = 3 // Data error (malformed catalog, invalid article)
	ExitPartial     = 4 // Run finished but some conditions failed
)
