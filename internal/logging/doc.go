// Package logging provides a leveled logging interface for the media tagger
// thumbnail pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true) and can be overridden with SetLevel. Components that run many
// goroutines, such as pipeline workers, use For to obtain a Logger whose
// messages carry the component name.
package logging
