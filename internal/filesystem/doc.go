/*
Package filesystem wraps source file access with retry logic for NFS stale
file handle errors.

Libraries are frequently mounted over NFS. A file that was valid when it was
queued can briefly return ESTALE while the server remounts, so thumbnail
generation stats and opens source files through this package:

	info, err := filesystem.StatWithRetry(ctx, path, filesystem.DefaultRetryConfig())

Only ESTALE triggers a retry. Every other error is returned immediately.
Backoff doubles from InitialBackoff up to MaxBackoff (50ms, 100ms, 200ms by
default) and is abandoned early when the context is cancelled.

Retry counts are reported through the Observer set with SetObserver.
*/
package filesystem
