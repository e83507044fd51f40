/*
Package workers determines worker pool sizes for the thumbnail pipeline.

Inside a container, runtime.NumCPU reports the host's CPU count while
GOMAXPROCS (Go 1.19+) reflects the cgroup CPU limit. Sizing from GOMAXPROCS
keeps a 2-CPU pod on a 64-core node from spawning 64 decoders.

	// One worker per available CPU, no cap
	n := workers.ForCPU(0)

	// Explicit configuration wins, otherwise fall back to ForCPU
	n := workers.Resolve(cfg.WorkerCount)

Operators can pin the count with the THUMBNAIL_WORKERS environment
variable; the value is still subject to the limit passed by the caller.

All functions are safe for concurrent use.
*/
package workers
