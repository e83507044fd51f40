/*
Package memory keeps thumbnail generation inside the container's memory
budget.

ConfigureFromEnv derives GOMEMLIMIT from MEMORY_LIMIT (typically injected
through the Kubernetes Downward API) so the garbage collector works harder
before the container is OOM-killed.

Monitor samples heap usage every CheckInterval. Once usage reaches
PauseRatio of the limit, IsPaused reports true and thumbnail workers stop
dequeuing. Jobs already running finish normally. Workers resume once usage
drops below ResumeRatio.

	memory.ConfigureFromEnv()
	mon := memory.NewMonitor(memory.DefaultConfig())
	mon.Start()
	defer mon.Stop()

	p := pipeline.New(repo, gen, cfg, pipeline.WithPressureGauge(mon))
*/
package memory
