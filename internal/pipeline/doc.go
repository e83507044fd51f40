/*
Package pipeline generates thumbnails in the background.

A Processor owns a FIFO Queue of jobs, one job per (file, size) pair, and a
pool of workers. Each worker polls the queue every PollInterval. It stops at
the next poll once Shutdown cancels the shared context. An attempt runs the
Generator under ProcessingTimeout and stores the result through the
Repository.

A failed attempt is classified as a generation error, a timeout or a
persistence error. The job is then retried after RetryDelay*n on the nth
retry. The timer puts the job back at the end of the queue, so a worker
never sleeps through a backoff. After MaxRetries retries the job is marked
failed and only counted.

Requests (QueueFiles, QueueMissing, Stats, PendingCount, Shutdown) are
messages handled one at a time by the processor's loop goroutine. Shutdown
returns after every worker and the statistics updater have exited.

	p := pipeline.New(repo, generator, pipeline.DefaultConfig(), pipeline.WithCatalog(db))
	p.Start()
	defer p.Shutdown(context.Background())

	n, err := p.QueueFiles(ctx, files, thumbnail.AllSizes())
*/
package pipeline
