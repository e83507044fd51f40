package pipeline

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"media-tagger/internal/thumbnail"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	var want []*Job
	for i := int64(1); i <= 5; i++ {
		job := NewJob(i, "/f", thumbnail.SizeSmall)
		want = append(want, job)
		q.Enqueue(job)
	}

	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	for i, w := range want {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() #%d returned empty", i)
		}
		if got != w {
			t.Errorf("Dequeue() #%d = file %d, want file %d", i, got.FileID, w.FileID)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() on drained queue should report empty")
	}
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue()
	job, ok := q.Dequeue()
	if ok || job != nil {
		t.Errorf("Dequeue() = %v, %v; want nil, false", job, ok)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueAllowsDuplicates(t *testing.T) {
	q := NewQueue()
	job := NewJob(1, "/f", thumbnail.SizeSmall)
	q.Enqueue(job)
	q.Enqueue(job)
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestQueueConcurrentDequeueNoDuplicates(t *testing.T) {
	const jobs = 2000
	const consumers = 8

	q := NewQueue()
	for i := 0; i < jobs; i++ {
		q.Enqueue(NewJob(int64(i+1), "/f", thumbnail.SizeSmall))
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("dequeued %d distinct jobs, want %d", len(seen), jobs)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %s dequeued %d times", id, n)
		}
	}
}
