package consumer

import (
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// Runs jobs one at a time per subject key, in submission order. Jobs for different keys run concurrently.
type SubjectQueues struct {
	Logger  *slog.Logger
	workers *xsync.Map[string, *subjectWorker]
	wg      sync.WaitGroup
	// held for reading while a job is added, so Close can't interleave with a worker start
	closeLk sync.RWMutex
	closed  bool
}

type subjectWorker struct {
	queues  *SubjectQueues
	key     string
	mu      sync.Mutex
	pending []func()
	running bool
	// set once pruned; a retired worker never accepts jobs again
	retired bool
}

func NewSubjectQueues(logger *slog.Logger) *SubjectQueues {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubjectQueues{
		Logger:  logger,
		workers: xsync.NewMap[string, *subjectWorker](),
	}
}

// workerFor gets or creates the worker for the given subject.
func (q *SubjectQueues) workerFor(key string) *subjectWorker {
	w, _ := q.workers.LoadOrCompute(key, func() (*subjectWorker, bool) {
		return &subjectWorker{queues: q, key: key}, false
	})
	return w
}

// Queues the job behind any others for the same key. Returns false, dropping the job, once the queues are closed.
func (q *SubjectQueues) Enqueue(key string, job func()) bool {
	q.closeLk.RLock()
	defer q.closeLk.RUnlock()
	if q.closed {
		return false
	}
	for {
		if q.workerFor(key).add(job) {
			return true
		}
	}
}

// Stops accepting jobs. Already queued jobs still run.
func (q *SubjectQueues) Close() {
	q.closeLk.Lock()
	q.closed = true
	q.closeLk.Unlock()
}

// Blocks until every queued job has finished. Call Close first if producers may still be running.
func (q *SubjectQueues) Wait() {
	q.wg.Wait()
}

// Number of subjects which have queued or running jobs.
func (q *SubjectQueues) Active() int {
	n := 0
	q.workers.Range(func(key string, w *subjectWorker) bool {
		w.mu.Lock()
		if w.running {
			n++
		}
		w.mu.Unlock()
		return true
	})
	return n
}

// Drops idle workers, returning how many were removed.
func (q *SubjectQueues) Prune() int {
	var idle []*subjectWorker
	q.workers.Range(func(key string, w *subjectWorker) bool {
		idle = append(idle, w)
		return true
	})
	n := 0
	for _, w := range idle {
		w.mu.Lock()
		if !w.running && len(w.pending) == 0 && !w.retired {
			w.retired = true
			q.workers.Delete(w.key)
			n++
		}
		w.mu.Unlock()
	}
	return n
}

// returns false if the worker was retired, in which case the caller must look it up again
func (w *subjectWorker) add(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return false
	}
	w.pending = append(w.pending, job)
	if !w.running {
		w.running = true
		w.queues.wg.Add(1)
		go w.run()
	}
	return true
}

func (w *subjectWorker) run() {
	defer w.queues.wg.Done()
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.running = false
			w.mu.Unlock()
			return
		}
		job := w.pending[0]
		w.pending[0] = nil
		w.pending = w.pending[1:]
		w.mu.Unlock()

		w.runJob(job)
	}
}

func (w *subjectWorker) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			w.queues.Logger.Error("subject queue job panicked", "subject", w.key, "err", r)
		}
	}()
	job()
}
