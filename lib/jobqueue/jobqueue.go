// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jobqueue implements a bounded queue of jobs run by a fixed number
// of workers.
//
// Usage:
//
//   dispatcher := NewDispatcher(numWorkers, maxWaitingJobs)
//
//   job := NewJob(run, reject)
//   if err := dispatcher.Enqueue(job); err != nil {
//     // The job was not queued; neither run nor reject will be called.
//   }
//
//   dispatcher.Stop() // Waits for any in-progress jobs to finish, rejects any
//                     // remaining jobs.
//
// Internally, the dispatcher has a channel of workers that represents a worker
// queue, and a channel of jobs that represents a job queue. The dispatcher
// reads a worker off the worker queue, and then reads a job off the job
// queue, and runs that job on that worker. When the job finishes, the worker
// is pushed back on to the worker queue.
//
// Every queued job has exactly one of its two functions called: run when a
// worker picks it up, or reject when it was cancelled or the dispatcher
// stopped first.
package jobqueue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/amm0nite/ammonite-mysql/lib/log"
)

var (
	// Error returned by Enqueue when the job queue is at capacity.
	ErrQueueFull = errors.New("job queue full")

	// Error returned by Enqueue after Stop, and passed to the reject function
	// of jobs still queued when Stop is called.
	ErrStopped = errors.New("dispatcher stopped")

	// Error passed to the reject function of a job cancelled before it ran.
	ErrCancelled = errors.New("job cancelled")
)

var lastJobID int64

type Job struct {
	id     int64
	run    func()
	reject func(error)

	mu        sync.Mutex
	cancelled bool
}

func NewJob(run func(), reject func(error)) *Job {
	return &Job{
		id:     atomic.AddInt64(&lastJobID, 1),
		run:    run,
		reject: reject,
	}
}

// Cancel will prevent the job from being run, if it has not already been
// started by a worker.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	log.Debugf("Cancelling job %v.", j.id)
	j.cancelled = true
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Dispatcher is an interface type so it can be mocked during tests.
type Dispatcher interface {
	Enqueue(j *Job) error
	Stop()
}

// dispatcherImpl implements Dispatcher interface.
type dispatcherImpl struct {
	jobQueue chan *Job

	// mu guards isStopped, and orders Enqueue against Stop so that no job is
	// queued after the queue has been drained.
	mu        sync.Mutex
	isStopped bool

	// Closing the stopped channel causes the dispatcher to stop assigning new
	// jobs to workers.
	stopped  chan struct{}
	stopOnce sync.Once

	// wg represents currently running workers. It is used during Stop to make
	// sure that all workers have finished running their active jobs.
	wg sync.WaitGroup
}

var _ = Dispatcher((*dispatcherImpl)(nil))

func NewDispatcher(workers int, jobQueueCap int) Dispatcher {
	if workers < 1 {
		workers = 1
	}
	log.Debugf("Creating new dispatcher with %v workers and %v queue capacity.", workers, jobQueueCap)
	d := &dispatcherImpl{
		jobQueue: make(chan *Job, jobQueueCap),
		stopped:  make(chan struct{}),
	}

	d.start(workers)
	return d
}

// start starts a given number of workers, then reads from the jobQueue and
// assigns jobs to free workers.
func (d *dispatcherImpl) start(num int) {
	log.Debug("Dispatcher starting.")

	// Workers are published on the workerQueue when they are free.
	workerQueue := make(chan *worker, num)

	for i := 0; i < num; i++ {
		workerQueue <- newWorker(i)
	}

	d.wg.Add(1)

	go func() {
	Loop:
		for {
			// Wait for the next available worker.
			select {
			case <-d.stopped:
				break Loop
			case worker := <-workerQueue:
				// Read the next job from the job queue.
				select {
				case <-d.stopped:
					break Loop
				case job := <-d.jobQueue:
					if job.isCancelled() {
						log.Debugf("Dispatcher encountered cancelled job %v, rejecting.", job.id)
						job.reject(ErrCancelled)
						workerQueue <- worker
					} else {
						log.Debugf("Dispatching job %v to worker %v.", job.id, worker.id)
						d.wg.Add(1)
						go func() {
							worker.run(job)
							log.Debugf("Job %v finished on worker %v.", job.id, worker.id)
							d.wg.Done()
							workerQueue <- worker
						}()
					}
				}
			}
		}

		log.Debug("Dispatcher stopped.")

		// Dispatcher stopped, reject all remaining jobs.
		for {
			select {
			case job := <-d.jobQueue:
				log.Debugf("Dispatcher is stopped, rejecting job %v.", job.id)
				job.reject(ErrStopped)
			default:
				log.Debug("Dispatcher job queue drained.")
				d.wg.Done()
				return
			}
		}
	}()
}

// Stop stops the dispatcher from assigning any new jobs to workers. Jobs that
// are currently running are allowed to continue. Other jobs are rejected with
// ErrStopped. Stop blocks until all jobs have finished. Calling Stop more than
// once is safe.
func (d *dispatcherImpl) Stop() {
	d.stopOnce.Do(func() {
		log.Debug("Stopping dispatcher.")
		d.mu.Lock()
		d.isStopped = true
		d.mu.Unlock()
		close(d.stopped)
	})

	// Wait for workers to finish their current jobs.
	d.wg.Wait()
}

// Enqueue queues a job to be run by the next available worker. It never
// blocks; a full queue is an error.
func (d *dispatcherImpl) Enqueue(j *Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isStopped {
		return ErrStopped
	}
	select {
	case d.jobQueue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

type worker struct {
	id int
}

func newWorker(id int) *worker {
	return &worker{
		id: id,
	}
}

func (w *worker) run(j *Job) {
	j.run()
}
