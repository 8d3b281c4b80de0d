// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package worker runs jobs in parallel and returns their results in the order
// the jobs were submitted.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrStopped is the error returned when the worker is stopped.
var ErrStopped = fmt.Errorf("worker is stopped")

// Job is a unit of work.
type Job[T any] func(ctx context.Context) (T, error)

// Result is the value or error of one job.
type Result[T any] struct {
	Value T
	Error error
}

// Worker runs jobs with bounded parallelism. It is safe for concurrent use,
// but Do must never be called from inside a job.
type Worker[T any] struct {
	size int64
	sem  *semaphore.Weighted

	next    int64
	results map[int64]*Result[T]
	lock    sync.Mutex

	stopped atomic.Bool
}

// New creates a worker that runs at most concurrency jobs at once. A
// concurrency below 1 means one job per CPU.
func New[T any](concurrency int64) *Worker[T] {
	if concurrency < 1 {
		concurrency = int64(runtime.NumCPU())
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return &Worker[T]{
		size:    concurrency,
		sem:     semaphore.NewWeighted(concurrency),
		results: make(map[int64]*Result[T]),
	}
}

// Do schedules the job, blocking while all slots are busy. The job receives
// the given context. Do returns ErrStopped after Done was called, or the
// context error if ctx ends while waiting for a slot.
func (w *Worker[T]) Do(ctx context.Context, job Job[T]) error {
	if w.stopped.Load() {
		return ErrStopped
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	// Done may have been called while waiting for the slot.
	if w.stopped.Load() {
		w.sem.Release(1)
		return ErrStopped
	}

	w.lock.Lock()
	idx := w.next
	w.next++
	w.lock.Unlock()

	go func() {
		defer w.sem.Release(1)
		v, err := job(ctx)

		w.lock.Lock()
		w.results[idx] = &Result[T]{Value: v, Error: err}
		w.lock.Unlock()
	}()

	return nil
}

// Done stops the worker, waits for the running jobs and returns every result
// in submission order. It returns ErrStopped if called twice.
func (w *Worker[T]) Done(ctx context.Context) ([]*Result[T], error) {
	if !w.stopped.CompareAndSwap(false, true) {
		return nil, ErrStopped
	}

	if err := w.sem.Acquire(ctx, w.size); err != nil {
		return nil, fmt.Errorf("failed to wait for jobs: %w", err)
	}
	defer w.sem.Release(w.size)

	w.lock.Lock()
	defer w.lock.Unlock()

	final := make([]*Result[T], w.next)
	for i := range final {
		final[i] = w.results[int64(i)]
	}
	return final, nil
}
