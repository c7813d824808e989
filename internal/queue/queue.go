// Copyright 2026 The FleetDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds simultaneous outbound calls during bulk
// operations. This is a politeness mechanism toward the backend, not a
// correctness mechanism: it provides no atomicity across a batch.
const DefaultConcurrency = 5

// Task is one unit of work admitted through the queue.
type Task func(ctx context.Context) error

// Queue serializes bulk operations to at most N simultaneous tasks.
// Admission is FIFO; a task's failure does not cancel queued or in-flight
// siblings.
type Queue struct {
	sem   *semaphore.Weighted
	limit int
}

// New creates a queue with the given concurrency ceiling.
func New(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Queue{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Do runs a single task once a slot is available. Waiting is cancellable
// through ctx.
func (q *Queue) Do(ctx context.Context, task Task) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer q.sem.Release(1)
	return task(ctx)
}

// BatchResult tallies the independent outcomes of a batch. A failed batch
// is never rolled back; callers report "N succeeded, M failed" rather
// than an all-or-nothing result.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    map[int]error
}

// DoBatch runs every task through the queue and reports each task's
// outcome as it completes via onDone (index, error), preserving
// incremental progress reporting for long bulk operations. If ctx is
// cancelled, tasks not yet admitted fail with the context error; in-flight
// tasks finish on their own.
func (q *Queue) DoBatch(ctx context.Context, tasks []Task, onDone func(i int, err error)) BatchResult {
	result := BatchResult{Errors: make(map[int]error)}

	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(i int, err error) {
		mu.Lock()
		if err != nil {
			result.Failed++
			result.Errors[i] = err
		} else {
			result.Succeeded++
		}
		mu.Unlock()
		if onDone != nil {
			onDone(i, err)
		}
	}

	for i, task := range tasks {
		if err := q.sem.Acquire(ctx, 1); err != nil {
			record(i, err)
			continue
		}
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			defer q.sem.Release(1)
			record(i, task(ctx))
		}(i, task)
	}

	wg.Wait()
	return result
}
