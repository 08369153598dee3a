// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"container/heap"
	"sync"
	"time"
)

// taskKind identifies what a scheduled task does when it comes due.
type taskKind string

const (
	taskUnfreeze taskKind = "unfreeze"
	taskRecheck  taskKind = "recheck"
)

// task is a deferred action processed by Tick. Deregistration removes the
// subject's pending tasks; a task that still reaches a removed subject
// instance is skipped.
type task struct {
	kind    taskKind
	subject *subject
	channel Channel
	due     time.Time

	key   string
	seq   uint64
	index int
}

// taskQueue is a min-heap of tasks ordered by due time, with O(1) lookup by
// key so rescheduling an existing task moves it instead of duplicating it.
type taskQueue struct {
	mu    sync.Mutex
	items taskHeap
	byKey map[string]*task
	seq   uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{byKey: make(map[string]*task)}
}

// schedule adds a task or moves the existing task with the same key.
func (q *taskQueue) schedule(t *task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byKey[t.key]; ok {
		existing.due = t.due
		existing.subject = t.subject
		heap.Fix(&q.items, existing.index)
		return
	}

	q.seq++
	t.seq = q.seq
	q.byKey[t.key] = t
	heap.Push(&q.items, t)
}

// popDue removes and returns every task due at or before now, oldest first.
func (q *taskQueue) popDue(now time.Time) []*task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*task
	for len(q.items) > 0 && !q.items[0].due.After(now) {
		t := heap.Pop(&q.items).(*task)
		delete(q.byKey, t.key)
		due = append(due, t)
	}
	return due
}

// cancelSubject removes every pending task bound to s and returns how many
// were dropped.
func (q *taskQueue) cancelSubject(s *subject) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stale []*task
	for _, t := range q.items {
		if t.subject == s {
			stale = append(stale, t)
		}
	}
	for _, t := range stale {
		heap.Remove(&q.items, t.index)
		delete(q.byKey, t.key)
	}
	return len(stale)
}

// len returns the number of pending tasks.
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
