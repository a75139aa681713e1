/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: queue.go
Description: Priority queue for test case scheduling in the Akaylee EVM fuzzer. Binary
heap ordered by priority; equal priorities leave in insertion order so a seeded
campaign replays identically.
*/

package core

import (
	"container/heap"
	"sync"
)

type queueItem struct {
	testCase *TestCase
	seq      uint64
}

// testCaseHeap implements heap.Interface
type testCaseHeap []queueItem

func (h testCaseHeap) Len() int { return len(h) }

func (h testCaseHeap) Less(i, j int) bool {
	if h[i].testCase.Priority != h[j].testCase.Priority {
		return h[i].testCase.Priority > h[j].testCase.Priority
	}
	return h[i].seq < h[j].seq
}

func (h testCaseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *testCaseHeap) Push(x interface{}) { *h = append(*h, x.(queueItem)) }

func (h *testCaseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is a thread-safe max-priority queue of test cases
type PriorityQueue struct {
	items testCaseHeap
	mu    sync.Mutex
	seq   uint64
}

// NewPriorityQueue creates a new priority queue instance
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		items: make(testCaseHeap, 0, 256),
	}
}

// Put adds a test case to the priority queue
func (pq *PriorityQueue) Put(testCase *TestCase) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	heap.Push(&pq.items, queueItem{testCase: testCase, seq: pq.seq})
	pq.seq++
}

// Get removes and returns the highest priority test case, nil when empty
func (pq *PriorityQueue) Get() *TestCase {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) == 0 {
		return nil
	}
	return heap.Pop(&pq.items).(queueItem).testCase
}

// Size returns the current number of test cases in the queue
func (pq *PriorityQueue) Size() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}
