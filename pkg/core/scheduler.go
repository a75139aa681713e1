/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scheduler.go
Description: Test case scheduling. RoundRobinScheduler cycles targets so one contract
with a large corpus cannot starve the others, and serves each target's calls in
priority order.
*/

package core

// RoundRobinScheduler keeps one priority queue per target and rotates between them.
// Not safe for concurrent use.
type RoundRobinScheduler struct {
	queues  map[string]*PriorityQueue
	targets []string
	next    int
}

// NewRoundRobinScheduler creates an empty RoundRobinScheduler.
func NewRoundRobinScheduler() *RoundRobinScheduler {
	return &RoundRobinScheduler{
		queues: make(map[string]*PriorityQueue),
	}
}

// Next returns the best test case of the next non-empty target.
func (s *RoundRobinScheduler) Next() *TestCase {
	for range s.targets {
		target := s.targets[s.next%len(s.targets)]
		s.next = (s.next + 1) % len(s.targets)
		if tc := s.queues[target].Get(); tc != nil {
			return tc
		}
	}
	return nil
}

// Push adds a test case to its target's queue.
func (s *RoundRobinScheduler) Push(tc *TestCase) {
	queue, ok := s.queues[tc.Target]
	if !ok {
		queue = NewPriorityQueue()
		s.queues[tc.Target] = queue
		s.targets = append(s.targets, tc.Target)
	}
	queue.Put(tc)
}

// Size returns the number of queued test cases across all targets.
func (s *RoundRobinScheduler) Size() int {
	size := 0
	for _, queue := range s.queues {
		size += queue.Size()
	}
	return size
}
