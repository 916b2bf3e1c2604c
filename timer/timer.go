// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type task struct {
	id       int64
	execute  time.Time
	interval time.Duration
	callback func()
	index    int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].execute.Before(q[j].execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Scheduler runs delayed and repeating callbacks off a single min-heap.
type Scheduler struct {
	queue    taskQueue
	mutex    sync.Mutex
	nextID   int64
	trigger  chan *task
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewScheduler() *Scheduler {
	s := &Scheduler{
		queue:    make(taskQueue, 0),
		trigger:  make(chan *task, 1000),
		stopChan: make(chan struct{}),
		nextID:   1,
	}
	heap.Init(&s.queue)
	go s.process()
	return s
}

// Schedule registers a callback to run after delay; a non-zero interval
// makes it repeat. Callbacks run on their own goroutine.
func (s *Scheduler) Schedule(delay, interval time.Duration, callback func()) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &task{
		id:       s.nextID,
		execute:  time.Now().Add(delay),
		interval: interval,
		callback: callback,
	}
	s.nextID++

	heap.Push(&s.queue, t)
	return t.id
}

// Cancel removes a scheduled task. Canceling an already-fired one-shot
// task is a no-op.
func (s *Scheduler) Cancel(id int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, t := range s.queue {
		if t.id == id {
			heap.Remove(&s.queue, i)
			break
		}
	}
}

// Stop shuts the scheduler down; pending tasks never fire.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Scheduler) process() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return

		case <-ticker.C:
			s.mutex.Lock()
			now := time.Now()

			for s.queue.Len() > 0 {
				t := s.queue[0]
				if t.execute.After(now) {
					break
				}

				heap.Pop(&s.queue)
				s.trigger <- t

				if t.interval > 0 {
					t.execute = now.Add(t.interval)
					heap.Push(&s.queue, t)
				}
			}
			s.mutex.Unlock()

		case t := <-s.trigger:
			go t.callback()
		}
	}
}
