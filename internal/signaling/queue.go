// ABOUTME: Ordered backlog of member identities waiting for an agent
// ABOUTME: FIFO with at-most-once membership per identity

package signaling

import "sync"

// WaitQueue holds member identities whose call request could not be matched
// immediately, in arrival order. An identity appears at most once; repeated
// requests while already waiting do not change queue position.
type WaitQueue struct {
	mu      sync.Mutex
	order   []string
	present map[string]bool
}

// NewWaitQueue creates an empty WaitQueue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		present: make(map[string]bool),
	}
}

// Enqueue appends an identity. Returns false if it was already waiting.
func (q *WaitQueue) Enqueue(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.present[identity] {
		return false
	}
	q.present[identity] = true
	q.order = append(q.order, identity)
	return true
}

// Dequeue pops the oldest waiting identity.
func (q *WaitQueue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return "", false
	}
	identity := q.order[0]
	q.order = q.order[1:]
	delete(q.present, identity)
	return identity, true
}

// Remove deletes an identity from the queue, wherever it sits. Used when a
// waiting member disconnects.
func (q *WaitQueue) Remove(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.present[identity] {
		return false
	}
	delete(q.present, identity)
	for i, id := range q.order {
		if id == identity {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of waiting identities.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
