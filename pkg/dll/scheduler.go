package dll

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/powerlink-go/plstack/pkg/frame"
)

// Queue identifies one of the MN's four asynchronous-phase queues
// (spec.md §4.5.1).
type Queue uint8

const (
	QueueGeneric Queue = iota
	QueueIdentRequest
	QueueStatusRequest
	QueueInvited
	queueCount
)

func (q Queue) String() string {
	switch q {
	case QueueGeneric:
		return "Generic"
	case QueueIdentRequest:
		return "IdentRequest"
	case QueueStatusRequest:
		return "StatusRequest"
	case QueueInvited:
		return "Invited"
	default:
		return "Unknown"
	}
}

// Service returns the RequestedService an SoA emits when this queue is
// selected.
func (q Queue) Service() frame.RequestedService {
	switch q {
	case QueueGeneric:
		return frame.ServiceNMTRequest
	case QueueIdentRequest:
		return frame.ServiceIdentRequest
	case QueueStatusRequest:
		return frame.ServiceStatusRequest
	case QueueInvited:
		return frame.ServiceUnspecified
	default:
		return frame.ServiceNoService
	}
}

// AsyncScheduler implements spec.md §4.5.1's fairness contract: per cycle,
// pick one non-empty queue by round-robin-with-aging so that no non-empty
// queue is starved indefinitely, and a queue skipped K cycles running
// wins the next tie (the strict age comparison below already guarantees
// this — a queue aged K beats every queue aged less than K). Grounded on
// original_source/node/mn/scheduler.rs's find_next_node_to_identify
// round-robin-from-last-polled shape, generalised from a single list to
// four prioritised queues.
type AsyncScheduler struct {
	mu     sync.Mutex
	queues [queueCount][]uint8
	age    [queueCount]int
}

// NewAsyncScheduler builds an empty scheduler.
func NewAsyncScheduler() *AsyncScheduler {
	return &AsyncScheduler{}
}

// Enqueue appends nodeID to queue's FIFO, ignoring a duplicate already
// pending in that queue.
func (s *AsyncScheduler) Enqueue(q Queue, nodeID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.queues[q], nodeID) {
		return
	}
	s.queues[q] = append(s.queues[q], nodeID)
}

// Select picks exactly one non-empty queue, dequeues its head target,
// resets that queue's age to 0, and ages every other non-empty queue by
// one. Returns ok=false (queue/target zero, spec.md's "C_ADR_INVALID")
// when every queue is empty.
func (s *AsyncScheduler) Select() (q Queue, nodeID uint8, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	bestAge := -1
	for i := Queue(0); i < queueCount; i++ {
		if len(s.queues[i]) == 0 {
			continue
		}
		if s.age[i] > bestAge {
			bestAge = s.age[i]
			best = int(i)
		}
	}
	if best == -1 {
		return 0, 0, false
	}

	for i := Queue(0); i < queueCount; i++ {
		if int(i) == best {
			s.age[i] = 0
		} else if len(s.queues[i]) > 0 {
			s.age[i]++
		}
	}

	winner := Queue(best)
	nodeID = s.queues[winner][0]
	s.queues[winner] = s.queues[winner][1:]
	return winner, nodeID, true
}

// Pending reports how many targets are queued across all four queues, for
// diagnostics and tests.
func (s *AsyncScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for i := range s.queues {
		total += len(s.queues[i])
	}
	return total
}
