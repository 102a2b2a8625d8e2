package videos

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
)

const subscriberBuffer = 8

// StatusChange describes an applied lifecycle transition.
type StatusChange struct {
	VideoID       uuid.UUID
	Status        enums.VideoStatus
	FailureReason *string
}

// Notifier fans applied transitions out to in-process subscribers. Delivery
// is non-blocking: a subscriber that falls behind misses events rather than
// stalling the coordinator.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan StatusChange
}

// NewNotifier constructs an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan StatusChange)}
}

// Subscribe registers a listener and returns its channel plus a cancel func.
func (n *Notifier) Subscribe() (<-chan StatusChange, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan StatusChange, subscriberBuffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (n *Notifier) publish(change StatusChange) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
