package assessment

import (
	"sync"

	"github.com/enerbat/bacs-engine/internal/models"
)

// Notifier fans recomputed project results out to stream subscribers.
// Sends never block: a subscriber that stopped draining misses updates
// rather than stalling the synchronizer.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[string]map[chan models.ProjectResult]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		subscribers: make(map[string]map[chan models.ProjectResult]struct{}),
	}
}

// Subscribe registers a listener for one project. The returned cancel
// function must be called to release the channel.
func (n *Notifier) Subscribe(projectID string) (<-chan models.ProjectResult, func()) {
	ch := make(chan models.ProjectResult, 4)

	n.mu.Lock()
	subs := n.subscribers[projectID]
	if subs == nil {
		subs = make(map[chan models.ProjectResult]struct{})
		n.subscribers[projectID] = subs
	}
	subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subscribers[projectID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(n.subscribers, projectID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers a result to every subscriber of its project.
func (n *Notifier) Publish(result models.ProjectResult) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subscribers[result.ProjectID] {
		select {
		case ch <- result:
		default:
		}
	}
}
