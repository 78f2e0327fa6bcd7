package ledger

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"hypeledger/internal/model"
)

// Listener receives a copy of a user's balance after a committed change.
type Listener func(userID string, balance *model.Balance)

// ChangeNotifier fans balance changes out to subscribers. Delivery is
// best-effort: each listener runs on its own goroutine and a panicking
// listener is logged and dropped for that event.
type ChangeNotifier struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
	wg        sync.WaitGroup
}

func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{listeners: make(map[uint64]Listener)}
}

// Subscribe registers l and returns a func that removes it. Calling the
// returned func more than once is harmless.
func (n *ChangeNotifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Notify never blocks on listeners.
func (n *ChangeNotifier) Notify(userID string, balance *model.Balance) {
	n.mu.RLock()
	targets := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		targets = append(targets, l)
	}
	n.mu.RUnlock()

	for _, l := range targets {
		snapshot := balance.Clone()
		n.wg.Add(1)
		go n.deliver(l, userID, snapshot)
	}
}

func (n *ChangeNotifier) deliver(l Listener, userID string, balance *model.Balance) {
	defer n.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"user_id": userID,
				"panic":   r,
			}).Error("[ChangeNotifier] listener panicked")
		}
	}()
	l(userID, balance)
}

// Wait blocks until every delivery started so far has returned. Used on
// shutdown and in tests.
func (n *ChangeNotifier) Wait() {
	n.wg.Wait()
}
