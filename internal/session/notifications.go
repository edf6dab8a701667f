// ABOUTME: Named last-value-wins slots for server push events
// ABOUTME: Each slot keeps only the newest event; watchers are fanned out through EventBus

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
)

// Slot names one kind of push notification
type Slot string

const (
	SlotNewWorkOrder          Slot = "new-work-order"
	SlotWorkOrderStatusUpdate Slot = "work-order-status-update"
	SlotWorkOrderEvaluated    Slot = "work-order-evaluated"
	SlotWorkOrderDeleted      Slot = "work-order-deleted"
	SlotComplaintUpdate       Slot = "complaint-update"
	SlotNewComplaint          Slot = "new-complaint"
	SlotComplaintRated        Slot = "complaint-rated"
)

// AllSlots lists every slot in display order
var AllSlots = []Slot{
	SlotNewWorkOrder,
	SlotWorkOrderStatusUpdate,
	SlotWorkOrderEvaluated,
	SlotWorkOrderDeleted,
	SlotComplaintUpdate,
	SlotNewComplaint,
	SlotComplaintRated,
}

// Event is one delivered push message. Events are shared between readers
// and must be treated as immutable.
type Event struct {
	Kind       string          `json:"kind"`
	UpdateType string          `json:"update_type,omitempty"`
	OrderID    int64           `json:"order_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Notifications holds at most one event per slot. Events published for a
// credential are only accepted while that credential owns the slots.
type Notifications struct {
	mu    sync.RWMutex
	slots map[Slot]*Event
	owner string

	// fanout serializes slot changes with their delivery, so watchers
	// see values in the order they were stored
	fanout   sync.Mutex
	bus      evbus.Bus
	watchMu  sync.Mutex
	watchers map[Slot]map[string]struct{}
	nextID   uint64
}

// NewNotifications returns state with every slot null
func NewNotifications() *Notifications {
	n := &Notifications{
		slots:    make(map[Slot]*Event, len(AllSlots)),
		bus:      evbus.New(),
		watchers: make(map[Slot]map[string]struct{}, len(AllSlots)),
	}
	for _, slot := range AllSlots {
		n.slots[slot] = nil
	}
	return n
}

// Valid reports whether slot is one of AllSlots
func (s Slot) Valid() bool {
	for _, slot := range AllSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// Publish overwrites the slot and then notifies its watchers. The previous
// value is discarded.
func (n *Notifications) Publish(slot Slot, ev *Event) error {
	if !slot.Valid() {
		return fmt.Errorf("unknown notification slot %q", slot)
	}
	n.fanout.Lock()
	defer n.fanout.Unlock()

	n.mu.Lock()
	n.slots[slot] = ev
	n.mu.Unlock()

	n.deliver(slot, ev)
	return nil
}

// PublishFor is Publish for an event received on a channel opened with
// credential. The event is dropped, and false returned, when credential
// no longer owns the slots because of a logout or a re-login.
func (n *Notifications) PublishFor(credential string, slot Slot, ev *Event) (bool, error) {
	if !slot.Valid() {
		return false, fmt.Errorf("unknown notification slot %q", slot)
	}
	n.fanout.Lock()
	defer n.fanout.Unlock()

	n.mu.Lock()
	if credential == "" || n.owner != credential {
		n.mu.Unlock()
		return false, nil
	}
	n.slots[slot] = ev
	n.mu.Unlock()

	n.deliver(slot, ev)
	return true, nil
}

// Latest returns the newest event for slot, or nil
func (n *Notifications) Latest(slot Slot) *Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.slots[slot]
}

// All returns a copy of the slot map
func (n *Notifications) All() map[Slot]*Event {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[Slot]*Event, len(n.slots))
	for slot, ev := range n.slots {
		out[slot] = ev
	}
	return out
}

// Watch calls fn with every new value of slot, including nil on logout.
// fn runs on the publishing goroutine while delivery is locked, so it must
// not call Watch, a cancel func, Publish or Store.Logout. Each watch gets
// its own bus topic, so the returned cancel removes exactly this watch.
func (n *Notifications) Watch(slot Slot, fn func(*Event)) (func(), error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("unknown notification slot %q", slot)
	}

	n.watchMu.Lock()
	n.nextID++
	topic := fmt.Sprintf("slot:%s:%d", slot, n.nextID)
	n.watchMu.Unlock()

	if err := n.bus.Subscribe(topic, fn); err != nil {
		return nil, err
	}

	n.watchMu.Lock()
	if n.watchers[slot] == nil {
		n.watchers[slot] = make(map[string]struct{})
	}
	n.watchers[slot][topic] = struct{}{}
	n.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.watchMu.Lock()
			delete(n.watchers[slot], topic)
			n.watchMu.Unlock()
			n.bus.Unsubscribe(topic, fn)
		})
	}, nil
}

// deliver hands ev to every watcher of slot. Callers hold fanout.
func (n *Notifications) deliver(slot Slot, ev *Event) {
	n.watchMu.Lock()
	topics := make([]string, 0, len(n.watchers[slot]))
	for topic := range n.watchers[slot] {
		topics = append(topics, topic)
	}
	n.watchMu.Unlock()

	for _, topic := range topics {
		n.bus.Publish(topic, ev)
	}
}

// own hands the slots to credential
func (n *Notifications) own(credential string) {
	n.mu.Lock()
	n.owner = credential
	n.mu.Unlock()
}

// clear nulls every slot, drops the owner, and returns the slots that held
// a value
func (n *Notifications) clear() []Slot {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owner = ""
	var cleared []Slot
	for _, slot := range AllSlots {
		if n.slots[slot] != nil {
			cleared = append(cleared, slot)
		}
		n.slots[slot] = nil
	}
	return cleared
}

func (n *Notifications) announce(slots []Slot) {
	n.fanout.Lock()
	defer n.fanout.Unlock()
	for _, slot := range slots {
		n.deliver(slot, nil)
	}
}
