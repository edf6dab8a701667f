// ABOUTME: Bridges client callbacks and slot watchers into bubbletea messages
// ABOUTME: Lets the pipeline, expiry timer and listener talk to the running program

package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/session"
)

// noticeMsg carries a user-visible failure notice
type noticeMsg struct {
	notice client.Notice
}

// hardNavigateMsg asks the root model to drop all state and restart at path
type hardNavigateMsg struct {
	path string
}

// slotMsg is a new value for a notification slot. A nil event means the
// slot was reset by logout.
type slotMsg struct {
	slot  session.Slot
	event *session.Event
}

// listenerStatusMsg reports the realtime channel going up or down
type listenerStatusMsg struct {
	connected bool
}

// Bridge implements client.Notifier and client.Navigator by posting
// messages to a bubbletea program. Messages sent before Attach are
// dropped.
type Bridge struct {
	mu   sync.RWMutex
	sink func(tea.Msg)
	box  *outbox
}

// NewBridge creates an unattached bridge
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts delivering to p. Delivery never blocks the sender, which
// may be p's own Update loop, and keeps the order messages were sent in.
func (b *Bridge) Attach(p *tea.Program) {
	box := newOutbox(p.Send)
	b.mu.Lock()
	b.box = box
	b.mu.Unlock()
	b.attach(box.push)
}

func (b *Bridge) attach(sink func(tea.Msg)) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// Close detaches the bridge and stops delivery
func (b *Bridge) Close() {
	b.mu.Lock()
	box := b.box
	b.sink = nil
	b.box = nil
	b.mu.Unlock()
	if box != nil {
		box.close()
	}
}

// Send posts msg to the attached program
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}

// Notify implements client.Notifier
func (b *Bridge) Notify(n client.Notice) {
	b.Send(noticeMsg{notice: n})
}

// HardNavigate implements client.Navigator
func (b *Bridge) HardNavigate(path string) {
	b.Send(hardNavigateMsg{path: path})
}

// ListenerStatus is a realtime.WithStatusHook callback
func (b *Bridge) ListenerStatus(connected bool) {
	b.Send(listenerStatusMsg{connected: connected})
}

// WatchSlots subscribes to every notification slot and forwards values as
// slotMsg. The returned func unsubscribes.
func (b *Bridge) WatchSlots(notes *session.Notifications) (func(), error) {
	var cancels []func()
	stop := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, slot := range session.AllSlots {
		cancel, err := notes.Watch(slot, b.slotWatcher(slot))
		if err != nil {
			stop()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return stop, nil
}

func (b *Bridge) slotWatcher(slot session.Slot) func(*session.Event) {
	return func(ev *session.Event) {
		b.Send(slotMsg{slot: slot, event: ev})
	}
}

// outbox hands messages to deliver from a single goroutine, in the order
// they were pushed. push never blocks.
type outbox struct {
	mu      sync.Mutex
	queue   []tea.Msg
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	deliver func(tea.Msg)
}

func newOutbox(deliver func(tea.Msg)) *outbox {
	o := &outbox{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go o.run()
	return o
}

func (o *outbox) push(msg tea.Msg) {
	o.mu.Lock()
	o.queue = append(o.queue, msg)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) run() {
	for {
		select {
		case <-o.done:
			return
		case <-o.wake:
		}
		for {
			o.mu.Lock()
			batch := o.queue
			o.queue = nil
			o.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, msg := range batch {
				select {
				case <-o.done:
					return
				default:
				}
				o.deliver(msg)
			}
		}
	}
}

func (o *outbox) close() {
	o.once.Do(func() { close(o.done) })
}
