package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/session"
	"github.com/markalston/propdesk/internal/storage"
)

func TestBridge_DropsUntilAttached(t *testing.T) {
	b := NewBridge()
	b.Notify(client.Notice{Class: client.ClassServerError, Text: "boom"})

	var got []tea.Msg
	b.attach(func(m tea.Msg) { got = append(got, m) })
	b.Notify(client.Notice{Class: client.ClassForbidden, Text: "no"})
	b.HardNavigate("/login")
	b.ListenerStatus(true)

	if len(got) != 3 {
		t.Fatalf("expected 3 messages after attach, got %d", len(got))
	}
	if n, ok := got[0].(noticeMsg); !ok || n.notice.Class != client.ClassForbidden {
		t.Errorf("expected forbidden notice, got %#v", got[0])
	}
	if nav, ok := got[1].(hardNavigateMsg); !ok || nav.path != "/login" {
		t.Errorf("expected hard navigation, got %#v", got[1])
	}
	if st, ok := got[2].(listenerStatusMsg); !ok || !st.connected {
		t.Errorf("expected connected status, got %#v", got[2])
	}
}

func TestBridge_WatchSlotsForwardsUpdatesAndReset(t *testing.T) {
	store := session.Open(storage.NewMemory())
	store.Login("tok-1", ownerIdentity())

	var got []slotMsg
	b := NewBridge()
	b.attach(func(m tea.Msg) {
		if sm, ok := m.(slotMsg); ok {
			got = append(got, sm)
		}
	})
	stop, err := b.WatchSlots(store.Notifications())
	if err != nil {
		t.Fatalf("WatchSlots: %v", err)
	}

	ev := &session.Event{Kind: "new_complaint"}
	store.Notifications().Publish(session.SlotNewComplaint, ev)
	store.Logout()

	if len(got) != 2 {
		t.Fatalf("expected update and reset, got %d messages", len(got))
	}
	if got[0].slot != session.SlotNewComplaint || got[0].event != ev {
		t.Errorf("unexpected update %+v", got[0])
	}
	if got[1].slot != session.SlotNewComplaint || got[1].event != nil {
		t.Errorf("expected nil reset, got %+v", got[1])
	}

	stop()
	store.Login("tok-2", ownerIdentity())
	store.Notifications().Publish(session.SlotNewComplaint, ev)
	if len(got) != 2 {
		t.Error("expected no delivery after stop")
	}
}

func TestOutbox_DeliversInOrderWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	got := make(chan tea.Msg, 100)
	box := newOutbox(func(m tea.Msg) {
		<-release
		got <- m
	})
	defer box.close()

	// The receiver is stuck, so pushes must return on their own
	for i := 0; i < 50; i++ {
		box.push(i)
	}
	close(release)

	for want := 0; want < 50; want++ {
		select {
		case m := <-got:
			if m.(int) != want {
				t.Fatalf("expected message %d, got %v", want, m)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
}

func TestBridge_SlotUpdateThenResetArriveInOrder(t *testing.T) {
	store := session.Open(storage.NewMemory())
	store.Login("tok-1", ownerIdentity())

	got := make(chan tea.Msg, 16)
	b := NewBridge()
	box := newOutbox(func(m tea.Msg) { got <- m })
	b.attach(box.push)
	defer box.close()

	stop, err := b.WatchSlots(store.Notifications())
	if err != nil {
		t.Fatalf("WatchSlots: %v", err)
	}
	defer stop()

	store.Notifications().Publish(session.SlotNewWorkOrder, &session.Event{Kind: "new_workorder"})
	store.Logout()

	var seen []slotMsg
	for len(seen) < 2 {
		select {
		case m := <-got:
			if sm, ok := m.(slotMsg); ok {
				seen = append(seen, sm)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected update and reset, got %d", len(seen))
		}
	}
	if seen[0].event == nil || seen[1].event != nil {
		t.Errorf("expected update before nil reset, got %+v", seen)
	}
}

func TestBridge_CloseStopsDelivery(t *testing.T) {
	b := NewBridge()
	var got []tea.Msg
	b.attach(func(m tea.Msg) { got = append(got, m) })
	b.Close()
	b.ListenerStatus(true)
	if len(got) != 0 {
		t.Errorf("expected no delivery after Close, got %d", len(got))
	}
}
