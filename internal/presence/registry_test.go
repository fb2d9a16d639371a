package presence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"voicechat-service/internal/models"
)

type stubSession struct {
	id string
}

func (s *stubSession) ID() string                        { return s.id }
func (s *stubSession) Deliver(env models.Envelope) error { return nil }
func (s *stubSession) ResumeSeq() uint64                 { return 0 }
func (s *stubSession) Close()                            {}

func TestConnectFlipsOnline(t *testing.T) {
	r := NewRegistry()

	require.False(t, r.IsOnline(1))
	r.Connect(1, &stubSession{id: "a"})
	require.True(t, r.IsOnline(1))

	status, _ := r.Status(1)
	require.Equal(t, models.PresenceOnline, status)
}

func TestDisconnectLastHandleGoesOffline(t *testing.T) {
	r := NewRegistry()
	r.Connect(1, &stubSession{id: "a"})

	r.Disconnect(1, "a")
	require.False(t, r.IsOnline(1))

	status, _ := r.Status(1)
	require.Equal(t, models.PresenceOffline, status)
}

func TestMultipleHandlesStayOnlineUntilLastDisconnect(t *testing.T) {
	r := NewRegistry()
	r.Connect(1, &stubSession{id: "phone"})
	r.Connect(1, &stubSession{id: "laptop"})

	r.Disconnect(1, "phone")
	require.True(t, r.IsOnline(1))
	require.Len(t, r.Sessions(1), 1)

	r.Disconnect(1, "laptop")
	require.False(t, r.IsOnline(1))
}

func TestSetStatusAwayWhileConnected(t *testing.T) {
	r := NewRegistry()
	r.Connect(1, &stubSession{id: "a"})

	r.SetStatus(1, models.PresenceAway)
	status, _ := r.Status(1)
	require.Equal(t, models.PresenceAway, status)

	// Declared status survives until explicitly changed or disconnect.
	require.True(t, r.IsOnline(1))
}

func TestSetStatusIgnoredWithoutConnection(t *testing.T) {
	r := NewRegistry()

	r.SetStatus(1, models.PresenceAway)
	status, _ := r.Status(1)
	require.Equal(t, models.PresenceOffline, status)
}

func TestSubscriberSeesTransitions(t *testing.T) {
	r := NewRegistry()
	var changes []Change
	r.Subscribe(func(c Change) { changes = append(changes, c) })

	r.Connect(1, &stubSession{id: "a"})
	r.Disconnect(1, "a")

	require.Len(t, changes, 2)
	require.Equal(t, models.PresenceOnline, changes[0].Status)
	require.Equal(t, models.PresenceOffline, changes[1].Status)
	require.Equal(t, 1, changes[0].UserID)
}

func TestConnectPreservesDeclaredAway(t *testing.T) {
	r := NewRegistry()
	r.Connect(1, &stubSession{id: "phone"})
	r.SetStatus(1, models.PresenceAway)

	var changes []Change
	r.Subscribe(func(c Change) { changes = append(changes, c) })

	// Opening another device must not override the declared status.
	r.Connect(1, &stubSession{id: "laptop"})

	status, _ := r.Status(1)
	require.Equal(t, models.PresenceAway, status)
	require.Empty(t, changes)
}

func TestRepeatedConnectDoesNotRenotify(t *testing.T) {
	r := NewRegistry()
	var changes []Change
	r.Subscribe(func(c Change) { changes = append(changes, c) })

	r.Connect(1, &stubSession{id: "a"})
	r.Connect(1, &stubSession{id: "b"})

	require.Len(t, changes, 1)
}
