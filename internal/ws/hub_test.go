package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studygroup-service/internal/models"
)

const (
	userA  = "aaaaaaaa-0000-4000-8000-000000000001"
	userB  = "bbbbbbbb-0000-4000-8000-000000000002"
	userC  = "cccccccc-0000-4000-8000-000000000003"
	group1 = "11111111-0000-4000-8000-000000000001"
	group2 = "22222222-0000-4000-8000-000000000002"
)

type decodedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   json.RawMessage `json:"ack"`
}

func testSession(userID string, buffer int) *Session {
	return newSession(nil, userID, ConnInfo{ConnID: newConnID(), UserID: userID, ConnectedAt: time.Now()}, buffer)
}

func nextFrame(t *testing.T, s *Session) decodedFrame {
	t.Helper()
	select {
	case raw, ok := <-s.send:
		require.True(t, ok, "send queue closed")
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return decodedFrame{}
	}
}

func requireNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("unexpected frame %s", raw)
	default:
	}
}

type relayStub struct {
	published []models.MessageEvent
	err       error
}

func (r *relayStub) Publish(_ context.Context, event models.MessageEvent) error {
	r.published = append(r.published, event)
	return r.err
}

func messageEvent(groupID, content string) models.MessageEvent {
	return models.MessageEvent{
		Message:    models.Message{ID: models.NewID(), GroupID: groupID, SenderID: userA, Content: content, ReadBy: []string{userA}},
		SenderName: "Ahn",
	}
}

func TestHubJoinIsIdempotentAndLeaveRemoves(t *testing.T) {
	hub := NewHub(nil)
	s := testSession(userA, 4)

	hub.Join(s, group1)
	hub.Join(s, group1)
	hub.Join(s, group2)
	require.Equal(t, 1, hub.Subscribers(group1))
	require.Equal(t, []string{group1, group2}, hub.Groups(s))

	hub.Leave(s, group1)
	require.Equal(t, 0, hub.Subscribers(group1))
	require.Equal(t, []string{group2}, hub.Groups(s))
}

func TestHubRemoveCleansEveryChannel(t *testing.T) {
	hub := NewHub(nil)
	s := testSession(userA, 4)
	other := testSession(userB, 4)
	hub.Join(s, group1)
	hub.Join(s, group2)
	hub.Join(other, group1)

	hub.Remove(s)
	hub.Remove(s)

	require.Equal(t, 1, hub.Subscribers(group1))
	require.Equal(t, 0, hub.Subscribers(group2))
	require.Empty(t, hub.Groups(s))
	_, open := <-s.send
	require.False(t, open)

	hub.Join(s, group1)
	require.Equal(t, 1, hub.Subscribers(group1))

	hub.Broadcast(context.Background(), messageEvent(group1, "after disconnect"))
	require.Equal(t, "receivedMessage", nextFrame(t, other).Event)
}

func TestHubBroadcastReachesChannelOnly(t *testing.T) {
	relay := &relayStub{}
	hub := NewHub(relay)
	senderTab := testSession(userA, 4)
	senderPhone := testSession(userA, 4)
	member := testSession(userB, 4)
	elsewhere := testSession(userC, 4)
	hub.Join(senderTab, group1)
	hub.Join(senderPhone, group1)
	hub.Join(member, group1)
	hub.Join(elsewhere, group2)

	event := messageEvent(group1, "hello")
	hub.Broadcast(context.Background(), event)

	for _, s := range []*Session{senderTab, senderPhone, member} {
		f := nextFrame(t, s)
		require.Equal(t, "receivedMessage", f.Event)
		var got models.MessageEvent
		require.NoError(t, json.Unmarshal(f.Data, &got))
		require.Equal(t, "hello", got.Content)
		require.Equal(t, "Ahn", got.SenderName)
	}
	requireNoFrame(t, elsewhere)
	require.Len(t, relay.published, 1)
}

func TestHubDeliverLocalSkipsRelay(t *testing.T) {
	relay := &relayStub{}
	hub := NewHub(relay)
	s := testSession(userB, 4)
	hub.Join(s, group1)

	hub.DeliverLocal(messageEvent(group1, "from another instance"))
	require.Equal(t, "receivedMessage", nextFrame(t, s).Event)
	require.Empty(t, relay.published)
}

func TestHubRelayFailureStillDeliversLocally(t *testing.T) {
	hub := NewHub(&relayStub{err: errors.New("broker down")})
	s := testSession(userB, 4)
	hub.Join(s, group1)

	hub.Broadcast(context.Background(), messageEvent(group1, "hi"))
	require.Equal(t, "receivedMessage", nextFrame(t, s).Event)
}

func TestHubFullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	slow := testSession(userB, 1)
	fast := testSession(userA, 4)
	hub.Join(slow, group1)
	hub.Join(fast, group1)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(context.Background(), messageEvent(group1, "one"))
		hub.Broadcast(context.Background(), messageEvent(group1, "two"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full session")
	}

	require.Len(t, slow.send, 1)
	require.Len(t, fast.send, 2)
}
