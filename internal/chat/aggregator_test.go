package chat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/socketio"
	"github.com/Ibeneme/kindred-app-sub000/internal/store/memstore"
)

func TestApplyMessage_IncrementsAndMovesToFront(t *testing.T) {
	list := []model.Conversation{
		{ID: "a", Name: "Anna", Unread: 2, LastMessage: "old a", LastMessageAt: 100},
		{ID: "b", Name: "Ben", Unread: 0, LastMessage: "old b", LastMessageAt: 50},
	}

	msg := model.Message{ID: "m1", ConversationID: "b", SenderID: "ben", Body: "new", CreatedAt: 200}
	list = ApplyMessage(list, msg, "self")

	if list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("expected b moved to front, got %+v", list)
	}
	if list[0].Unread != 1 || list[0].LastMessage != "new" || list[0].LastMessageAt != 200 {
		t.Fatalf("unexpected front entry %+v", list[0])
	}
	if total := TotalUnread(list); total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
}

func TestApplyMessage_SelfAuthoredDoesNotIncrement(t *testing.T) {
	list := []model.Conversation{{ID: "a", Unread: 2}}

	msg := model.Message{ID: "m1", ConversationID: "a", SenderID: "self", Body: "mine", CreatedAt: 10}
	list = ApplyMessage(list, msg, "self")

	if list[0].Unread != 2 || list[0].LastMessage != "mine" {
		t.Fatalf("unexpected entry %+v", list[0])
	}
}

func TestApplyMessage_UnknownConversationInserted(t *testing.T) {
	list := []model.Conversation{{ID: "a", Unread: 1}}

	msg := model.Message{ID: "m1", ConversationID: "new", SenderID: "carol", SenderName: "Carol", Body: "hey", CreatedAt: 10}
	list = ApplyMessage(list, msg, "self")

	if len(list) != 2 || list[0].ID != "new" || list[0].Unread != 1 || list[0].Name != "Carol" {
		t.Fatalf("unexpected list %+v", list)
	}

	// A self-authored first message opens the entry with zero unread.
	list = ApplyMessage(nil, model.Message{ID: "m2", ConversationID: "mine", SenderID: "self", Body: "hi"}, "self")
	if list[0].Unread != 0 {
		t.Fatalf("expected zero unread, got %+v", list[0])
	}
}

func TestMarkReadAndTotalUnread(t *testing.T) {
	list := []model.Conversation{
		{ID: "a", Unread: 2},
		{ID: "b", Unread: 1},
		{ID: "c", Unread: -5},
	}

	MarkRead(list, "a")
	if list[0].Unread != 0 {
		t.Fatalf("expected a cleared, got %+v", list[0])
	}
	// Negative counters from a misbehaving feed never drag the total down.
	if total := TotalUnread(list); total != 1 {
		t.Fatalf("expected total 1, got %d", total)
	}
	MarkRead(list, "missing")
}

var chatTestTokenConfig = auth.TokenConfig{
	Secret: "chat-test-secret",
	Expiry: time.Hour,
	Issuer: "kindred",
}

func startChatServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	srv := socketio.NewServer(socketio.Deps{Store: st, TokenConfig: chatTestTokenConfig})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, st
}

func dialChatClient(t *testing.T, ts *httptest.Server, userID string) *socketio.Client {
	t.Helper()
	token, err := auth.CreateToken(userID, chatTestTokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	c, err := socketio.Dial(socketio.DialOptions{
		URL:              "ws" + strings.TrimPrefix(ts.URL, "http"),
		Token:            token,
		HandshakeTimeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAggregator_SnapshotThenLiveEvent(t *testing.T) {
	ts, st := startChatServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", SenderName: "Bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})

	alice := dialChatClient(t, ts, "alice")
	agg := NewAggregator(alice, "alice", nil)
	agg.Start()
	defer agg.Stop()

	if agg.Phase() != PhaseUninitialized {
		t.Fatalf("expected uninitialized phase")
	}
	if err := agg.Focus(); err != nil {
		t.Fatalf("Focus: %v", err)
	}
	waitUntil(t, "snapshot", func() bool { return agg.Phase() == PhaseReady })

	list := agg.Conversations()
	if len(list) != 1 || list[0].ID != "c1" || list[0].Unread != 1 {
		t.Fatalf("unexpected snapshot %+v", list)
	}

	// A live message from bob bumps the unread without a new snapshot.
	bob := dialChatClient(t, ts, "bob")
	err := bob.Emit("send_message", model.Message{ID: "m2", ConversationID: "c1", ReceiverID: "alice", Body: "again", CreatedAt: 200})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	waitUntil(t, "live event", func() bool { return agg.TotalUnread() == 2 })

	list = agg.Conversations()
	if list[0].LastMessage != "again" {
		t.Fatalf("unexpected list %+v", list)
	}

	agg.MarkRead("c1")
	if agg.TotalUnread() != 0 {
		t.Fatalf("expected zero unread after MarkRead")
	}
}

func TestAggregator_StopUnsubscribes(t *testing.T) {
	ts, st := startChatServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})

	alice := dialChatClient(t, ts, "alice")
	agg := NewAggregator(alice, "alice", nil)
	agg.Start()
	_ = agg.Focus()
	waitUntil(t, "snapshot", func() bool { return agg.Phase() == PhaseReady })
	agg.Stop()

	// The list is kept after Stop, it just stops updating.
	bob := dialChatClient(t, ts, "bob")
	_ = bob.Emit("send_message", model.Message{ID: "m2", ConversationID: "c1", ReceiverID: "alice", Body: "again", CreatedAt: 200})
	time.Sleep(100 * time.Millisecond)

	if list := agg.Conversations(); len(list) != 1 || list[0].LastMessage != "hello" {
		t.Fatalf("expected frozen list, got %+v", list)
	}
}
