package socketio

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store/memstore"
)

var testTokenConfig = auth.TokenConfig{
	Secret: "socket-test-secret",
	Expiry: time.Hour,
	Issuer: "kindred",
}

func startTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	srv := NewServer(Deps{Store: st, TokenConfig: testTokenConfig})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, st
}

func dialTestClient(t *testing.T, ts *httptest.Server, userID string) *Client {
	t.Helper()
	token, err := auth.CreateToken(userID, testTokenConfig)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	c, err := Dial(DialOptions{URL: wsURL, Token: token, HandshakeTimeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, ch <-chan []json.RawMessage, what string) []json.RawMessage {
	t.Helper()
	select {
	case args := <-ch:
		return args
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestDial_RejectsBadToken(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, err := Dial(DialOptions{URL: wsURL, Token: "garbage", HandshakeTimeout: 2 * time.Second}, nil)
	if err == nil {
		t.Fatalf("expected dial to fail with bad token")
	}
	if !strings.Contains(err.Error(), "Invalid authentication token") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDial_RejectsMissingToken(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, err := Dial(DialOptions{URL: wsURL, HandshakeTimeout: 2 * time.Second}, nil)
	if err == nil || !strings.Contains(err.Error(), "Missing token") {
		t.Fatalf("expected missing-token rejection, got %v", err)
	}
}

func TestJoinRoom_ReplaysHistory(t *testing.T) {
	ts, st := startTestServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})
	_, _ = st.AppendChatMessage(model.Message{ID: "m2", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "again", CreatedAt: 200})

	c := dialTestClient(t, ts, "alice")
	loaded := make(chan []json.RawMessage, 1)
	c.On("load_messages", func(args []json.RawMessage) { loaded <- args })

	if err := c.Emit("join_room", map[string]string{"uuid": "c1", "userId": "alice"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	args := waitFor(t, loaded, "load_messages")
	var history []model.Message
	if err := json.Unmarshal(args[0], &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) != 2 || history[0].ID != "m1" || history[1].ID != "m2" {
		t.Fatalf("unexpected history %+v", history)
	}

	// Joining the room clears the member's unread count.
	if convs := st.ListConversations("alice"); len(convs) != 1 || convs[0].Unread != 0 {
		t.Fatalf("expected unread cleared, got %+v", convs)
	}
}

func TestSendMessage_FansOutToRoomAndPresence(t *testing.T) {
	ts, _ := startTestServer(t)

	alice := dialTestClient(t, ts, "alice")
	bob := dialTestClient(t, ts, "bob")

	aliceJoined := make(chan []json.RawMessage, 1)
	bobJoined := make(chan []json.RawMessage, 1)
	alice.On("load_messages", func(args []json.RawMessage) { aliceJoined <- args })
	bob.On("load_messages", func(args []json.RawMessage) { bobJoined <- args })

	received := make(chan []json.RawMessage, 1)
	latest := make(chan []json.RawMessage, 1)
	bob.On("receive_message", func(args []json.RawMessage) { received <- args })
	bob.On("latest_msg_bob", func(args []json.RawMessage) { latest <- args })

	_ = alice.Emit("join_room", map[string]string{"uuid": "c1", "userId": "alice"})
	_ = bob.Emit("join_room", map[string]string{"uuid": "c1", "userId": "bob"})
	waitFor(t, aliceJoined, "alice load_messages")
	waitFor(t, bobJoined, "bob load_messages")

	out := model.Message{ID: "m1", ConversationID: "c1", SenderName: "Alice", ReceiverID: "bob", Body: "hi bob", CreatedAt: 100}
	if err := alice.Emit("send_message", out); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var got model.Message
	if err := json.Unmarshal(waitFor(t, received, "receive_message")[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "m1" || got.Body != "hi bob" || got.SenderID != "alice" {
		t.Fatalf("unexpected message %+v", got)
	}

	if err := json.Unmarshal(waitFor(t, latest, "latest_msg_bob")[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "m1" {
		t.Fatalf("unexpected presence message %+v", got)
	}
}

func TestSendMessage_DuplicateNotRebroadcast(t *testing.T) {
	ts, _ := startTestServer(t)

	alice := dialTestClient(t, ts, "alice")
	bob := dialTestClient(t, ts, "bob")

	bobJoined := make(chan []json.RawMessage, 1)
	bob.On("load_messages", func(args []json.RawMessage) { bobJoined <- args })
	_ = bob.Emit("join_room", map[string]string{"uuid": "c1", "userId": "bob"})
	waitFor(t, bobJoined, "bob load_messages")

	var mu sync.Mutex
	var count int
	received := make(chan []json.RawMessage, 4)
	bob.On("receive_message", func(args []json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
		received <- args
	})

	out := model.Message{ID: "m1", ConversationID: "c1", ReceiverID: "bob", Body: "once", CreatedAt: 100}
	_ = alice.Emit("send_message", out)
	waitFor(t, received, "first delivery")

	// Retransmission of the same message id is swallowed. The snapshot
	// round-trip below doubles as a barrier: by the time it answers, the
	// duplicate has been processed.
	_ = alice.Emit("send_message", out)

	snapshots := make(chan []json.RawMessage, 1)
	alice.On("conversations_list", func(args []json.RawMessage) { snapshots <- args })
	_ = alice.Emit("get_conversations", map[string]string{"userId": "alice"})
	waitFor(t, snapshots, "conversations_list")

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", count)
	}
}

func TestGetConversations_Snapshot(t *testing.T) {
	ts, st := startTestServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})

	c := dialTestClient(t, ts, "alice")
	snapshots := make(chan []json.RawMessage, 1)
	c.On("conversations_list", func(args []json.RawMessage) { snapshots <- args })

	if err := c.Emit("get_conversations", map[string]string{"userId": "alice"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var list []model.Conversation
	if err := json.Unmarshal(waitFor(t, snapshots, "conversations_list")[0], &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c1" || list[0].Unread != 1 {
		t.Fatalf("unexpected snapshot %+v", list)
	}
}

func TestGetConversations_AnswersForConnectionIdentityOnly(t *testing.T) {
	ts, st := startTestServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})
	_, _ = st.AppendChatMessage(model.Message{ID: "m2", ConversationID: "c2", SenderID: "alice", ReceiverID: "carol", Body: "hi carol", CreatedAt: 200})

	carol := dialTestClient(t, ts, "carol")
	snapshots := make(chan []json.RawMessage, 1)
	carol.On("conversations_list", func(args []json.RawMessage) { snapshots <- args })

	// Naming someone else in the payload must not leak their inbox.
	if err := carol.Emit("get_conversations", map[string]string{"userId": "alice"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var list []model.Conversation
	if err := json.Unmarshal(waitFor(t, snapshots, "conversations_list")[0], &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c2" {
		t.Fatalf("expected carol's own single conversation, got %+v", list)
	}
}

func TestSubscription_Off(t *testing.T) {
	ts, st := startTestServer(t)
	_, _ = st.AppendChatMessage(model.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", ReceiverID: "alice", Body: "hello", CreatedAt: 100})

	c := dialTestClient(t, ts, "alice")

	dropped := make(chan []json.RawMessage, 1)
	sub := c.On("conversations_list", func(args []json.RawMessage) { dropped <- args })
	sub.Off()
	sub.Off()

	kept := make(chan []json.RawMessage, 1)
	c.On("conversations_list", func(args []json.RawMessage) { kept <- args })

	_ = c.Emit("get_conversations", map[string]string{"userId": "alice"})
	waitFor(t, kept, "conversations_list")

	select {
	case <-dropped:
		t.Fatalf("removed handler must not fire")
	default:
	}
}
