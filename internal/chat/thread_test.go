package chat

import (
	"testing"
	"time"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
)

func TestThread_HistoryThenLive(t *testing.T) {
	ts, st := startChatServer(t)
	for i, body := range []string{"one", "two", "three", "four", "five"} {
		_, _ = st.AppendChatMessage(model.Message{
			ID: "m" + string(rune('1'+i)), ConversationID: "c1",
			SenderID: "bob", ReceiverID: "alice", Body: body, CreatedAt: int64(100 + i),
		})
	}

	alice := dialChatClient(t, ts, "alice")
	th, err := JoinThread(alice, "c1", "alice", "Alice", "bob")
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	defer th.Leave()
	waitUntil(t, "history", func() bool { return len(th.Messages()) == 5 })

	bobClient := dialChatClient(t, ts, "bob")
	bobThread, err := JoinThread(bobClient, "c1", "bob", "Bob", "alice")
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	defer bobThread.Leave()
	waitUntil(t, "bob history", func() bool { return len(bobThread.Messages()) == 5 })

	if _, err := bobThread.Send("six"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitUntil(t, "live message", func() bool { return len(th.Messages()) == 6 })

	msgs := th.Messages()
	if msgs[0].Body != "one" || msgs[4].Body != "five" || msgs[5].Body != "six" {
		t.Fatalf("unexpected order %+v", msgs)
	}
	if msgs[5].SenderID != "bob" {
		t.Fatalf("expected server-stamped sender, got %+v", msgs[5])
	}
}

func TestThread_OptimisticSendAppearsOnce(t *testing.T) {
	ts, _ := startChatServer(t)

	alice := dialChatClient(t, ts, "alice")
	th, err := JoinThread(alice, "c1", "alice", "Alice", "bob")
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	defer th.Leave()
	// Empty room still answers the join with an empty history.
	time.Sleep(100 * time.Millisecond)

	sent, err := th.Send("hello bob")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgs := th.Messages(); len(msgs) != 1 || msgs[0].ID != sent.ID {
		t.Fatalf("expected immediate local echo, got %+v", msgs)
	}

	// The sender sits in the room, so the server echoes the message back.
	// The echo carries the same id and must not duplicate the local copy.
	time.Sleep(200 * time.Millisecond)
	msgs := th.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one copy, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Body != "hello bob" || msgs[0].SenderName != "Alice" {
		t.Fatalf("unexpected message %+v", msgs[0])
	}
}

func TestThread_IgnoresOtherConversations(t *testing.T) {
	ts, _ := startChatServer(t)

	alice := dialChatClient(t, ts, "alice")
	th, err := JoinThread(alice, "c1", "alice", "Alice", "bob")
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	defer th.Leave()

	// Alice also sits in a second room on the same connection.
	other, err := JoinThread(alice, "c2", "alice", "Alice", "carol")
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	defer other.Leave()

	if _, err := other.Send("for carol"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitUntil(t, "c2 message", func() bool { return len(other.Messages()) == 1 })
	time.Sleep(100 * time.Millisecond)

	if msgs := th.Messages(); len(msgs) != 0 {
		t.Fatalf("c1 thread must ignore c2 traffic, got %+v", msgs)
	}
}
