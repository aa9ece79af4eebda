package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/socketio"
)

// Thread is one open one-to-one conversation. It joins the room, takes
// the history replay and appends live messages in arrival order. Sends
// are optimistic: the message shows up locally before the server echoes
// it, and the echo is dropped by id.
type Thread struct {
	client         *socketio.Client
	conversationID string
	selfID         string
	selfName       string
	receiverID     string

	mu       sync.Mutex
	messages []model.Message
	seen     map[string]struct{}
	subs     []*socketio.Subscription
}

// JoinThread subscribes to the thread's events and asks the server for
// the room history.
func JoinThread(client *socketio.Client, conversationID, selfID, selfName, receiverID string) (*Thread, error) {
	t := &Thread{
		client:         client,
		conversationID: conversationID,
		selfID:         selfID,
		selfName:       selfName,
		receiverID:     receiverID,
		seen:           make(map[string]struct{}),
	}
	t.subs = append(t.subs,
		client.On("load_messages", t.onHistory),
		client.On("receive_message", t.onMessage),
	)

	err := client.Emit("join_room", map[string]string{
		"uuid":     conversationID,
		"userId":   selfID,
		"fullName": selfName,
	})
	if err != nil {
		t.Leave()
		return nil, err
	}
	return t, nil
}

// Send delivers one message optimistically and returns the local copy.
func (t *Thread) Send(body string) (model.Message, error) {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: t.conversationID,
		SenderID:       t.selfID,
		SenderName:     t.selfName,
		ReceiverID:     t.receiverID,
		Body:           body,
		CreatedAt:      time.Now().UnixMilli(),
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.seen[msg.ID] = struct{}{}
	t.mu.Unlock()

	if err := t.client.Emit("send_message", msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// Messages returns a copy of the thread in arrival order.
func (t *Thread) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Leave drops the thread's subscriptions.
func (t *Thread) Leave() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()
	for _, s := range subs {
		s.Off()
	}
}

// onHistory replaces the local view with the server's replay. Optimistic
// sends that raced the join stay deduplicated through the seen set.
func (t *Thread) onHistory(args []json.RawMessage) {
	if len(args) < 1 {
		return
	}
	var history []model.Message
	if err := json.Unmarshal(args[0], &history); err != nil {
		return
	}
	var relevant []model.Message
	for _, msg := range history {
		if msg.ConversationID == t.conversationID {
			relevant = append(relevant, msg)
		}
	}
	// Several threads can share one connection; a replay that belongs to a
	// different room is not ours to apply.
	if len(history) > 0 && len(relevant) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = t.messages[:0]
	t.seen = make(map[string]struct{})
	for _, msg := range relevant {
		if _, dup := t.seen[msg.ID]; dup {
			continue
		}
		t.seen[msg.ID] = struct{}{}
		t.messages = append(t.messages, msg)
	}
}

func (t *Thread) onMessage(args []json.RawMessage) {
	if len(args) < 1 {
		return
	}
	var msg model.Message
	if err := json.Unmarshal(args[0], &msg); err != nil {
		return
	}
	if msg.ConversationID != t.conversationID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[msg.ID]; dup {
		return
	}
	t.seen[msg.ID] = struct{}{}
	t.messages = append(t.messages, msg)
}
