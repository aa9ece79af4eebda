// Package chat holds the client-side conversation state: the inbox
// aggregator that folds snapshots and live events into an ordered
// conversation list, and the per-thread message view.
package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/socketio"
)

// Phase describes how far the aggregator has come since start-up.
type Phase int

const (
	// PhaseUninitialized means no snapshot has ever been requested.
	PhaseUninitialized Phase = iota
	// PhaseLoading means a snapshot request is outstanding.
	PhaseLoading
	// PhaseReady means at least one snapshot has been applied. The
	// aggregator never leaves this phase, even across reconnects: a stale
	// list beats an empty screen.
	PhaseReady
)

// ApplyMessage folds one live message event into a conversation list and
// returns the updated list. The touched conversation moves to the front.
// Unread grows by one unless selfID authored the message; a message for an
// unknown conversation inserts a new entry at the front.
func ApplyMessage(list []model.Conversation, msg model.Message, selfID string) []model.Conversation {
	for i := range list {
		if list[i].ID != msg.ConversationID {
			continue
		}
		conv := list[i]
		conv.LastMessage = msg.Body
		conv.LastMessageAt = msg.CreatedAt
		if msg.SenderID != selfID {
			conv.Unread++
		}
		// Move to front, keeping the rest in order.
		out := make([]model.Conversation, 0, len(list))
		out = append(out, conv)
		out = append(out, list[:i]...)
		out = append(out, list[i+1:]...)
		return out
	}

	conv := model.Conversation{
		ID:            msg.ConversationID,
		PartnerID:     msg.SenderID,
		Name:          msg.SenderName,
		LastMessage:   msg.Body,
		LastMessageAt: msg.CreatedAt,
	}
	if msg.SenderID != selfID {
		conv.Unread = 1
	}
	return append([]model.Conversation{conv}, list...)
}

// MarkRead zeroes the unread count of one conversation in place.
func MarkRead(list []model.Conversation, conversationID string) {
	for i := range list {
		if list[i].ID == conversationID {
			list[i].Unread = 0
			return
		}
	}
}

// TotalUnread recomputes the badge total from scratch. It is never negative.
func TotalUnread(list []model.Conversation) int {
	total := 0
	for _, conv := range list {
		if conv.Unread > 0 {
			total += conv.Unread
		}
	}
	return total
}

// Aggregator maintains one user's conversation list from snapshot and
// incremental events. All exported methods are safe for concurrent use.
type Aggregator struct {
	client *socketio.Client
	selfID string
	log    *logger.Logger

	mu    sync.Mutex
	phase Phase
	list  []model.Conversation
	subs  []*socketio.Subscription
}

func NewAggregator(client *socketio.Client, selfID string, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{client: client, selfID: selfID, log: log}
}

// Start subscribes to the snapshot and live-event channels. Call once;
// pair with Stop.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.subs) > 0 {
		return
	}
	a.subs = append(a.subs,
		a.client.On("conversations_list", a.onSnapshot),
		a.client.On("latest_msg_"+a.selfID, a.onMessage),
	)
}

// Stop removes the subscriptions. The current list survives.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()
	for _, s := range subs {
		s.Off()
	}
}

// Focus requests a fresh snapshot. Called on every return to the inbox
// view; requests are never coalesced, each one is answered.
func (a *Aggregator) Focus() error {
	a.mu.Lock()
	if a.phase == PhaseUninitialized {
		a.phase = PhaseLoading
	}
	a.mu.Unlock()
	return a.client.Emit("get_conversations", map[string]string{"userId": a.selfID})
}

// MarkRead zeroes one conversation's unread immediately, without waiting
// for the server to confirm.
func (a *Aggregator) MarkRead(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	MarkRead(a.list, conversationID)
}

// Conversations returns a copy of the current list, newest activity first.
func (a *Aggregator) Conversations() []model.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Conversation, len(a.list))
	copy(out, a.list)
	return out
}

func (a *Aggregator) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

func (a *Aggregator) TotalUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return TotalUnread(a.list)
}

func (a *Aggregator) onSnapshot(args []json.RawMessage) {
	if len(args) < 1 {
		return
	}
	var list []model.Conversation
	if err := json.Unmarshal(args[0], &list); err != nil {
		a.log.Warn("bad conversations snapshot", zap.Error(err))
		return
	}
	a.mu.Lock()
	a.list = list
	a.phase = PhaseReady
	a.mu.Unlock()
}

func (a *Aggregator) onMessage(args []json.RawMessage) {
	if len(args) < 1 {
		return
	}
	var msg model.Message
	if err := json.Unmarshal(args[0], &msg); err != nil || msg.ConversationID == "" {
		return
	}
	a.mu.Lock()
	a.list = ApplyMessage(a.list, msg, a.selfID)
	a.mu.Unlock()
}
