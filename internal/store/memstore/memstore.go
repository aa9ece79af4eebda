// Package memstore is the in-memory store.Store used by tests and small
// development runs.
package memstore

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

type conversationRecord struct {
	ID            string
	UserA         string
	UserB         string
	LastMessage   string
	LastMessageAt int64
	UnreadA       int
	UnreadB       int
	CreatedAt     int64
}

type Store struct {
	mu sync.RWMutex

	usersByID      map[string]model.User
	userIDByEmail  map[string]string
	familiesByID   map[string]model.Family
	familyMembers  map[string][]string // familyID -> userIDs, join order
	conversations  map[string]*conversationRecord
	messagesByConv map[string][]model.Message
	seenMessageIDs map[string]map[string]struct{}
	documents      map[string]map[string]model.Document // collection -> id
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		usersByID:      make(map[string]model.User),
		userIDByEmail:  make(map[string]string),
		familiesByID:   make(map[string]model.Family),
		familyMembers:  make(map[string][]string),
		conversations:  make(map[string]*conversationRecord),
		messagesByConv: make(map[string][]model.Message),
		seenMessageIDs: make(map[string]map[string]struct{}),
		documents:      make(map[string]map[string]model.Document),
	}
}

func (s *Store) CreateUser(u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.userIDByEmail[email]; ok {
		return store.ErrEmailTaken
	}
	s.usersByID[u.ID] = u
	s.userIDByEmail[email] = u.ID
	return nil
}

func (s *Store) GetUserByEmail(email string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[strings.ToLower(email)]
	if !ok {
		return model.User{}, false
	}
	u, ok := s.usersByID[id]
	return u, ok
}

func (s *Store) GetUserByID(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	return u, ok
}

func (s *Store) SearchUsers(query string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	result := make([]model.User, 0)
	for _, u := range s.usersByID {
		if q == "" || strings.Contains(strings.ToLower(u.FullName()), q) || strings.Contains(strings.ToLower(u.Email), q) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result
}

func (s *Store) SetUserOTP(email, code string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userIDByEmail[strings.ToLower(email)]
	if !ok {
		return store.ErrUserNotFound
	}
	u := s.usersByID[id]
	u.OTPCode = code
	u.OTPExpiresAt = expiresAt
	s.usersByID[id] = u
	return nil
}

func (s *Store) ConsumeUserOTP(email, code string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userIDByEmail[strings.ToLower(email)]
	if !ok {
		return store.ErrUserNotFound
	}
	u := s.usersByID[id]
	if u.OTPCode == "" || u.OTPCode != code || now > u.OTPExpiresAt {
		return store.ErrOTPInvalid
	}
	u.OTPCode = ""
	u.OTPExpiresAt = 0
	u.Verified = true
	s.usersByID[id] = u
	return nil
}

func (s *Store) UpdateUserPassword(email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userIDByEmail[strings.ToLower(email)]
	if !ok {
		return store.ErrUserNotFound
	}
	u := s.usersByID[id]
	u.PasswordHash = passwordHash
	s.usersByID[id] = u
	return nil
}

func (s *Store) CreateFamily(f model.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.familiesByID[f.ID] = f
	s.familyMembers[f.ID] = append(s.familyMembers[f.ID], f.CreatorID)
	return nil
}

func (s *Store) GetFamily(id string) (model.Family, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.familiesByID[id]
	return f, ok
}

func (s *Store) GetFamilyByJoinCode(code string) (model.Family, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.familiesByID {
		if f.JoinCode == code {
			return f, true
		}
	}
	return model.Family{}, false
}

func (s *Store) AddFamilyMember(familyID, userID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.familyMembers[familyID] {
		if id == userID {
			return nil
		}
	}
	s.familyMembers[familyID] = append(s.familyMembers[familyID], userID)
	return nil
}

func (s *Store) ListFamilies(userID string) []model.Family {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Family, 0)
	for familyID, members := range s.familyMembers {
		for _, id := range members {
			if id == userID {
				result = append(result, s.familiesByID[familyID])
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt > result[j].CreatedAt })
	return result
}

func (s *Store) ListFamilyMembers(familyID string) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.User, 0)
	for _, id := range s.familyMembers[familyID] {
		if u, ok := s.usersByID[id]; ok {
			result = append(result, u)
		}
	}
	return result
}

func (s *Store) ListConversations(userID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Conversation, 0)
	for _, rec := range s.conversations {
		var partnerID string
		var unread int
		switch userID {
		case rec.UserA:
			partnerID, unread = rec.UserB, rec.UnreadA
		case rec.UserB:
			partnerID, unread = rec.UserA, rec.UnreadB
		default:
			continue
		}

		name := partnerID
		if partner, ok := s.usersByID[partnerID]; ok {
			name = partner.FullName()
		}
		result = append(result, model.Conversation{
			ID:            rec.ID,
			PartnerID:     partnerID,
			Name:          name,
			LastMessage:   rec.LastMessage,
			LastMessageAt: rec.LastMessageAt,
			Unread:        unread,
		})
	}
	// Newest-first; ties keep their relative order.
	sort.SliceStable(result, func(i, j int) bool { return result[i].LastMessageAt > result[j].LastMessageAt })
	return result
}

// AppendChatMessage stores one message, creating the conversation on first
// contact. Returns false without error when the message id was already seen.
func (s *Store) AppendChatMessage(msg model.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[msg.ConversationID]
	if !ok {
		rec = &conversationRecord{
			ID:        msg.ConversationID,
			UserA:     msg.SenderID,
			UserB:     msg.ReceiverID,
			CreatedAt: msg.CreatedAt,
		}
		s.conversations[msg.ConversationID] = rec
	}

	seen := s.seenMessageIDs[msg.ConversationID]
	if seen == nil {
		seen = make(map[string]struct{})
		s.seenMessageIDs[msg.ConversationID] = seen
	}
	if _, dup := seen[msg.ID]; dup {
		return false, nil
	}
	seen[msg.ID] = struct{}{}

	s.messagesByConv[msg.ConversationID] = append(s.messagesByConv[msg.ConversationID], msg)
	rec.LastMessage = msg.Body
	rec.LastMessageAt = msg.CreatedAt
	if msg.SenderID == rec.UserA {
		rec.UnreadB++
	} else {
		rec.UnreadA++
	}
	return true, nil
}

func (s *Store) ListChatMessages(conversationID string, limit int) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messagesByConv[conversationID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	result := make([]model.Message, limit)
	copy(result, msgs[len(msgs)-limit:])
	return result
}

func (s *Store) MarkConversationRead(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	switch userID {
	case rec.UserA:
		rec.UnreadA = 0
	case rec.UserB:
		rec.UnreadB = 0
	}
}

func (s *Store) CreateDocument(d model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.documents[d.Collection]
	if coll == nil {
		coll = make(map[string]model.Document)
		s.documents[d.Collection] = coll
	}
	coll[d.ID] = d
	return nil
}

func (s *Store) GetDocument(collection, id string) (model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[collection][id]
	return d, ok
}

func (s *Store) ListDocuments(collection, familyID string) []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Document, 0)
	for _, d := range s.documents[collection] {
		if familyID != "" && d.FamilyID != familyID {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt > result[j].CreatedAt })
	return result
}

func (s *Store) UpdateDocument(collection, id string, body json.RawMessage, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.documents[collection][id]
	if !ok {
		return false
	}
	d.Body = body
	d.UpdatedAt = now
	s.documents[collection][id] = d
	return true
}

func (s *Store) DeleteDocument(collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[collection][id]; !ok {
		return false
	}
	delete(s.documents[collection], id)
	return true
}
