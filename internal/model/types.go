package model

import "encoding/json"

type User struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
	Verified    bool   `json:"verified"`
	CreatedAt   int64  `json:"createdAt"`

	// Server-side only, never serialized.
	PasswordHash string `json:"-"`
	OTPCode      string `json:"-"`
	OTPExpiresAt int64  `json:"-"`
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Family struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   string `json:"creatorId"`
	JoinCode    string `json:"joinCode"`
	CreatedAt   int64  `json:"createdAt"`
}

// Conversation is one entry of a user's conversation list: a one-to-one
// thread keyed by its uuid, described from the viewing user's side.
type Conversation struct {
	ID            string `json:"uuid"`
	PartnerID     string `json:"userId"`
	Name          string `json:"fullName"`
	Avatar        string `json:"avatar,omitempty"`
	LastMessage   string `json:"lastMessage"`
	LastMessageAt int64  `json:"lastMessageAt"`
	Unread        int    `json:"unreadCount"`
}

// Message is a single chat line. The id is client-generated on optimistic
// sends and echoed back unchanged by the server.
type Message struct {
	ID             string `json:"messageUuid"`
	ConversationID string `json:"uuid"`
	SenderID       string `json:"userId"`
	SenderName     string `json:"fullName"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Body           string `json:"message"`
	CreatedAt      int64  `json:"createdAt"`
}

// Document is a generic family-scoped resource record; news, tasks, polls,
// reports, suggestions, donations and notifications all share this shape.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"-"`
	FamilyID   string          `json:"familyId,omitempty"`
	OwnerID    string          `json:"ownerId"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  int64           `json:"createdAt"`
	UpdatedAt  int64           `json:"updatedAt"`
}
