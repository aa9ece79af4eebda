// Package store defines the server-side persistence contract. Two
// implementations exist: memstore for tests and sqlstore for real runs.
package store

import (
	"encoding/json"
	"errors"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
	ErrOTPInvalid   = errors.New("invalid or expired code")
)

type Store interface {
	// Users
	CreateUser(u model.User) error
	GetUserByEmail(email string) (model.User, bool)
	GetUserByID(id string) (model.User, bool)
	SearchUsers(query string) []model.User
	SetUserOTP(email, code string, expiresAt int64) error
	ConsumeUserOTP(email, code string, now int64) error
	UpdateUserPassword(email, passwordHash string) error

	// Families
	CreateFamily(f model.Family) error
	GetFamily(id string) (model.Family, bool)
	GetFamilyByJoinCode(code string) (model.Family, bool)
	AddFamilyMember(familyID, userID string, now int64) error
	ListFamilies(userID string) []model.Family
	ListFamilyMembers(familyID string) []model.User

	// Conversations and messages
	ListConversations(userID string) []model.Conversation
	AppendChatMessage(msg model.Message) (bool, error)
	ListChatMessages(conversationID string, limit int) []model.Message
	MarkConversationRead(conversationID, userID string)

	// Generic family-scoped resources
	CreateDocument(d model.Document) error
	GetDocument(collection, id string) (model.Document, bool)
	ListDocuments(collection, familyID string) []model.Document
	UpdateDocument(collection, id string, body json.RawMessage, now int64) bool
	DeleteDocument(collection, id string) bool
}
