// Package sqlstore is the sqlite-backed store.Store.
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT,
		date_of_birth TEXT,
		password_hash TEXT NOT NULL,
		verified INTEGER DEFAULT 0,
		otp_code TEXT DEFAULT '',
		otp_expires_at INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		creator_id TEXT REFERENCES users(id),
		join_code TEXT UNIQUE NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS family_members (
		family_id TEXT REFERENCES families(id),
		user_id TEXT REFERENCES users(id),
		joined_at INTEGER NOT NULL,
		PRIMARY KEY (family_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		last_message TEXT DEFAULT '',
		last_message_at INTEGER DEFAULT 0,
		unread_a INTEGER DEFAULT 0,
		unread_b INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT REFERENCES conversations(id),
		sender_id TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		receiver_id TEXT,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		family_id TEXT,
		owner_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, id)
	);
	`)
	return err
}

func (s *Store) CreateUser(u model.User) error {
	_, err := s.db.Exec(`INSERT INTO users
		(id, first_name, last_name, email, phone, date_of_birth, password_hash, verified, otp_code, otp_expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, strings.ToLower(u.Email), u.Phone, u.DateOfBirth,
		u.PasswordHash, u.Verified, u.OTPCode, u.OTPExpiresAt, u.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return store.ErrEmailTaken
	}
	return err
}

func (s *Store) scanUser(row *sql.Row) (model.User, bool) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.DateOfBirth,
		&u.PasswordHash, &u.Verified, &u.OTPCode, &u.OTPExpiresAt, &u.CreatedAt)
	if err != nil {
		return model.User{}, false
	}
	return u, true
}

const userColumns = `id, first_name, last_name, email, phone, date_of_birth, password_hash, verified, otp_code, otp_expires_at, created_at`

func (s *Store) GetUserByEmail(email string) (model.User, bool) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
}

func (s *Store) GetUserByID(id string) (model.User, bool) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) SearchUsers(query string) []model.User {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(`SELECT `+userColumns+` FROM users
		WHERE lower(first_name || ' ' || last_name) LIKE ? OR email LIKE ?
		ORDER BY email`, pattern, pattern)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.DateOfBirth,
			&u.PasswordHash, &u.Verified, &u.OTPCode, &u.OTPExpiresAt, &u.CreatedAt); err != nil {
			return result
		}
		result = append(result, u)
	}
	return result
}

func (s *Store) SetUserOTP(email, code string, expiresAt int64) error {
	res, err := s.db.Exec(`UPDATE users SET otp_code = ?, otp_expires_at = ? WHERE email = ?`,
		code, expiresAt, strings.ToLower(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) ConsumeUserOTP(email, code string, now int64) error {
	res, err := s.db.Exec(`UPDATE users SET otp_code = '', otp_expires_at = 0, verified = 1
		WHERE email = ? AND otp_code != '' AND otp_code = ? AND otp_expires_at >= ?`,
		strings.ToLower(email), code, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, ok := s.GetUserByEmail(email); !ok {
			return store.ErrUserNotFound
		}
		return store.ErrOTPInvalid
	}
	return nil
}

func (s *Store) UpdateUserPassword(email, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE email = ?`,
		passwordHash, strings.ToLower(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateFamily(f model.Family) error {
	_, err := s.db.Exec(`INSERT INTO families (id, name, description, creator_id, join_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, f.CreatorID, f.JoinCode, f.CreatedAt)
	if err != nil {
		return err
	}
	return s.AddFamilyMember(f.ID, f.CreatorID, f.CreatedAt)
}

func (s *Store) scanFamily(row *sql.Row) (model.Family, bool) {
	var f model.Family
	if err := row.Scan(&f.ID, &f.Name, &f.Description, &f.CreatorID, &f.JoinCode, &f.CreatedAt); err != nil {
		return model.Family{}, false
	}
	return f, true
}

func (s *Store) GetFamily(id string) (model.Family, bool) {
	return s.scanFamily(s.db.QueryRow(`SELECT id, name, description, creator_id, join_code, created_at
		FROM families WHERE id = ?`, id))
}

func (s *Store) GetFamilyByJoinCode(code string) (model.Family, bool) {
	return s.scanFamily(s.db.QueryRow(`SELECT id, name, description, creator_id, join_code, created_at
		FROM families WHERE join_code = ?`, code))
}

func (s *Store) AddFamilyMember(familyID, userID string, now int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO family_members (family_id, user_id, joined_at)
		VALUES (?, ?, ?)`, familyID, userID, now)
	return err
}

func (s *Store) ListFamilies(userID string) []model.Family {
	rows, err := s.db.Query(`SELECT f.id, f.name, f.description, f.creator_id, f.join_code, f.created_at
		FROM families f JOIN family_members m ON f.id = m.family_id
		WHERE m.user_id = ? ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.Family, 0)
	for rows.Next() {
		var f model.Family
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &f.CreatorID, &f.JoinCode, &f.CreatedAt); err != nil {
			return result
		}
		result = append(result, f)
	}
	return result
}

func (s *Store) ListFamilyMembers(familyID string) []model.User {
	rows, err := s.db.Query(`SELECT u.id, u.first_name, u.last_name, u.email, u.phone, u.date_of_birth,
		u.password_hash, u.verified, u.otp_code, u.otp_expires_at, u.created_at
		FROM users u JOIN family_members m ON u.id = m.user_id
		WHERE m.family_id = ? ORDER BY m.joined_at`, familyID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.DateOfBirth,
			&u.PasswordHash, &u.Verified, &u.OTPCode, &u.OTPExpiresAt, &u.CreatedAt); err != nil {
			return result
		}
		result = append(result, u)
	}
	return result
}

func (s *Store) ListConversations(userID string) []model.Conversation {
	rows, err := s.db.Query(`SELECT c.id,
		CASE WHEN c.user_a = ? THEN c.user_b ELSE c.user_a END,
		CASE WHEN c.user_a = ? THEN c.unread_a ELSE c.unread_b END,
		c.last_message, c.last_message_at
		FROM conversations c
		WHERE c.user_a = ? OR c.user_b = ?
		ORDER BY c.last_message_at DESC`, userID, userID, userID, userID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.Conversation, 0)
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.PartnerID, &conv.Unread, &conv.LastMessage, &conv.LastMessageAt); err != nil {
			return result
		}
		conv.Name = conv.PartnerID
		if partner, ok := s.GetUserByID(conv.PartnerID); ok {
			conv.Name = partner.FullName()
		}
		result = append(result, conv)
	}
	return result
}

func (s *Store) AppendChatMessage(msg model.Message) (bool, error) {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO conversations (id, user_a, user_b, created_at)
		VALUES (?, ?, ?, ?)`, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.CreatedAt)
	if err != nil {
		return false, err
	}

	res, err := s.db.Exec(`INSERT OR IGNORE INTO messages
		(id, conversation_id, sender_id, sender_name, receiver_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName, msg.ReceiverID, msg.Body, msg.CreatedAt)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Duplicate delivery of an already-stored message.
		return false, nil
	}

	_, err = s.db.Exec(`UPDATE conversations SET
		last_message = ?, last_message_at = ?,
		unread_a = unread_a + CASE WHEN user_a = ? THEN 0 ELSE 1 END,
		unread_b = unread_b + CASE WHEN user_b = ? THEN 0 ELSE 1 END
		WHERE id = ?`,
		msg.Body, msg.CreatedAt, msg.SenderID, msg.SenderID, msg.ConversationID)
	return true, err
}

func (s *Store) ListChatMessages(conversationID string, limit int) []model.Message {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT id, conversation_id, sender_id, sender_name, receiver_id, body, created_at
		FROM (SELECT * FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?)
		ORDER BY created_at ASC, rowid ASC`, conversationID, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		var receiver sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &receiver, &m.Body, &m.CreatedAt); err != nil {
			return result
		}
		m.ReceiverID = receiver.String
		result = append(result, m)
	}
	return result
}

func (s *Store) MarkConversationRead(conversationID, userID string) {
	_, _ = s.db.Exec(`UPDATE conversations SET
		unread_a = CASE WHEN user_a = ? THEN 0 ELSE unread_a END,
		unread_b = CASE WHEN user_b = ? THEN 0 ELSE unread_b END
		WHERE id = ?`, userID, userID, conversationID)
}

func (s *Store) CreateDocument(d model.Document) error {
	_, err := s.db.Exec(`INSERT INTO documents (collection, id, family_id, owner_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Collection, d.ID, d.FamilyID, d.OwnerID, string(d.Body), d.CreatedAt, d.UpdatedAt)
	return err
}

func (s *Store) GetDocument(collection, id string) (model.Document, bool) {
	var d model.Document
	var body string
	err := s.db.QueryRow(`SELECT collection, id, family_id, owner_id, body, created_at, updated_at
		FROM documents WHERE collection = ? AND id = ?`, collection, id).
		Scan(&d.Collection, &d.ID, &d.FamilyID, &d.OwnerID, &body, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.Document{}, false
	}
	d.Body = json.RawMessage(body)
	return d, true
}

func (s *Store) ListDocuments(collection, familyID string) []model.Document {
	query := `SELECT collection, id, family_id, owner_id, body, created_at, updated_at
		FROM documents WHERE collection = ?`
	args := []any{collection}
	if familyID != "" {
		query += ` AND family_id = ?`
		args = append(args, familyID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	result := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		var body string
		if err := rows.Scan(&d.Collection, &d.ID, &d.FamilyID, &d.OwnerID, &body, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return result
		}
		d.Body = json.RawMessage(body)
		result = append(result, d)
	}
	return result
}

func (s *Store) UpdateDocument(collection, id string, body json.RawMessage, now int64) bool {
	res, err := s.db.Exec(`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(body), now, collection, id)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *Store) DeleteDocument(collection, id string) bool {
	res, err := s.db.Exec(`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}
