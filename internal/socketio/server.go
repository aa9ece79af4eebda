package socketio

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/hub"
	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
	historyLimit               = 100
)

func conversationRoom(id string) string { return "conv:" + id }
func userRoom(id string) string         { return "user:" + id }

type Deps struct {
	Store       store.Store
	TokenConfig auth.TokenConfig
	Log         *logger.Logger
}

// Server is the realtime half of the backend: it accepts socket.io
// connections and services the chat events (join_room, send_message,
// get_conversations).
type Server struct {
	store       store.Store
	tokenConfig auth.TokenConfig
	log         *logger.Logger
	rooms       *hub.Hub
	upgrader    websocket.Upgrader
}

func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		store:       deps.Store,
		tokenConfig: deps.TokenConfig,
		log:         log,
		rooms:       hub.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	defer s.dropConn(c)

	open := openPayload{
		SID:          c.sid,
		PingInterval: 25000,
		PingTimeout:  20000,
		MaxPayload:   maxPayload,
	}
	openBytes, _ := json.Marshal(open)
	_ = c.writeText(string(engineOpen) + string(openBytes))

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleMessage(c, msg)
	})
}

func (s *Server) dropConn(c *conn) {
	s.rooms.LeaveAll(c.hubConn)
	c.close()
}

func (s *Server) handleMessage(c *conn, msg string) {
	if msg == "" {
		return
	}

	switch enginePacketType(msg[0]) {
	case enginePong:
		c.markPong()
	case engineMessage:
		s.handleSocketPayload(c, msg[1:])
	case engineClose:
		c.close()
	}
}

type connectAuth struct {
	Token string `json:"token"`
}

func (s *Server) handleSocketPayload(c *conn, payload string) {
	if payload == "" {
		return
	}

	switch socketPacketType(payload[0]) {
	case socketConnect:
		s.handleConnect(c, payload)
	case socketEvent:
		s.handleEvent(c, payload)
	}
}

func (s *Server) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}

	_, rest := parseOptionalNamespace(payload[1:])
	var authObj connectAuth
	if rest == "" || json.Unmarshal([]byte(rest), &authObj) != nil || authObj.Token == "" {
		_ = c.writeSocketError("Missing token")
		c.close()
		return
	}
	claims, err := auth.VerifyToken(authObj.Token, s.tokenConfig)
	if err != nil || claims == nil || claims.UserID == "" {
		_ = c.writeSocketError("Invalid authentication token")
		c.close()
		return
	}

	c.userID = claims.UserID
	c.connected.Store(true)
	s.rooms.Join(userRoom(c.userID), c.hubConn)

	connectPkt, err := buildSocketConnectPacket("/", map[string]string{"sid": c.sid})
	if err != nil {
		c.close()
		return
	}
	_ = c.writeText(string(engineMessage) + connectPkt)
}

func (s *Server) handleEvent(c *conn, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		return
	}

	switch pkt.Event {
	case "join_room":
		s.handleJoinRoom(c, pkt)
	case "send_message":
		s.handleSendMessage(c, pkt)
	case "get_conversations":
		s.handleGetConversations(c, pkt)
	}
}

type joinRoomBody struct {
	UUID     string `json:"uuid"`
	FullName string `json:"fullName"`
	UserID   string `json:"userId"`
}

func (s *Server) handleJoinRoom(c *conn, pkt socketEventPacket) {
	var body joinRoomBody
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil || body.UUID == "" {
		return
	}

	s.rooms.Join(conversationRoom(body.UUID), c.hubConn)
	s.store.MarkConversationRead(body.UUID, c.userID)

	history := s.store.ListChatMessages(body.UUID, historyLimit)
	s.emitTo(c, "load_messages", history)
}

func (s *Server) handleSendMessage(c *conn, pkt socketEventPacket) {
	var msg model.Message
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &msg) != nil {
		return
	}
	if msg.ConversationID == "" || msg.ID == "" || msg.Body == "" {
		return
	}
	// The sender identity comes from the authenticated connection, not the
	// event payload.
	msg.SenderID = c.userID
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	inserted, err := s.store.AppendChatMessage(msg)
	if err != nil {
		s.log.Warn("append message failed", zap.Error(err))
		return
	}
	if !inserted {
		// Duplicate delivery; the first copy was already fanned out.
		return
	}

	s.broadcast(conversationRoom(msg.ConversationID), "receive_message", msg)
	s.broadcast(userRoom(msg.SenderID), "latest_msg_"+msg.SenderID, msg)
	if msg.ReceiverID != "" {
		s.broadcast(userRoom(msg.ReceiverID), "latest_msg_"+msg.ReceiverID, msg)
	}
}

func (s *Server) handleGetConversations(c *conn, pkt socketEventPacket) {
	// The payload's userId is ignored: the snapshot is always the
	// authenticated connection's own list. Requests are never
	// deduplicated server-side; every one is answered.
	list := s.store.ListConversations(c.userID)
	s.emitTo(c, "conversations_list", list)
}

func (s *Server) emitTo(c *conn, event string, arg any) {
	payload, err := buildSocketEventPacket("/", event, arg)
	if err != nil {
		return
	}
	if err := c.writeText(string(engineMessage) + payload); err != nil {
		s.dropConn(c)
	}
}

func (s *Server) broadcast(room, event string, arg any) {
	payload, err := buildSocketEventPacket("/", event, arg)
	if err != nil {
		return
	}
	s.rooms.Broadcast(room, []byte(string(engineMessage)+payload))
}

type conn struct {
	ws      *websocket.Conn
	sid     string
	hubConn *hub.Connection

	connected atomic.Bool
	userID    string

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(25 * time.Second),
	}
	c.hubConn = &hub.Connection{Writer: (*connWriter)(c)}
	return c
}

// connWriter adapts conn to hub.Writer.
type connWriter conn

func (w *connWriter) Write(message []byte) error { return (*conn)(w).writeText(string(message)) }
func (w *connWriter) Close() error               { (*conn)(w).close(); return nil }

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.ws.Close()
}

func (c *conn) writeText(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > 20*time.Second {
			c.pingMu.Unlock()
			c.close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(25 * time.Second)
			c.pingMu.Unlock()
			_ = c.writeText(string(enginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}

func (c *conn) writeSocketError(msg string) error {
	packet, err := buildSocketEventPacket("/", "error", map[string]string{"message": msg})
	if err != nil {
		return err
	}
	return c.writeText(string(engineMessage) + packet)
}
