package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/storage"
	"github.com/serroba/online-board/internal/ws"
)

// handleWebSocket handles GET /ws?boardId={id}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	boardID, err := strconv.ParseInt(r.URL.Query().Get("boardId"), 10, 64)
	if err != nil || boardID <= 0 {
		http.Error(w, "boardId query parameter is required", http.StatusBadRequest)

		return
	}

	if _, err := s.store.GetBoard(boardID); err != nil {
		writeStoreError(w, err)

		return
	}

	userEmail := UserEmailFromContext(r.Context())

	if err := s.authorize(boardID, userEmail, acl.ActionView); err != nil {
		writeStoreError(w, err)

		return
	}

	client, cleanup, err := s.setupWebSocketClient(w, r, boardID, userEmail)
	if err != nil {
		return
	}

	defer cleanup()

	s.handleMessages(client, boardID)
}

// setupWebSocketClient upgrades the connection, registers the client with
// the hub, and starts its write pump.
func (s *Server) setupWebSocketClient(
	w http.ResponseWriter, r *http.Request, boardID int64, userEmail string,
) (*ws.Client, func(), error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("[api] websocket upgrade error: %v", err)

		return nil, nil, err
	}

	conn.SetReadLimit(s.maxMessageBytes)

	client := ws.NewClient(uuid.NewString(), userEmail, conn)
	s.hub.Register(client)
	s.hub.Subscribe(client, boardID)

	go client.WritePump()

	glog.V(1).Infof("[api] %s joined board %d as %s", userEmail, boardID, client.ID)

	cleanup := func() {
		s.hub.Unregister(client)
		_ = client.Close()

		glog.V(1).Infof("[api] %s left board %d", client.ID, boardID)
	}

	return client, cleanup, nil
}

// handleMessages processes incoming messages from a client until its
// connection fails.
func (s *Server) handleMessages(client *ws.Client, boardID int64) {
	for {
		env, err := client.Receive()
		if err != nil {
			return
		}

		env.BoardID = boardID
		if env.Sender == "" {
			env.Sender = client.ID
		}

		switch {
		case env.Type.IsDrawing():
			s.handleAction(client, boardID, env)
		case env.Type == ws.MessageTypeChat:
			s.handleChat(client, boardID, env)
		default:
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")
		}
	}
}

// handleAction records a drawing action and echoes it to the board,
// sender included.
func (s *Server) handleAction(client *ws.Client, boardID int64, env ws.Envelope) {
	if !s.allowed(client, boardID, acl.ActionDraw) {
		return
	}

	var action board.ActionPayload
	if err := env.Decode(&action); err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid action payload")

		return
	}

	if env.InstanceID != "" {
		action.InstanceID = env.InstanceID
	}

	if action.InstanceID == "" {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "instanceId is required")

		return
	}

	if env.Type != ws.MessageTypeObjectDelete {
		if err := action.Validate(); err != nil {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, err.Error())

			return
		}
	}

	env.InstanceID = action.InstanceID

	s.sequencer.Lock()
	defer s.sequencer.Unlock()

	if _, err := s.store.AppendAction(boardID, env.Type, action, env.Sender); err != nil {
		s.sendStoreError(client, err)

		return
	}

	if _, err := storage.Compact(s.store, s.snapshotPolicy, boardID); err != nil {
		glog.Errorf("[api] snapshot board %d: %v", boardID, err)
	}

	s.hub.Broadcast(boardID, env, "")
}

// handleChat assigns the message its permanent id and timestamp, records
// it, and echoes it to the board.
func (s *Server) handleChat(client *ws.Client, boardID int64, env ws.Envelope) {
	if !s.allowed(client, boardID, acl.ActionChat) {
		return
	}

	var msg board.ChatMessage
	if err := env.Decode(&msg); err != nil {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid chat payload")

		return
	}

	msg.InstanceID = env.InstanceID
	msg.SenderEmail = client.UserID

	s.sequencer.Lock()
	defer s.sequencer.Unlock()

	stored, err := s.store.AppendMessage(boardID, msg)
	if err != nil {
		s.sendStoreError(client, err)

		return
	}

	out, err := ws.NewEnvelope(ws.MessageTypeChat, env.InstanceID, env.Sender, boardID, stored)
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInternalError, "failed to encode chat message")

		return
	}

	s.hub.Broadcast(boardID, out, "")
}

// allowed checks the client's role on every message, so a role change takes
// effect without reconnecting.
func (s *Server) allowed(client *ws.Client, boardID int64, action acl.Action) bool {
	err := s.authorize(boardID, client.UserID, action)
	if err == nil {
		return true
	}

	if errors.Is(err, acl.ErrAccessDenied) {
		_ = client.SendError(ws.ErrorCodeForbidden, "not allowed to "+action.String()+" on this board")
	} else {
		s.sendStoreError(client, err)
	}

	return false
}

func (s *Server) sendStoreError(client *ws.Client, err error) {
	if errors.Is(err, storage.ErrBoardNotFound) {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "board not found")

		return
	}

	glog.Errorf("[api] store error for %s: %v", client.ID, err)
	_ = client.SendError(ws.ErrorCodeInternalError, "internal error")
}
