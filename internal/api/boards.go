package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/storage"
	"github.com/serroba/online-board/internal/ws"
)

// CreateBoardRequest is the request body for creating a board.
type CreateBoardRequest struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// RenameBoardRequest is the request body for renaming a board.
type RenameBoardRequest struct {
	Name string `json:"name"`
}

// ObjectRecord is one object of a board's history.
type ObjectRecord struct {
	InstanceID string              `json:"instanceId"`
	Payload    board.ActionPayload `json:"payload"`
}

// BoardObjectsResponse is the response body for a board's object history,
// in server order.
type BoardObjectsResponse struct {
	BoardID  int64          `json:"boardId"`
	Sequence int            `json:"sequence"`
	Objects  []ObjectRecord `json:"objects"`
}

// BoardMessagesResponse is the response body for a board's chat history.
type BoardMessagesResponse struct {
	BoardID  int64               `json:"boardId"`
	Messages []board.ChatMessage `json:"messages"`
}

// handleListBoards handles GET /boards. With membership enabled only the
// boards the caller can view are listed.
func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.store.ListBoards()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	if s.checker != nil {
		email := UserEmailFromContext(r.Context())
		visible := boards[:0]

		for _, b := range boards {
			if ok, err := s.checker.CanPerform(b.ID, email, acl.ActionView); err == nil && ok {
				visible = append(visible, b)
			}
		}

		boards = visible
	}

	writeJSON(w, http.StatusOK, boards)
}

// handleCreateBoard handles POST /boards.
func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	if req.Name == "" {
		http.Error(w, "board name is required", http.StatusBadRequest)

		return
	}

	created, err := s.store.CreateBoard(storage.Board{ID: req.ID, Name: req.Name})
	if err != nil {
		if errors.Is(err, storage.ErrBoardExists) {
			http.Error(w, "board already exists", http.StatusConflict)

			return
		}

		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	if s.members != nil {
		if err := s.members.Grant(created.ID, UserEmailFromContext(r.Context()), acl.Owner); err != nil {
			glog.Errorf("[api] grant owner on board %d: %v", created.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleGetBoard handles GET /boards/{boardID}.
func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := s.authorizedBoard(w, r, acl.ActionView)
	if !ok {
		return
	}

	b, err := s.store.GetBoard(boardID)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, b)
}

// handleRenameBoard handles PATCH /boards/{boardID} and tells the board's
// members that its details changed.
func (s *Server) handleRenameBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := s.authorizedBoard(w, r, acl.ActionManage)
	if !ok {
		return
	}

	var req RenameBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	b, err := s.store.RenameBoard(boardID, req.Name)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	s.notifyBoard(boardID, ws.BoardUpdateDetails, UserEmailFromContext(r.Context()))

	writeJSON(w, http.StatusOK, b)
}

// handleBoardObjects handles GET /boards/{boardID}/objects.
func (s *Server) handleBoardObjects(w http.ResponseWriter, r *http.Request) {
	boardID, ok := s.authorizedBoard(w, r, acl.ActionView)
	if !ok {
		return
	}

	result, err := s.loader.Load(boardID)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	records := make([]ObjectRecord, 0, len(result.Objects))
	for _, obj := range result.Objects {
		records = append(records, ObjectRecord{InstanceID: obj.InstanceID, Payload: obj})
	}

	writeJSON(w, http.StatusOK, BoardObjectsResponse{
		BoardID:  boardID,
		Sequence: result.Sequence,
		Objects:  records,
	})
}

// handleBoardMessages handles GET /boards/{boardID}/messages.
func (s *Server) handleBoardMessages(w http.ResponseWriter, r *http.Request) {
	boardID, ok := s.authorizedBoard(w, r, acl.ActionView)
	if !ok {
		return
	}

	messages, err := s.store.LoadMessages(boardID)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, BoardMessagesResponse{BoardID: boardID, Messages: messages})
}

// notifyBoard broadcasts a board update to every subscriber of the board.
func (s *Server) notifyBoard(boardID int64, updateType, sourceEmail string) {
	if s.hub == nil {
		return
	}

	env, err := ws.NewEnvelope(ws.MessageTypeBoardUpdate, "", "", boardID, ws.BoardUpdatePayload{
		UpdateType:      updateType,
		SourceUserEmail: sourceEmail,
	})
	if err != nil {
		glog.Errorf("[api] encode board update: %v", err)

		return
	}

	s.sequencer.Lock()
	defer s.sequencer.Unlock()

	s.hub.Broadcast(boardID, env, "")
}

func boardIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	boardID, err := strconv.ParseInt(chi.URLParam(r, "boardID"), 10, 64)
	if err != nil || boardID <= 0 {
		http.Error(w, "invalid board id", http.StatusBadRequest)

		return 0, false
	}

	return boardID, true
}

// authorizedBoard parses the board id and checks the caller may perform
// action on it, writing the error response when not.
func (s *Server) authorizedBoard(w http.ResponseWriter, r *http.Request, action acl.Action) (int64, bool) {
	boardID, ok := boardIDParam(w, r)
	if !ok {
		return 0, false
	}

	if err := s.authorize(boardID, UserEmailFromContext(r.Context()), action); err != nil {
		writeStoreError(w, err)

		return 0, false
	}

	return boardID, true
}

// authorize is a no-op when membership is disabled.
func (s *Server) authorize(boardID int64, email string, action acl.Action) error {
	if s.checker == nil {
		return nil
	}

	return s.checker.RequirePermission(boardID, email, action)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrBoardNotFound):
		http.Error(w, "board not found", http.StatusNotFound)
	case errors.Is(err, acl.ErrMemberNotFound):
		http.Error(w, "member not found", http.StatusNotFound)
	case errors.Is(err, acl.ErrAccessDenied):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, acl.ErrLastOwner):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		glog.Errorf("[api] store error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("[api] failed to encode response: %v", err)
	}
}
