package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/ws"
)

// SetMemberRequest is the request body for adding or changing a member.
type SetMemberRequest struct {
	Email string   `json:"email"`
	Role  acl.Role `json:"role"`
}

// handleListMembers handles GET /boards/{boardID}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	if s.members == nil {
		http.Error(w, "membership is disabled", http.StatusNotFound)

		return
	}

	boardID, ok := s.authorizedBoard(w, r, acl.ActionView)
	if !ok {
		return
	}

	members, err := s.members.Members(boardID)
	if err != nil {
		writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, members)
}

// handleSetMember handles PUT /boards/{boardID}/members and tells the
// board's subscribers that its membership changed.
func (s *Server) handleSetMember(w http.ResponseWriter, r *http.Request) {
	if s.members == nil {
		http.Error(w, "membership is disabled", http.StatusNotFound)

		return
	}

	boardID, ok := s.authorizedBoard(w, r, acl.ActionManage)
	if !ok {
		return
	}

	var req SetMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		http.Error(w, "member email is required", http.StatusBadRequest)

		return
	}

	if err := s.members.Grant(boardID, req.Email, req.Role); err != nil {
		writeStoreError(w, err)

		return
	}

	s.notifyBoard(boardID, ws.BoardUpdateMembers, UserEmailFromContext(r.Context()))

	writeJSON(w, http.StatusOK, acl.Member{BoardID: boardID, Email: req.Email, Role: req.Role})
}

// handleRemoveMember handles DELETE /boards/{boardID}/members/{email}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if s.members == nil {
		http.Error(w, "membership is disabled", http.StatusNotFound)

		return
	}

	boardID, ok := s.authorizedBoard(w, r, acl.ActionManage)
	if !ok {
		return
	}

	if err := s.members.Revoke(boardID, chi.URLParam(r, "email")); err != nil {
		writeStoreError(w, err)

		return
	}

	s.notifyBoard(boardID, ws.BoardUpdateMembers, UserEmailFromContext(r.Context()))

	w.WriteHeader(http.StatusNoContent)
}
