// Package api serves the board relay over HTTP: REST endpoints for board
// history and a websocket endpoint that echoes each accepted action to every
// subscriber of the board.
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/storage"
	"github.com/serroba/online-board/internal/ws"
)

// Server handles HTTP requests for the relay.
type Server struct {
	store           storage.Store
	members         acl.Store
	checker         *acl.Checker
	loader          *storage.HistoryLoader
	hub             *ws.Hub
	snapshotPolicy  *storage.SnapshotPolicy
	maxMessageBytes int64
	upgrader        websocket.Upgrader

	// sequencer holds append and broadcast together so every subscriber
	// receives messages in log order.
	sequencer sync.Mutex
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Store storage.Store
	// Members enables board membership. When nil every user may do anything.
	Members        acl.Store
	Hub            *ws.Hub
	SnapshotPolicy *storage.SnapshotPolicy
	// MaxMessageBytes bounds a single inbound frame. Larger frames close
	// the connection.
	MaxMessageBytes int64
}

// NewServer creates a new relay server.
func NewServer(cfg ServerConfig) *Server {
	maxMessageBytes := cfg.MaxMessageBytes
	if maxMessageBytes <= 0 {
		maxMessageBytes = ws.DefaultMaxMessageBytes
	}

	var checker *acl.Checker
	if cfg.Members != nil {
		checker = acl.NewChecker(cfg.Members)
	}

	return &Server{
		store:           cfg.Store,
		members:         cfg.Members,
		checker:         checker,
		loader:          storage.NewHistoryLoader(cfg.Store),
		hub:             cfg.Hub,
		snapshotPolicy:  cfg.SnapshotPolicy,
		maxMessageBytes: maxMessageBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.authMiddleware)

	router.Route("/boards", func(r chi.Router) {
		r.Get("/", s.handleListBoards)
		r.Post("/", s.handleCreateBoard)

		r.Route("/{boardID}", func(r chi.Router) {
			r.Get("/", s.handleGetBoard)
			r.Patch("/", s.handleRenameBoard)
			r.Get("/objects", s.handleBoardObjects)
			r.Get("/messages", s.handleBoardMessages)

			r.Route("/members", func(r chi.Router) {
				r.Get("/", s.handleListMembers)
				r.Put("/", s.handleSetMember)
				r.Delete("/{email}", s.handleRemoveMember)
			})
		})
	})

	router.Get("/ws", s.handleWebSocket)

	return router
}
