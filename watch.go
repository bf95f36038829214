package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/api"
	"github.com/serroba/online-board/internal/collab"
	"github.com/serroba/online-board/internal/config"
	"github.com/serroba/online-board/internal/natsbus"
	"github.com/serroba/online-board/internal/reconcile"
	"github.com/serroba/online-board/internal/txn"
	"github.com/serroba/online-board/internal/ws"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func watchCmd() *cobra.Command {
	var chat string

	cmd := &cobra.Command{
		Use:   "watch ID [ID...]",
		Short: "Open live sessions on boards and report confirmed changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardIDs := make([]int64, 0, len(args))

			for _, arg := range args {
				id, err := parseBoardID(arg)
				if err != nil {
					return err
				}

				boardIDs = append(boardIDs, id)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return watch(ctx, cfg, boardIDs, chat)
		},
	}
	cmd.Flags().StringVar(&chat, "chat", "", "send this chat message to every watched board")
	cmd.Flags().String("nats-url", "", "carry board traffic over NATS instead of the relay websocket")
	_ = viper.BindPFlag("nats-url", cmd.Flags().Lookup("nats-url"))

	return cmd
}

func watch(ctx context.Context, cfg *config.Config, boardIDs []int64, chat string) error {
	client := newClient(cfg)
	dialer := &relayDialer{cfg: cfg, dialed: make(map[int64]*ws.Client)}

	manager := collab.NewManager(collab.ManagerConfig{
		Transports:      dialer.open,
		History:         client,
		Notifier:        consoleNotifier{},
		Refetcher:       &clientRefetcher{client: client, boardIDs: boardIDs},
		UserEmail:       cfg.Client.Email,
		MaxMessageBytes: cfg.Relay.MaxMessageBytes,
		OnCommit: func(boardID int64, tx txn.Transaction) {
			fmt.Printf("board %d: confirmed %s %s\n", boardID, tx.Kind, tx.InstanceID)
		},
	})

	defer func() {
		if err := manager.CloseAll(); err != nil {
			glog.Warningf("close sessions: %v", err)
		}
	}()

	sessions := make([]*collab.Session, 0, len(boardIDs))

	for _, id := range boardIDs {
		session, err := manager.Open(ctx, id)
		if err != nil {
			return err
		}

		// Frames queue on the socket until the session is subscribed.
		dialer.run(ctx, id)

		sessions = append(sessions, session)
		fmt.Printf("board %d: %d objects, %d messages\n", id, len(session.Objects()), len(session.Messages()))
	}

	if chat != "" {
		for _, session := range sessions {
			if _, err := session.SendChat(ctx, chat); err != nil {
				glog.Warningf("board %d: send chat: %v", session.BoardID(), err)
			}
		}
	}

	<-ctx.Done()

	for _, session := range sessions {
		fmt.Printf("board %d\n", session.BoardID())
		printObjects(session.Objects())
		printMessages(session.Messages())
	}

	return nil
}

// relayDialer opens one transport per board, over NATS when configured and
// over the relay websocket otherwise.
type relayDialer struct {
	cfg *config.Config

	mu     sync.Mutex
	dialed map[int64]*ws.Client
}

func (d *relayDialer) open(ctx context.Context, boardID int64) (collab.Transport, error) {
	if d.cfg.NATS.URL != "" {
		opts := natsbus.DefaultOptions()
		opts.MaxReconnects = d.cfg.NATS.MaxReconnects
		opts.ReconnectWait = d.cfg.NATS.ReconnectWait

		t, err := natsbus.Connect(d.cfg.NATS.URL, boardID, opts)
		if err != nil {
			return nil, err
		}

		return t, nil
	}

	header := http.Header{}
	header.Set(api.HeaderUserEmail, d.cfg.Client.Email)

	client, err := ws.Dial(ctx, websocketURL(d.cfg.Client.URL, boardID), d.cfg.Client.Email, header, &ws.DialSettings{
		HandshakeTimeout: d.cfg.Client.DialTimeout,
		MaxMessageBytes:  2 * int64(d.cfg.Relay.MaxMessageBytes),
	})
	if err != nil {
		return nil, err
	}

	client.SetBoardID(boardID)

	d.mu.Lock()
	d.dialed[boardID] = client
	d.mu.Unlock()

	return client, nil
}

// run starts the read loop of the websocket dialed for boardID, if any.
func (d *relayDialer) run(ctx context.Context, boardID int64) {
	d.mu.Lock()
	client, ok := d.dialed[boardID]
	delete(d.dialed, boardID)
	d.mu.Unlock()

	if !ok {
		return
	}

	go func() {
		if err := client.Run(ctx); err != nil {
			glog.Warningf("board %d: relay connection lost: %v", boardID, err)
		}
	}()
}

func websocketURL(baseURL string, boardID int64) string {
	u := strings.TrimRight(baseURL, "/")

	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	return u + "/ws?boardId=" + strconv.FormatInt(boardID, 10)
}

// consoleNotifier reports user-visible session events on the terminal.
type consoleNotifier struct{}

func (consoleNotifier) ActionRejected(err error) {
	fmt.Printf("action rejected: %v\n", err)
}

func (consoleNotifier) ConnectionLost(result collab.RollbackResult) {
	fmt.Printf("connection lost: %d unconfirmed changes discarded (%d removed, %d reverted, %d restored, %d chat)\n",
		result.Discarded, result.Removed, result.Reverted, result.Restored, result.ChatRemoved)
}

// clientRefetcher reloads board metadata from the relay when a
// notification says it changed.
type clientRefetcher struct {
	client   *api.Client
	boardIDs []int64
}

func (r *clientRefetcher) Refetch(ctx context.Context, resource reconcile.Resource) {
	switch resource {
	case reconcile.ResourceMembers:
		for _, id := range r.boardIDs {
			members, err := r.client.Members(ctx, id)
			if err != nil {
				glog.Warningf("refetch members of board %d: %v", id, err)

				continue
			}

			glog.Infof("board %d has %d members", id, len(members))
		}
	case reconcile.ResourceBoard, reconcile.ResourceBoards:
		boards, err := r.client.Boards(ctx)
		if err != nil {
			glog.Warningf("refetch %s: %v", resource, err)

			return
		}

		glog.Infof("refetched %d boards", len(boards))
	default:
		glog.V(1).Infof("relay serves no %s endpoint; refetch skipped", resource)
	}
}
