package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/storage"
)

// ErrUnexpectedStatus is returned when the relay answers with an error status.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client calls the relay's REST endpoints. It serves as a session's history
// source.
type Client struct {
	baseURL   string
	userEmail string
	http      *http.Client
}

// NewClient creates a REST client for the relay at baseURL. A nil
// httpClient uses one with a 10 second timeout.
func NewClient(baseURL, userEmail string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userEmail: userEmail,
		http:      httpClient,
	}
}

// BoardObjects fetches a board's objects in server order.
func (c *Client) BoardObjects(ctx context.Context, boardID int64) ([]board.ActionPayload, error) {
	var resp BoardObjectsResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%d/objects", boardID), nil, &resp); err != nil {
		return nil, err
	}

	objects := make([]board.ActionPayload, 0, len(resp.Objects))

	for _, rec := range resp.Objects {
		obj := rec.Payload
		if rec.InstanceID != "" {
			obj.InstanceID = rec.InstanceID
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

// BoardMessages fetches a board's chat history.
func (c *Client) BoardMessages(ctx context.Context, boardID int64) ([]board.ChatMessage, error) {
	var resp BoardMessagesResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%d/messages", boardID), nil, &resp); err != nil {
		return nil, err
	}

	return resp.Messages, nil
}

// Board fetches a board's metadata.
func (c *Client) Board(ctx context.Context, boardID int64) (storage.Board, error) {
	var b storage.Board
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%d", boardID), nil, &b); err != nil {
		return storage.Board{}, err
	}

	return b, nil
}

// Boards lists every board on the relay.
func (c *Client) Boards(ctx context.Context) ([]storage.Board, error) {
	var boards []storage.Board
	if err := c.do(ctx, http.MethodGet, "/boards", nil, &boards); err != nil {
		return nil, err
	}

	return boards, nil
}

// CreateBoard creates a board. A zero id lets the relay pick one.
func (c *Client) CreateBoard(ctx context.Context, boardID int64, name string) (storage.Board, error) {
	var b storage.Board
	if err := c.do(ctx, http.MethodPost, "/boards", CreateBoardRequest{ID: boardID, Name: name}, &b); err != nil {
		return storage.Board{}, err
	}

	return b, nil
}

// RenameBoard renames a board.
func (c *Client) RenameBoard(ctx context.Context, boardID int64, name string) (storage.Board, error) {
	var b storage.Board

	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/boards/%d", boardID), RenameBoardRequest{Name: name}, &b)
	if err != nil {
		return storage.Board{}, err
	}

	return b, nil
}

// Members lists a board's members.
func (c *Client) Members(ctx context.Context, boardID int64) ([]acl.Member, error) {
	var members []acl.Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%d/members", boardID), nil, &members); err != nil {
		return nil, err
	}

	return members, nil
}

// SetMember adds a member to a board or changes their role.
func (c *Client) SetMember(ctx context.Context, boardID int64, email string, role acl.Role) (acl.Member, error) {
	var m acl.Member

	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/boards/%d/members", boardID), SetMemberRequest{Email: email, Role: role}, &m)
	if err != nil {
		return acl.Member{}, err
	}

	return m, nil
}

// RemoveMember removes a member from a board.
func (c *Client) RemoveMember(ctx context.Context, boardID int64, email string) error {
	path := fmt.Sprintf("/boards/%d/members/%s", boardID, url.PathEscape(email))

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set(HeaderUserEmail, c.userEmail)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, acl.ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, storage.ErrBoardNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, storage.ErrBoardExists)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%s %s: %w: %s", method, path, ErrUnexpectedStatus, resp.Status)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}
