package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/ludotime/go/internal/models"
)

// Client binds one player to the synchronizer and remembers which session the
// player is in, so calls read like the player's own actions.
type Client struct {
	sync        *Synchronizer
	playerID    string
	displayName string

	mu   sync.Mutex
	code string
}

func NewClient(s *Synchronizer, playerID, displayName string) *Client {
	return &Client{sync: s, playerID: playerID, displayName: displayName}
}

func (c *Client) PlayerID() string {
	return c.playerID
}

// Code returns the session the client is in, or "".
func (c *Client) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Client) setCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
}

func (c *Client) current() (string, error) {
	code := c.Code()
	if code == "" {
		return "", fmt.Errorf("%w: %s has not joined a session", ErrNotInSession, c.playerID)
	}
	return code, nil
}

// CreateSession hosts a new session and returns its code.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	sess, err := c.sync.CreateSession(ctx, c.playerID, c.displayName)
	if err != nil {
		return "", err
	}
	c.setCode(sess.Code)
	return sess.Code, nil
}

func (c *Client) JoinSession(ctx context.Context, code string) error {
	sess, err := c.sync.JoinSession(ctx, code, c.playerID, c.displayName)
	if err != nil {
		return err
	}
	c.setCode(sess.Code)
	return nil
}

func (c *Client) SetReady(ctx context.Context, ready bool) error {
	code, err := c.current()
	if err != nil {
		return err
	}
	_, err = c.sync.SetReady(ctx, code, c.playerID, ready)
	return err
}

func (c *Client) StartSession(ctx context.Context) error {
	code, err := c.current()
	if err != nil {
		return err
	}
	_, err = c.sync.StartSession(ctx, code, c.playerID)
	return err
}

func (c *Client) RollDice(ctx context.Context) (int, error) {
	code, err := c.current()
	if err != nil {
		return 0, err
	}
	return c.sync.RollDice(ctx, code, c.playerID)
}

func (c *Client) PlayRound(ctx context.Context) (bool, error) {
	code, err := c.current()
	if err != nil {
		return false, err
	}
	return c.sync.PlayRound(ctx, code, c.playerID)
}

func (c *Client) SelectPawn(ctx context.Context, pawn int) (models.Move, error) {
	code, err := c.current()
	if err != nil {
		return models.Move{}, err
	}
	return c.sync.SelectPawn(ctx, code, c.playerID, pawn)
}

// LeaveSession leaves the current session. The client forgets the code even
// if the session was already gone.
func (c *Client) LeaveSession(ctx context.Context) error {
	code, err := c.current()
	if err != nil {
		return err
	}
	err = c.sync.LeaveSession(ctx, code, c.playerID)
	c.setCode("")
	return err
}

func (c *Client) Session(ctx context.Context) (models.Session, error) {
	code, err := c.current()
	if err != nil {
		return models.Session{}, err
	}
	return c.sync.GetSession(ctx, code)
}

// Watch follows the current session, delivering events to l.
func (c *Client) Watch(ctx context.Context, l Listener) (*Watcher, error) {
	code, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.sync.Watch(ctx, code, ListenerHandler(l))
}
