// Package live runs one board session per WebSocket connection.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"issueboard/internal/auth"
	"issueboard/internal/board"
	"issueboard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 16 << 10
	sendBuffer     = 64
)

// AuthObserver is told about rejected authentication attempts.
type AuthObserver interface {
	AuthFailed(reason string)
}

// Client owns a connection and the board session behind it. All session
// state is touched only from the goroutine running Run.
type Client struct {
	conn     *websocket.Conn
	session  *board.Session
	logger   *slog.Logger
	observer AuthObserver
	send     chan []byte
	cancel   context.CancelFunc
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, session *board.Session, logger *slog.Logger, observer AuthObserver) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:     conn,
		session:  session,
		logger:   logger,
		observer: observer,
		send:     make(chan []byte, sendBuffer),
	}
}

// Run resumes the session from token (which may be empty) and serves the
// connection until it closes or ctx is done.
func (c *Client) Run(ctx context.Context, token string) {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()
	defer c.session.Close()

	commands := make(chan Command)
	go c.writePump(ctx)
	go c.readPump(ctx, commands)

	if err := c.session.Resume(ctx, token); err != nil {
		c.fail(err)
	}
	c.pushSession()
	c.pushForm(board.Outcome{})

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			c.handle(ctx, cmd)
		case snap, ok := <-c.session.Snapshots():
			if !ok {
				continue
			}
			c.session.Apply(snap)
			c.pushIssues()
		}
	}
}

func (c *Client) handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case MsgSignIn, MsgSignUp:
		var (
			token string
			err   error
		)
		if cmd.Type == MsgSignIn {
			token, err = c.session.SignIn(ctx, cmd.Email, cmd.Password)
		} else {
			token, err = c.session.SignUp(ctx, cmd.Email, cmd.Password)
		}
		if err != nil {
			c.fail(err)
			return
		}
		if id := c.session.View().Identity; id != nil {
			c.logger.Info("session signed in", slog.String("user", id.ID))
		}
		c.pushSessionWithToken(token)
		c.pushForm(board.Outcome{})

	case MsgSignOut:
		if err := c.session.SignOut(ctx); err != nil {
			c.fail(err)
		}
		c.pushSession()
		c.pushIssues()

	case MsgDraft:
		if cmd.Draft == nil {
			c.fail(&protocolError{msg: "draft payload missing"})
			return
		}
		if err := c.session.SetDraft(*cmd.Draft); err != nil {
			c.fail(err)
			return
		}
		c.pushForm(board.Outcome{})

	case MsgSubmit, MsgConfirm:
		if cmd.Draft != nil {
			if err := c.session.SetDraft(*cmd.Draft); err != nil {
				c.fail(err)
				return
			}
		}
		var (
			out board.Outcome
			err error
		)
		if cmd.Type == MsgSubmit {
			out, err = c.session.Submit(ctx)
		} else {
			out, err = c.session.Confirm(ctx)
		}
		if err != nil {
			c.fail(err)
			c.pushForm(out)
			return
		}
		if out.ID != "" {
			c.push(createdMessage{Type: MsgCreated, ID: out.ID})
		}
		c.pushForm(out)

	case MsgFilter:
		f, err := board.ParseFilter(cmd.Status, cmd.Priority)
		if err != nil {
			c.fail(&protocolError{msg: err.Error()})
			return
		}
		if err := c.session.SetFilter(f); err != nil {
			c.fail(err)
			return
		}
		c.pushIssues()

	case MsgSetStatus:
		next, err := models.ParseStatus(cmd.Status)
		if err != nil {
			c.fail(&protocolError{msg: err.Error()})
			return
		}
		if err := c.session.ChangeStatus(ctx, cmd.ID, next); err != nil {
			c.fail(err)
		}

	case "":
		c.fail(&protocolError{msg: "malformed message"})

	default:
		c.fail(&protocolError{msg: "unknown message type " + cmd.Type})
	}
}

func (c *Client) fail(err error) {
	kind := errorKind(err)
	var aerr *auth.AuthError
	if errors.As(err, &aerr) && c.observer != nil {
		c.observer.AuthFailed(aerr.Reason)
	}
	if kind == KindInternal {
		c.logger.Error("session command failed", slog.String("error", err.Error()))
	}
	c.push(errorMessage{Type: MsgError, Kind: kind, Message: err.Error()})
}

func (c *Client) pushSession() {
	c.pushSessionWithToken("")
}

func (c *Client) pushSessionWithToken(token string) {
	v := c.session.View()
	c.push(sessionMessage{Type: MsgSession, Resolved: v.Resolved, User: v.Identity, Token: token})
}

func (c *Client) pushIssues() {
	v := c.session.View()
	issues := v.Issues
	if issues == nil {
		issues = []models.Issue{}
	}
	c.push(issuesMessage{
		Type:   MsgIssues,
		Issues: issues,
		Filter: filterPayload{Status: v.Filter.StatusLabel(), Priority: v.Filter.PriorityLabel()},
	})
}

func (c *Client) pushForm(out board.Outcome) {
	v := c.session.View()
	msg := formMessage{
		Type:    MsgForm,
		State:   v.State.String(),
		Draft:   v.Draft,
		Warning: v.Warning,
		Similar: out.Similar,
	}
	if v.Err != nil {
		msg.Error = v.Err.Error()
	}
	c.push(msg)
}

func (c *Client) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal message", slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full; closing connection")
		c.cancel()
	}
}

func (c *Client) readPump(ctx context.Context, commands chan<- Command) {
	defer close(commands)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			cmd = Command{}
		}
		select {
		case commands <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("websocket write failed", slog.String("error", err.Error()))
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}
