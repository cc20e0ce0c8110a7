// Package client is the Go client for a shared roster: it keeps a live
// websocket subscription, replaces its view wholesale on every snapshot,
// and issues mutation commands. The signup cooldown and the remembered
// member name are client-side state held here, matching the server's
// cookie fallback.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
	"github.com/guildops/rosterlive/pkg/types"
)

type ConnState string

const (
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateDisconnected ConnState = "DISCONNECTED"
)

// Snapshot is the client's whole view of the shared roster. Each server
// snapshot replaces the previous one; there is no merging.
type Snapshot struct {
	Version  uint64
	Document roster.Document
	Members  []roster.Member
}

type Options struct {
	// Token is an optional session token sent as a cookie on the
	// upgrade request. Anonymous subscriptions work without it.
	Token string

	OnSnapshot func(Snapshot)
	OnState    func(ConnState)
	// OnError receives server Error frames, which are not correlated
	// to individual commands.
	OnError func(error)

	Cooldown    time.Duration
	RememberTTL time.Duration
	Now         func() time.Time
	Log         *zap.Logger
}

type Controller struct {
	wsURL string
	opts  Options

	mu       sync.Mutex
	conn     *websocket.Conn
	state    ConnState
	snapshot *Snapshot
	cooldown *types.Token
	name     *types.Token
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial subscribes to the share at baseURL and starts the read loop. The
// returned controller reconnects on its own until Close.
func Dial(ctx context.Context, baseURL, shareID string, opts Options) (*Controller, error) {
	wsURL, err := websocketURL(baseURL, shareID)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = types.DefaultCooldown
	}
	if opts.RememberTTL <= 0 {
		opts.RememberTTL = types.DefaultRememberTTL
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		wsURL:  wsURL,
		opts:   opts,
		state:  StateConnecting,
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		cancel()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func websocketURL(baseURL, shareID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", apperr.Validation("invalid base url %q", baseURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", apperr.Validation("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/shared/" + shareID + "/ws"
	return u.String(), nil
}

func (c *Controller) connect() error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if c.opts.Token != "" {
		opts.HTTPHeader = map[string][]string{
			"Cookie": {"roster_session=" + c.opts.Token},
		}
	}
	conn, resp, err := websocket.Dial(dialCtx, c.wsURL, opts)
	if err != nil {
		c.setState(StateDisconnected)
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return apperr.NotFound("shared roster not found")
		}
		return apperr.Wrap(apperr.CodeConnection, err, "dial %s", c.wsURL)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)
	return nil
}

// readLoop drains server frames, reconnecting with backoff after a drop.
func (c *Controller) readLoop() {
	defer close(c.done)
	backoff := time.Second

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.setState(StateDisconnected)
			if c.ctx.Err() != nil {
				return
			}
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			if err := c.connect(); err != nil {
				c.opts.Log.Debug("reconnect failed", zap.Error(err))
			}
			continue
		}
		backoff = time.Second
		c.dispatch(data)
	}
}

func (c *Controller) dispatch(data []byte) {
	var msg types.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.opts.Log.Debug("malformed server frame", zap.Error(err))
		return
	}

	switch msg.Type {
	case types.MsgSnapshot:
		if msg.Document == nil {
			return
		}
		snap := Snapshot{Version: msg.Version, Document: *msg.Document, Members: msg.Members}
		c.mu.Lock()
		c.snapshot = &snap
		c.mu.Unlock()
		if c.opts.OnSnapshot != nil {
			c.opts.OnSnapshot(snap)
		}

	case types.MsgError:
		if c.opts.OnError != nil {
			code := apperr.Code(msg.Code)
			c.opts.OnError(apperr.New(code, "%s", msg.Error))
		}
	}
}

func (c *Controller) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// State reports the connection state.
func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the last received snapshot, if any.
func (c *Controller) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return *c.snapshot, true
}

// RememberedName returns the member name from the last signup, while the
// remember window lasts.
func (c *Controller) RememberedName() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == nil || c.name.Expired(c.opts.Now(), c.opts.RememberTTL) {
		c.name = nil
		return "", false
	}
	return c.name.Value, true
}

// SignUp submits a signup, enforcing the local cooldown before anything
// goes on the wire.
func (c *Controller) SignUp(member string, weapons []string) error {
	now := c.opts.Now()

	c.mu.Lock()
	if c.cooldown != nil && c.cooldown.Active(now, c.opts.Cooldown) {
		c.mu.Unlock()
		return apperr.Cooldown("please wait before signing up again")
	}
	c.mu.Unlock()

	err := c.send(types.ClientMessage{Type: string(roster.CmdSignUp), Member: member, Weapons: weapons})
	if err != nil {
		return err
	}

	c.mu.Lock()
	cd := types.NewToken(member, now)
	nm := types.NewToken(member, now)
	c.cooldown = &cd
	c.name = &nm
	c.mu.Unlock()
	return nil
}

// RemoveSignup withdraws a signup. Removal is a roster change like any
// other, so it honors and restamps the same cooldown token as SignUp.
func (c *Controller) RemoveSignup(member string) error {
	now := c.opts.Now()

	c.mu.Lock()
	if c.cooldown != nil && c.cooldown.Active(now, c.opts.Cooldown) {
		c.mu.Unlock()
		return apperr.Cooldown("please wait before changing your signup again")
	}
	c.mu.Unlock()

	err := c.send(types.ClientMessage{Type: string(roster.CmdRemoveSignup), Member: member})
	if err != nil {
		return err
	}

	c.mu.Lock()
	cd := types.NewToken(member, now)
	c.cooldown = &cd
	c.mu.Unlock()
	return nil
}

func (c *Controller) UpdateField(entryIndex int, field, value string) error {
	return c.send(types.ClientMessage{Type: string(roster.CmdUpdateField), EntryIndex: entryIndex, Field: field, Value: value})
}

func (c *Controller) AssignPlayer(entryIndex int, name string) error {
	return c.send(types.ClientMessage{Type: string(roster.CmdAssignPlayer), EntryIndex: entryIndex, Value: name})
}

func (c *Controller) Rename(name string) error {
	return c.send(types.ClientMessage{Type: string(roster.CmdRenameRoster), Name: name})
}

func (c *Controller) ToggleLock() error {
	return c.send(types.ClientMessage{Type: string(roster.CmdToggleLock)})
}

func (c *Controller) send(msg types.ClientMessage) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateConnected || conn == nil {
		return apperr.Connection("not connected")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return apperr.Wrap(apperr.CodeConnection, err, "send %s", msg.Type)
	}
	return nil
}

// Close tears the subscription down. The controller is done after this;
// dial again for a new subscription.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	<-c.done
	return nil
}
