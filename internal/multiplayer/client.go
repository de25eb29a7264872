package multiplayer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// recordTimeout bounds a single outcome write.
const recordTimeout = 5 * time.Second

// clientMsg is anything the client loop consumes from its inbox.
type clientMsg interface {
	clientMsg()
}

type attachMsg struct {
	session docstore.Session
	role    docstore.Role
	sub     *docstore.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	reply   chan struct{}
}

type detachMsg struct {
	reply chan detached
}

type detached struct {
	id   string
	role docstore.Role
	ok   bool
}

type moveMsg struct {
	index int
}

type rematchMsg struct{}

type moveResultMsg struct {
	id      string
	index   int
	session docstore.Session
	err     error
}

type rematchResultMsg struct {
	id      string
	session docstore.Session
	err     error
}

func (attachMsg) clientMsg()        {}
func (detachMsg) clientMsg()        {}
func (moveMsg) clientMsg()          {}
func (rematchMsg) clientMsg()       {}
func (moveResultMsg) clientMsg()    {}
func (rematchResultMsg) clientMsg() {}

// attachment is the loop-owned state of the session a client is in.
type attachment struct {
	id       string
	role     docstore.Role
	view     *LocalView
	sub      *docstore.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	presence Presence

	starting bool // a StartRematch write is in flight
}

// Client is one player's connection to the session engine. A single loop
// goroutine owns the local view and multiplexes user intents, the session
// subscription, store results and the presence timer, so none of them
// blocks the others. Store writes run as tasks that post their result back
// to the loop.
type Client struct {
	coord    *Coordinator
	player   Player
	recorder OutcomeRecorder
	logger   *log.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan clientMsg
	updates *UpdateStream
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	tasks   sync.WaitGroup

	attachedID atomic.Pointer[string]

	// owned by the loop goroutine
	att *attachment
}

// NewClient creates a client for player and starts its loop. recorder and
// logger may be nil.
func NewClient(coord *Coordinator, player Player, recorder OutcomeRecorder, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		coord:    coord,
		player:   player,
		recorder: recorder,
		logger:   logger.With("player", player.DisplayName()),
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan clientMsg, 64),
		updates:  NewUpdateStream(64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Player returns the identity this client acts under.
func (c *Client) Player() Player {
	return c.player
}

// Updates returns the channel of view updates. It is closed by Close.
func (c *Client) Updates() <-chan Update {
	return c.updates.C()
}

// Attached returns the id of the session the client is in.
func (c *Client) Attached() (string, bool) {
	if id := c.attachedID.Load(); id != nil {
		return *id, true
	}
	return "", false
}

func (c *Client) currentID() string {
	id, _ := c.Attached()
	return id
}

// Host creates a new session and attaches to it as host.
func (c *Client) Host(ctx context.Context) (docstore.Session, error) {
	s, err := c.coord.Create(ctx, c.player)
	if err != nil {
		return docstore.Session{}, err
	}
	if err := c.attach(ctx, s, docstore.RoleHost); err != nil {
		// Nobody can reach the room without us; release it.
		if lerr := c.coord.Leave(ctx, s.ID, docstore.RoleHost); lerr != nil {
			c.logger.Warn("Release unattached session failed", "session", s.ID, "error", lerr)
		}
		return docstore.Session{}, err
	}
	return s, nil
}

// Join joins the session behind code as guest.
func (c *Client) Join(ctx context.Context, code string) (docstore.Session, error) {
	s, err := c.coord.Join(ctx, code, c.player)
	if err != nil {
		return docstore.Session{}, err
	}
	if err := c.attach(ctx, s, docstore.RoleGuest); err != nil {
		return docstore.Session{}, err
	}
	return s, nil
}

func (c *Client) attach(ctx context.Context, s docstore.Session, role docstore.Role) error {
	attCtx, cancel := context.WithCancel(c.ctx)
	sub, err := c.coord.Store().Subscribe(attCtx, s.ID)
	if err != nil {
		cancel()
		return err
	}

	reply := make(chan struct{})
	msg := attachMsg{session: s, role: role, sub: sub, ctx: attCtx, cancel: cancel, reply: reply}
	if !c.post(msg) {
		sub.Close()
		cancel()
		return context.Canceled
	}
	select {
	case <-reply:
		return nil
	case <-c.stopped:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play asks to place the local symbol at index. The shadow board updates
// immediately; a rejection rolls it back and arrives as an error update.
func (c *Client) Play(index int) {
	c.post(moveMsg{index: index})
}

// RequestRematch sets the local rematch flag. When both flags are seen the
// client starts the next round itself.
func (c *Client) RequestRematch() {
	c.post(rematchMsg{})
}

// Leave detaches from the current session and applies the leave semantics
// to it. Leaving when not attached is a no-op.
func (c *Client) Leave(ctx context.Context) error {
	reply := make(chan detached, 1)
	if !c.post(detachMsg{reply: reply}) {
		return nil
	}

	var d detached
	select {
	case d = <-reply:
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	if !d.ok {
		return nil
	}
	return c.coord.Leave(ctx, d.id, d.role)
}

// Close stops the loop, the subscription and the heartbeat, then closes the
// update channel. It does not leave the session. Safe to call multiple times.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		<-c.stopped
		c.tasks.Wait()
		c.updates.Close()
	})
}

func (c *Client) post(msg clientMsg) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

// spawn runs fn as a task whose result, if any, is posted to the loop.
func (c *Client) spawn(fn func() clientMsg) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		if msg := fn(); msg != nil {
			c.post(msg)
		}
	}()
}

func (c *Client) run() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.coord.Config().HeartbeatInterval)
	defer ticker.Stop()

	for {
		var events <-chan docstore.Event
		if c.att != nil {
			events = c.att.sub.Events()
		}

		select {
		case <-c.done:
			c.detach()
			return
		case msg := <-c.inbox:
			c.handle(msg)
		case evt, ok := <-events:
			c.handleEvent(evt, ok)
		case <-ticker.C:
			c.checkPresence()
		}
	}
}

func (c *Client) handle(msg clientMsg) {
	switch m := msg.(type) {
	case attachMsg:
		c.detach()
		c.att = &attachment{
			id:     m.session.ID,
			role:   m.role,
			view:   NewLocalView(m.role),
			sub:    m.sub,
			ctx:    m.ctx,
			cancel: m.cancel,
		}
		id := m.session.ID
		c.attachedID.Store(&id)
		c.applySnapshot(m.session)

		c.tasks.Add(1)
		go func() {
			defer c.tasks.Done()
			c.coord.RunHeartbeat(m.ctx, id, m.role, c.currentID)
		}()
		c.logger.Debug("Attached", "session", id, "role", m.role)
		close(m.reply)

	case detachMsg:
		var d detached
		if c.att != nil {
			d = detached{id: c.att.id, role: c.att.role, ok: true}
			c.detach()
			c.updates.Send(Update{Kind: UpdateDetached})
		}
		m.reply <- d

	case moveMsg:
		c.handleMove(m.index)

	case moveResultMsg:
		if c.att == nil || c.att.id != m.id {
			return
		}
		if m.err != nil {
			c.att.view.Rollback()
			c.emit(UpdateError, m.err)
			c.emit(UpdateSnapshot, nil)
			return
		}
		c.applySnapshot(m.session)

	case rematchMsg:
		if c.att == nil {
			c.emit(UpdateError, &ValidationError{Field: "session", Reason: "not in a game"})
			return
		}
		id, role, ctx := c.att.id, c.att.role, c.att.ctx
		c.spawn(func() clientMsg {
			s, err := c.coord.RequestRematch(ctx, id, role)
			if err != nil {
				return rematchResultMsg{id: id, err: err}
			}
			return rematchResultMsg{id: id, session: s}
		})

	case rematchResultMsg:
		if c.att == nil || c.att.id != m.id {
			return
		}
		c.att.starting = false
		if m.err != nil {
			if !errors.Is(m.err, context.Canceled) {
				c.emit(UpdateError, m.err)
			}
			return
		}
		if m.session.ID != "" {
			c.applySnapshot(m.session)
		}
	}
}

func (c *Client) handleMove(index int) {
	if c.att == nil {
		c.emit(UpdateError, &ValidationError{Field: "session", Reason: "not in a game"})
		return
	}
	if err := c.att.view.BeginMove(index); err != nil {
		c.emit(UpdateError, err)
		return
	}
	c.emit(UpdateSnapshot, nil)

	id, role, ctx := c.att.id, c.att.role, c.att.ctx
	c.spawn(func() clientMsg {
		s, err := c.coord.Move(ctx, id, role, index)
		return moveResultMsg{id: id, index: index, session: s, err: err}
	})
}

func (c *Client) handleEvent(evt docstore.Event, ok bool) {
	switch {
	case !ok && c.ctx.Err() != nil:
		c.detach()
	case !ok:
		c.logger.Warn("Session feed closed", "session", c.att.id)
		c.detach()
		c.updates.Send(Update{Kind: UpdateDetached, Err: docstore.ErrUnavailable})
	case evt.Err != nil:
		c.logger.Warn("Session feed failed", "session", c.att.id, "error", evt.Err)
		c.detach()
		c.updates.Send(Update{Kind: UpdateDetached, Err: evt.Err})
	case evt.Deleted:
		c.logger.Info("Session deleted", "session", c.att.id)
		c.detach()
		c.updates.Send(Update{Kind: UpdateDetached, Err: docstore.ErrNotFound})
	default:
		c.applySnapshot(evt.Snapshot)
	}
}

// applySnapshot installs an authoritative snapshot and drives everything
// that depends on it: outcome recording and starting an agreed rematch.
func (c *Client) applySnapshot(s docstore.Session) {
	att := c.att
	t := att.view.Apply(s)
	if t.Stale {
		return
	}
	if t.NewRound {
		c.logger.Debug("New round", "session", s.ID, "round", s.Round)
	}
	c.emit(UpdateSnapshot, nil)

	if t.Completed || t.Abandoned {
		c.recordOutcome(s, att.role)
	}

	if s.Status == docstore.StatusCompleted && s.RematchAgreed() && !att.starting {
		att.starting = true
		id, ctx := att.id, att.ctx
		c.spawn(func() clientMsg {
			s, started, err := c.coord.StartRematch(ctx, id)
			if err != nil {
				return rematchResultMsg{id: id, err: err}
			}
			if !started {
				// The peer won the race; its snapshot arrives on the feed.
				return rematchResultMsg{id: id}
			}
			return rematchResultMsg{id: id, session: s}
		})
	}
}

func (c *Client) recordOutcome(s docstore.Session, role docstore.Role) {
	o, ok := OutcomeFor(s, role)
	if !ok {
		return
	}
	o.PlayerID = c.player.ID
	if o.PlayerName == "" {
		o.PlayerName = c.player.DisplayName()
	}
	c.updates.Send(Update{Kind: UpdateOutcome, View: c.view(), Outcome: &o})

	if c.recorder == nil {
		return
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.RecordOutcome(ctx, o); err != nil {
			c.logger.Warn("Record outcome failed", "session", o.SessionID, "round", o.Round, "error", err)
		}
	}()
}

func (c *Client) checkPresence() {
	if c.att == nil {
		return
	}
	s, ok := c.att.view.Snapshot()
	if !ok {
		return
	}
	p := PeerPresence(s, c.att.role, c.coord.now(), c.coord.Config().DisconnectThreshold)
	if p != c.att.presence {
		c.att.presence = p
		c.emit(UpdatePresence, nil)
	}
}

func (c *Client) view() ViewModel {
	if c.att == nil {
		return ViewModel{Pending: noPending}
	}
	return c.att.view.ViewModel(c.coord.now(), c.coord.Config().DisconnectThreshold)
}

func (c *Client) emit(kind UpdateKind, err error) {
	c.updates.Send(Update{Kind: kind, View: c.view(), Err: err})
}

// detach tears down the subscription and heartbeat. Idempotent.
func (c *Client) detach() {
	if c.att == nil {
		return
	}
	c.attachedID.Store(nil)
	c.att.cancel()
	c.att.sub.Close()
	c.logger.Debug("Detached", "session", c.att.id)
	c.att = nil
}
