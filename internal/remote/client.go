package remote

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Client is a docstore.Store backed by a remote Server. When the connection
// drops every pending call fails and every open feed ends with
// ErrUnavailable; the client does not reconnect.
type Client struct {
	ws     *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	subs    map[uint64]*docstore.Subscription
	closed  bool

	done chan struct{}
}

var _ docstore.Store = (*Client)(nil)

// Dial connects to a Server websocket endpoint, e.g. ws://host:8080/ws.
func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", url, err)
	}

	c := &Client{
		ws:      ws,
		logger:  logger,
		pending: make(map[uint64]chan Message),
		subs:    make(map[uint64]*docstore.Subscription),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Store connection lost", "error", err)
			}
			return
		}

		switch msg.Kind {
		case KindReply:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case KindEvent:
			c.deliver(msg)
		}
	}
}

func (c *Client) deliver(msg Message) {
	c.mu.Lock()
	sub, ok := c.subs[msg.ID]
	ended := msg.End || msg.Deleted || msg.Code != ""
	if ok && ended {
		delete(c.subs, msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case msg.End:
	case msg.Code != "":
		sub.Send(docstore.Event{Err: &Error{Code: msg.Code, Detail: msg.Detail}})
	case msg.Session != nil:
		sub.Send(docstore.Event{Snapshot: *msg.Session, Deleted: msg.Deleted})
	}
	if ended {
		sub.Finish()
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	subs := c.subs
	c.pending = make(map[uint64]chan Message)
	c.subs = make(map[uint64]*docstore.Subscription)
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- Message{Kind: KindReply, ID: id, Code: CodeUnavailable, Detail: docstore.ErrUnavailable.Error()}
	}
	for _, sub := range subs {
		sub.Send(docstore.Event{Err: docstore.ErrUnavailable})
		sub.Finish()
	}
	close(c.done)
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("remote: %w: %v", docstore.ErrUnavailable, err)
	}
	return nil
}

// register reserves a request id and its reply slot.
func (c *Client) register() (uint64, chan Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, docstore.ErrUnavailable
	}
	c.nextID++
	ch := make(chan Message, 1)
	c.pending[c.nextID] = ch
	return c.nextID, ch, nil
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) roundTrip(ctx context.Context, id uint64, ch chan Message, req Request) (Message, error) {
	req.ID = id
	if err := c.write(req); err != nil {
		c.forget(id)
		return Message{}, err
	}

	select {
	case msg := <-ch:
		if msg.Code != "" {
			return msg, &Error{Code: msg.Code, Detail: msg.Detail}
		}
		return msg, nil
	case <-ctx.Done():
		c.forget(id)
		return Message{}, ctx.Err()
	}
}

func (c *Client) call(ctx context.Context, req Request) (Message, error) {
	id, ch, err := c.register()
	if err != nil {
		return Message{}, err
	}
	return c.roundTrip(ctx, id, ch, req)
}

func session(msg Message) docstore.Session {
	if msg.Session == nil {
		return docstore.Session{}
	}
	return *msg.Session
}

func (c *Client) Create(ctx context.Context, s docstore.Session) (docstore.Session, error) {
	msg, err := c.call(ctx, Request{Op: OpCreate, Session: &s})
	if err != nil {
		return docstore.Session{}, err
	}
	return session(msg), nil
}

func (c *Client) Get(ctx context.Context, id string) (docstore.Session, error) {
	msg, err := c.call(ctx, Request{Op: OpGet, SessionID: id})
	if err != nil {
		return docstore.Session{}, err
	}
	return session(msg), nil
}

func (c *Client) UpdateIf(ctx context.Context, id string, cond docstore.Precondition, patch docstore.Patch) (docstore.Session, error) {
	msg, err := c.call(ctx, Request{Op: OpUpdate, SessionID: id, Cond: &cond, Patch: &patch})
	return session(msg), err
}

// Subscribe registers the local feed before sending the request so events
// that overtake the reply are not lost.
func (c *Client) Subscribe(ctx context.Context, id string) (*docstore.Subscription, error) {
	reqID, ch, err := c.register()
	if err != nil {
		return nil, err
	}

	sub := docstore.NewSubscription(id, docstore.DefaultBuffer, func() { c.unsubscribe(reqID) })
	c.mu.Lock()
	c.subs[reqID] = sub
	c.mu.Unlock()

	if _, err := c.roundTrip(ctx, reqID, ch, Request{Op: OpSubscribe, SessionID: id}); err != nil {
		c.mu.Lock()
		delete(c.subs, reqID)
		c.mu.Unlock()
		sub.Finish()
		return nil, err
	}
	sub.CloseOnDone(ctx)
	return sub, nil
}

func (c *Client) unsubscribe(id uint64) {
	c.mu.Lock()
	_, open := c.subs[id]
	delete(c.subs, id)
	closed := c.closed
	c.mu.Unlock()
	if !open || closed {
		return
	}
	if err := c.write(Request{ID: id, Op: OpUnsubscribe}); err != nil {
		c.logger.Debug("Unsubscribe failed", "error", err)
	}
}

func (c *Client) Query(ctx context.Context, filter docstore.Filter, limit int) ([]docstore.Session, error) {
	msg, err := c.call(ctx, Request{Op: OpQuery, Filter: &filter, Limit: limit})
	if err != nil {
		return nil, err
	}
	return msg.Sessions, nil
}

func (c *Client) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.call(ctx, Request{Op: OpDelete, IDs: ids})
	return err
}
