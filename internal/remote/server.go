package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Server serves a docstore.Store to remote clients.
type Server struct {
	store    docstore.Store
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

// NewServer wraps store. A nil logger discards output.
func NewServer(store docstore.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*serverConn]struct{}),
	}
}

// Routes returns the HTTP handler: /healthz and the /ws endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Store server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.CloseConnections()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("remote: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("remote: serve: %w", err)
	}
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseConnections drops every client. Clients see ErrUnavailable.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &serverConn{
		srv:    s,
		ws:     ws,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[uint64]*docstore.Subscription),
		logger: s.logger.With("remote", r.RemoteAddr),
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	c.logger.Debug("Client connected")
	c.serve()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.logger.Debug("Client disconnected")
}

// serverConn is one client connection. gorilla connections allow a single
// concurrent writer, so every write goes through send.
type serverConn struct {
	srv    *Server
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[uint64]*docstore.Subscription

	wg sync.WaitGroup
}

func (c *serverConn) serve() {
	defer func() {
		c.cancel()
		c.closeSubs()
		c.wg.Wait()
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.wg.Add(1)
	go c.pingLoop()

	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Read failed", "error", err)
			}
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if msg, ok := c.dispatch(req); ok {
				c.send(msg)
			}
		}()
	}
}

func (c *serverConn) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *serverConn) send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug("Write failed", "error", err)
		c.ws.Close()
	}
}

// dispatch runs one request. ok is false when no reply is due.
func (c *serverConn) dispatch(req Request) (Message, bool) {
	ctx := c.ctx
	store := c.srv.store
	reply := Message{Kind: KindReply, ID: req.ID}

	switch req.Op {
	case OpCreate:
		if req.Session == nil {
			return badRequest(req, "missing session"), true
		}
		s, err := store.Create(ctx, *req.Session)
		if err != nil {
			return replyErr(req.ID, err), true
		}
		reply.Session = &s

	case OpGet:
		s, err := store.Get(ctx, req.SessionID)
		if err != nil {
			return replyErr(req.ID, err), true
		}
		reply.Session = &s

	case OpUpdate:
		var cond docstore.Precondition
		var patch docstore.Patch
		if req.Cond != nil {
			cond = *req.Cond
		}
		if req.Patch != nil {
			patch = *req.Patch
		}
		s, err := store.UpdateIf(ctx, req.SessionID, cond, patch)
		if err != nil {
			msg := replyErr(req.ID, err)
			if errors.Is(err, docstore.ErrPreconditionFailed) {
				msg.Session = &s
			}
			return msg, true
		}
		reply.Session = &s

	case OpSubscribe:
		if err := c.subscribe(req); err != nil {
			return replyErr(req.ID, err), true
		}
		return Message{}, false

	case OpUnsubscribe:
		c.unsubscribe(req.ID)
		return Message{}, false

	case OpQuery:
		var f docstore.Filter
		if req.Filter != nil {
			f = *req.Filter
		}
		list, err := store.Query(ctx, f, req.Limit)
		if err != nil {
			return replyErr(req.ID, err), true
		}
		reply.Sessions = list

	case OpDelete:
		if err := store.BatchDelete(ctx, req.IDs); err != nil {
			return replyErr(req.ID, err), true
		}

	default:
		return badRequest(req, "unknown op "+string(req.Op)), true
	}
	return reply, true
}

func badRequest(req Request, detail string) Message {
	return Message{Kind: KindReply, ID: req.ID, Code: CodeBadRequest, Detail: "remote: " + detail}
}

// subscribe opens a store feed and forwards it under the request id. The
// reply is sent before the first event so the client sees them in order.
func (c *serverConn) subscribe(req Request) error {
	c.mu.Lock()
	if _, dup := c.subs[req.ID]; dup {
		c.mu.Unlock()
		return fmt.Errorf("remote: duplicate subscription %d", req.ID)
	}
	c.mu.Unlock()

	sub, err := c.srv.store.Subscribe(c.ctx, req.SessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[req.ID] = sub
	c.mu.Unlock()

	c.send(Message{Kind: KindReply, ID: req.ID})

	c.wg.Add(1)
	go c.forward(req.ID, sub)
	return nil
}

func (c *serverConn) forward(id uint64, sub *docstore.Subscription) {
	defer c.wg.Done()
	for evt := range sub.Events() {
		msg := Message{Kind: KindEvent, ID: id, Deleted: evt.Deleted}
		if evt.Err != nil {
			msg.Code = CodeOf(evt.Err)
			msg.Detail = evt.Err.Error()
		} else {
			snap := evt.Snapshot
			msg.Session = &snap
		}
		c.send(msg)
	}

	c.mu.Lock()
	_, open := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if open && c.ctx.Err() == nil {
		c.send(Message{Kind: KindEvent, ID: id, End: true})
	}
}

func (c *serverConn) unsubscribe(id uint64) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (c *serverConn) closeSubs() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[uint64]*docstore.Subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}
