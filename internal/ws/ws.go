package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	pollInterval   = 2 * time.Second
	maxMessageSize = 4 * 1024
)

// JobReader is the read-only job lookup the push channel needs
type JobReader interface {
	GetJob(ctx context.Context, userID int64, uuid string) (*model.Job, error)
}

// Handler upgrades authenticated clients and pushes job status updates.
// Clients send watch commands; the server polls the job rows and pushes
// every status change until the job reaches a terminal state.
type Handler struct {
	logger        *slog.Logger
	authenticator *auth.Authenticator
	store         JobReader
	upgrader      websocket.Upgrader
}

// NewHandler creates a Handler with the given origin allow-list
func NewHandler(logger *slog.Logger, authenticator *auth.Authenticator, store JobReader, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Handler{
		logger:        logger,
		authenticator: authenticator,
		store:         store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// non-browser clients carry no Origin
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// command is what clients send over the socket
type command struct {
	Action  string `json:"action"` // watch, unwatch
	JobUUID string `json:"job_uuid"`
}

// statusEvent is pushed to the client on every observed change
type statusEvent struct {
	Type    string `json:"type"`
	JobUUID string `json:"job_uuid"`
	Status  string `json:"status,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Serve handles GET /ws. Identity is resolved before the upgrade and
// bound to the connection for its whole lifetime.
func (h *Handler) Serve(c *gin.Context) {
	identity, err := h.authenticator.AuthenticateHandshake(c.Request)
	if err != nil {
		h.logger.Error("WebSocket handshake authentication failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}
	if !identity.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{
			"detail": "authentication required",
			"reason": identity.Reason,
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	session := &session{
		handler: h,
		conn:    conn,
		userID:  identity.User.ID,
		watches: map[string]context.CancelFunc{},
	}
	session.run(c.Request.Context())
}

type session struct {
	handler *Handler
	conn    *websocket.Conn
	userID  int64

	writeMu sync.Mutex
	mu      sync.Mutex
	watches map[string]context.CancelFunc
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.pingLoop(ctx)

	for {
		var cmd command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.handler.logger.Debug("WebSocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		switch cmd.Action {
		case "watch":
			s.watch(ctx, cmd.JobUUID)
		case "unwatch":
			s.unwatch(cmd.JobUUID)
		default:
			s.send(statusEvent{Type: "error", Detail: "unknown action"})
		}
	}
}

func (s *session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// watch starts a polling goroutine for one job. Watching an already
// watched job is a no-op.
func (s *session) watch(ctx context.Context, jobUUID string) {
	if _, err := uuid.Parse(jobUUID); err != nil {
		s.send(statusEvent{Type: "error", JobUUID: jobUUID, Detail: "invalid job uuid"})
		return
	}

	s.mu.Lock()
	if _, exists := s.watches[jobUUID]; exists {
		s.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	s.watches[jobUUID] = cancel
	s.mu.Unlock()

	go s.pollJob(watchCtx, jobUUID)
}

func (s *session) unwatch(jobUUID string) {
	s.mu.Lock()
	if cancel, ok := s.watches[jobUUID]; ok {
		cancel()
		delete(s.watches, jobUUID)
	}
	s.mu.Unlock()
}

func (s *session) pollJob(ctx context.Context, jobUUID string) {
	defer s.unwatch(jobUUID)

	var lastStatus string
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := s.handler.store.GetJob(ctx, s.userID, jobUUID)
		if err != nil {
			s.send(statusEvent{Type: "error", JobUUID: jobUUID, Detail: "job not found"})
			return
		}

		if job.Status != lastStatus {
			lastStatus = job.Status
			s.send(statusEvent{Type: "job_status", JobUUID: jobUUID, Status: job.Status})
		}
		if job.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *session) send(ev statusEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.handler.logger.Debug("WebSocket write failed", slog.Any("error", err))
	}
}
