package handler

import (
	"net/http"
	"time"

	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/metrics"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NotificationHandler handles the notification inbox and its realtime stream.
type NotificationHandler struct {
	svc      ports.NotificationService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewNotificationHandler creates a new NotificationHandler. An empty
// allowedOrigins list accepts any origin.
func NewNotificationHandler(svc ports.NotificationService, allowedOrigins []string, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowedOrigins) == 0 || origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
		log: log,
	}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q dto.NotificationQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.svc.List(c.Request.Context(), actor.UserID, ports.NotificationFilter{
		UnreadOnly:  q.UnreadOnly,
		PageRequest: pageRequest(q.PageQuery),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NotificationListResponse{
		Page:        dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit),
		UnreadCount: page.UnreadCount,
	})
}

// MarkRead handles PUT /api/v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), actor.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Notification marked as read", nil)
}

// MarkAllRead handles PUT /api/v1/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "All notifications marked as read", gin.H{"updated": n})
}

// Delete handles DELETE /api/v1/notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Notification deleted", nil)
}

// AdminSend handles POST /api/v1/admin/notifications.
func (h *NotificationHandler) AdminSend(c *gin.Context) {
	var req dto.AdminNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.svc.Notify(c.Request.Context(), ports.NotifyRequest{
		UserID:       mustUUID(req.UserID),
		Title:        req.Title,
		Message:      req.Message,
		Type:         domain.NotificationType(req.Type),
		Priority:     domain.NotificationPriority(req.Priority),
		RelatedModel: domain.RelatedSystem,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Notification sent", n)
}

// Stream handles GET /api/v1/notifications/stream. It upgrades to a
// WebSocket and forwards the user's notification events until either side
// closes.
func (h *NotificationHandler) Stream(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	events, cancel, err := h.svc.Subscribe(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", actor.UserID.String()).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and keeps the read deadline alive on pong.
// It closes done when the connection goes away.
func (h *NotificationHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}
