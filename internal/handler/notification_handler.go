package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vaultwatch/riskpulse/internal/dto"
	"github.com/vaultwatch/riskpulse/internal/hub"
	"github.com/vaultwatch/riskpulse/internal/repository"
	"github.com/vaultwatch/riskpulse/internal/service"
	"github.com/vaultwatch/riskpulse/pkg/apperror"
	"github.com/vaultwatch/riskpulse/pkg/response"
)

const keepaliveInterval = 30 * time.Second

type NotificationHandler struct {
	service  service.NotificationService
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

func NewNotificationHandler(svc service.NotificationService, h *hub.Hub) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		hub:     h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced at the router level
			},
		},
	}
}

// REST Endpoints

func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = 50
	}

	notifications, err := h.service.List(c.Request.Context(), userID, repository.NotificationFilter{
		Limit:    query.Limit,
		Read:     query.Read,
		Type:     query.Type,
		Category: query.Category,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) Create(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	notification, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, notification)
}

// Send creates a notification for an arbitrary user. Admin only; this is
// how "analysis complete" style events reach their owner.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req dto.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidInput)
		return
	}

	notification, err := h.service.Create(c.Request.Context(), targetID, req.CreateNotificationRequest)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, notification)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrInvalidInput)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.MarkAllReadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.service.MarkAllRead(c.Request.Context(), userID, repository.NotificationFilter{
		Type:     query.Type,
		Category: query.Category,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrInvalidInput)
		return
	}

	if err := h.service.Remove(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) ClearAll(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.service.ClearAll(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.service.CountUnread(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) Search(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.SearchNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}

	results, err := h.service.Search(c.Request.Context(), userID, query.Query, query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// Streaming Endpoints

// Stream holds an SSE connection open and forwards every notification
// created for the caller. The first frame is always a "connected" ack; a
// client that wants history must fetch the list endpoint, the stream never
// replays missed events.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sub := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	if err := sse.Encode(c.Writer, sse.Event{
		Event: "connected",
		Data: gin.H{
			"user_id":     userID,
			"server_time": time.Now().UTC(),
		},
	}); err != nil {
		return
	}
	c.Writer.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sse.Encode(c.Writer, sse.Event{
				Event: "notification",
				Data:  json.RawMessage(payload),
			}); err != nil {
				log.Printf("sse: write failed for user %s: %v", userID, err)
				return
			}
			c.Writer.Flush()
		case <-keepalive.C:
			// Comment frame; keeps proxies from idling out the connection.
			if _, err := io.WriteString(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// HandleWebSocket is the WebSocket flavor of Stream; same payloads, for
// clients that prefer a bidirectional socket.
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: failed to upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(sub)

	// Reads are discarded; the read loop only exists to observe disconnect.
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws: write failed for user %s: %v", userID, err)
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
