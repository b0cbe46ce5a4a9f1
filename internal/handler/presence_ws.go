package handler

import (
	"log"
	"net/http"
	"time"

	"notify24/config"
	"notify24/internal/auth"
	"notify24/internal/domain"
	"notify24/internal/repository"
	"notify24/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var presenceUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PresenceChangedEvent is broadcast to all clients on online/offline edges.
type PresenceChangedEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	AtUTC    time.Time `json:"at_utc"`
}

// UpgradePresenceWS upgrades to WebSocket for the presence channel; query:
// token. A connection that cannot be resolved to a user is rejected before
// registration. The first connection of a user flips the durable online flag
// and broadcasts PresenceChanged; further tabs/devices are silent.
func UpgradePresenceWS(cfg *config.JWTConfig, hub *ws.Hub, tracker *ws.PresenceTracker, userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if _, err := userRepo.GetByID(claims.UserID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		conn, err := presenceUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &ws.Client{
			UserID: claims.UserID,
			ConnID: uuid.NewString(),
			Role:   claims.Role,
			Send:   make(chan []byte, 256),
		}
		hub.Register(client)

		if tracker.Connect(client.UserID, client.ConnID) {
			now := time.Now().UTC()
			if err := userRepo.SetOnline(client.UserID, true, now); err != nil {
				log.Printf("[presence] persist online flag: %v", err)
			}
			hub.BroadcastAll(domain.EventPresenceChanged, PresenceChangedEvent{
				UserID:   client.UserID,
				IsOnline: true,
				AtUTC:    now,
			})
		}

		defer func() {
			client.Close()
			if tracker.Disconnect(client.UserID, client.ConnID) {
				now := time.Now().UTC()
				if err := userRepo.SetOnline(client.UserID, false, now); err != nil {
					log.Printf("[presence] persist offline flag: %v", err)
				}
				hub.BroadcastAll(domain.EventPresenceChanged, PresenceChangedEvent{
					UserID:   client.UserID,
					IsOnline: false,
					AtUTC:    now,
				})
			}
		}()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		go func() {
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case msg, ok := <-client.Send:
					if !ok {
						conn.WriteMessage(websocket.CloseMessage, nil)
						return
					}
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
