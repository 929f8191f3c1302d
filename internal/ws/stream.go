// Run event streaming over WebSocket
// Pushes pipeline state transitions to connected clients in real time

package ws

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"botforge/internal/logging"
	"botforge/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SECURITY: Strict origin checking - no empty origins in production
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		allowedOriginsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
		var allowedOrigins []string
		if allowedOriginsEnv != "" {
			allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		} else {
			allowedOrigins = []string{
				"http://localhost:3000",
				"http://localhost:8080",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:8080",
			}
		}

		for _, allowed := range allowedOrigins {
			if strings.TrimSpace(allowed) == origin {
				return true
			}
		}

		// Allow empty origin in non-production for testing tools
		env := os.Getenv("ENVIRONMENT")
		if origin == "" && env != "production" {
			return true
		}

		return false
	},
}

// Streamer bridges pipeline transition streams onto WebSocket connections.
type Streamer struct {
	service *pipeline.Service
	log     *zap.Logger
}

func NewStreamer(service *pipeline.Service) *Streamer {
	return &Streamer{
		service: service,
		log:     logging.L().With(zap.String("component", "ws_streamer")),
	}
}

// HandleRunEvents upgrades the connection and streams every transition of the
// requested run until the run reaches a terminal state or the client leaves.
func (s *Streamer) HandleRunEvents(c *gin.Context) {
	runID := c.Param("id")

	events, unsubscribe, err := s.service.Subscribe(runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found or already finished"})
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("event stream opened", zap.String("run_id", runID))

	// Reader goroutine only services control frames; clients don't send data.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case tr, ok := <-events:
			if !ok {
				s.closeStream(conn, "run finished")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(tr); err != nil {
				s.log.Debug("event write failed", zap.String("run_id", runID), zap.Error(err))
				return
			}
			if tr.ToState.IsTerminal() {
				s.closeStream(conn, "run finished")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Streamer) closeStream(conn *websocket.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}
