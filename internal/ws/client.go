package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kopibar/pos/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one connected terminal. Terminals only listen; anything they
// send is read and dropped.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	userID      uuid.UUID
	role        string
	connectedAt time.Time
	send        chan []byte
}

// ReadPump keeps the read deadline fresh and unregisters the client once the
// connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Printf("ws: %s %s disconnected after %s", c.role, c.userID, time.Since(c.connectedAt).Round(time.Second))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read from %s %s: %v", c.role, c.userID, err)
			}
			return
		}
	}
}

// WritePump sends each hub event as its own text frame and pings on idle.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades GET /ws. The access token comes from the Authorization
// header or ?token=. Browser origins must be in allowedOrigins ("*" allows
// any); requests without an Origin header, such as posctl, are accepted.
func Handler(hub *Hub, jwtSecret string, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.TokenFromRequest(r, true)
		if err != nil {
			reject(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := auth.ValidateToken(jwtSecret, tok)
		if err != nil {
			reject(w, http.StatusUnauthorized, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			log.Printf("ws: upgrade for %s: %v", claims.UserID, err)
			return
		}

		client := &Client{
			hub:         hub,
			conn:        conn,
			userID:      claims.UserID,
			role:        claims.Role,
			connectedAt: time.Now(),
			send:        make(chan []byte, sendBuffer),
		}
		if !hub.addClient(client) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
			conn.Close()
			return
		}
		log.Printf("ws: %s %s connected", client.role, client.userID)

		go client.WritePump()
		go client.ReadPump()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
