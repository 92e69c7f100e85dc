// Kollywood Game
//
// The host reveals a first letter for Hero, Heroine, Song and Movie, and the
// other players race to fill in each other's boards. Wrong guesses cross off
// letters of the target's KOLLYWOOD strike track.
//
// Features:
// - Games created with POST $path/create-game, or GET $path?players=N which redirects
// - WebSockets per game ID: /path/:gameid/ws
// - Every websocket connection is one participant, identified by a fresh uuid
// - Every inbound frame gets exactly one ack frame back; game events fan out to the room
// - Host handover to the longest-connected player when the host drops
// - Games reclaimed when their last player leaves, or reaped if nobody ever joins
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/kollywood/games/kollywood"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	defaultPlayers = 4
	maxFrameSize   = 4096
)

var (
	errNoConnection   = errors.New("no such connection")
	errSlowConnection = errors.New("connection send buffer full")
)

// ClientMessage is the envelope of every inbound frame. The rest of the frame
// is the event payload.
type ClientMessage struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "join", "start", "setLetters", "lockCell", "unlockCell", "submitGuess", "nextRound", "getState"
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	gameID   string
}

// Hub tracks live connections by participant id. Engines deliver broadcasts
// through it, so Send never blocks.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func newHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.playerID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.playerID]; ok && cur == c {
		delete(h.clients, c.playerID)
		close(c.send)
	}
}

// Send queues msg for the connection without blocking. A connection that
// can't keep up is dropped.
func (h *Hub) Send(playerID string, msg any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[playerID]
	if !ok {
		return errNoConnection
	}

	select {
	case c.send <- msg:
		return nil
	default:
		delete(h.clients, playerID)
		close(c.send)
		return errSlowConnection
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, registry *kollywood.Registry, hub *Hub, d *kollywood.Dispatcher) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if _, err := registry.Get(gameID); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 32),
			playerID: uuid.NewString(),
			gameID:   gameID,
		}

		hub.register(client)

		logf(cfg, "SERVE: Connection %s to game %s from %s", client.playerID, gameID, realIP(r))

		go client.writePump(cfg.playerTimeout)
		client.readPump(cfg, hub, d)
	}
}

func (c *Client) readPump(cfg *Config, hub *Hub, d *kollywood.Dispatcher) {
	defer func() {
		hub.unregister(c)
		d.Disconnect(c.gameID, c.playerID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if cfg.playerTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
		})
	}

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			_ = hub.Send(c.playerID, kollywood.Ack{
				Type:  "ack",
				Error: kollywood.ErrBadPayload.Error(),
				Code:  kollywood.Code(kollywood.ErrBadPayload),
			})
			continue
		}

		d.Dispatch(kollywood.Event{
			RequestID: msg.ID,
			SessionID: c.gameID,
			SenderID:  c.playerID,
			Name:      msg.Type,
			Payload:   frame,
		})
	}
}

func (c *Client) writePump(pongWait time.Duration) {
	defer c.conn.Close()

	var ping <-chan time.Time
	if pongWait > 0 {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type createGameRequest struct {
	NumPlayers int `json:"numPlayers"`
}

type createGameResponse struct {
	GameID string `json:"gameId,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveCreateGame allocates a session for numPlayers players.
func serveCreateGame(cfg *Config, registry *kollywood.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createGameRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameSize)).Decode(&req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, createGameResponse{Error: kollywood.ErrInvalidCapacity.Error()})
			return
		}

		gameID, err := registry.Create(req.NumPlayers)
		if err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, createGameResponse{Error: err.Error()})
			return
		}

		logf(cfg, "GAMES: %s created %s", realIP(r), gameID)

		writeJSON(cfg, w, http.StatusOK, createGameResponse{GameID: gameID})
	}
}

// redirectNewGame handles GET /path by creating a game for ?players=N
// (default 4) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, registry *kollywood.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		players := defaultPlayers
		if v := r.URL.Query().Get("players"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "players must be a number", http.StatusBadRequest)
				return
			}
			players = n
		}

		gameID, err := registry.Create(players)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

func serveGamePage(cfg *Config, path string, registry *kollywood.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if _, err := registry.Get(gameID); err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(newPage("Game not found", "That game does not exist. Start a new one?")))
			return
		}

		base := cfg.prefix + path + "/" + gameID

		var body strings.Builder
		body.WriteString(fmt.Sprintf("<h1>Kollywood game %s</h1>", gameID))
		body.WriteString(fmt.Sprintf(`<p>Connect to <code>%s/ws</code> to play.</p>`, base))
		body.WriteString(fmt.Sprintf(`<img src="%s/qr" alt="QR code for this game" width="320" height="320">`, base))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(newPage("Kollywood", body.String())))
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerKollywoodGame sets up routes so that:
//   - $path                    → creates a game (?players=N) and redirects to it
//   - $path/create-game        → POST {"numPlayers": N} → {"gameId": ...}
//   - $path/:gameid            → game page
//   - $path/:gameid/ws         → WebSocket for that game
//   - $path/:gameid/qr         → PNG QR code for that game URL
func registerKollywoodGame(cfg *Config, path string, mux *httprouter.Router, registry *kollywood.Registry, hub *Hub) {
	d := kollywood.NewDispatcher(registry)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, registry))
	mux.POST(cfg.prefix+path+"/create-game", serveCreateGame(cfg, registry))
	mux.GET(cfg.prefix+path+"/:gameid", serveGamePage(cfg, path, registry))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWS(cfg, registry, hub, d))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
