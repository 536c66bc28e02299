// Package api exposes game management over HTTP: starting and ending games,
// listing rooms, join-link QR codes and persisted game history.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"impostor/internal/game"
	"impostor/internal/session"
	"impostor/pkg/interfaces"
	"impostor/pkg/types"
)

const qrSize = 320

// Sessions is the slice of the session registry the API drives.
type Sessions interface {
	Start(req session.StartRequest) (*game.Controller, error)
	Get(roomID string) (*game.Controller, bool)
	Teardown(roomID, reason string) error
	ListActive() []game.Summary
	GetStats() map[string]interface{}
}

// Connections reports websocket presence per room.
type Connections interface {
	IsConnected(roomID, participantID string) bool
	GetStats() map[string]int
}

type Server struct {
	sessions    Sessions
	connections Connections
	store       interfaces.HistoryStore
	baseURL     string
	startedAt   time.Time
	engine      *gin.Engine
}

// NewServer builds the gin engine. store may be nil, in which case history
// is unavailable. baseURL is the public websocket origin used in join links;
// when empty it is derived from each request.
func NewServer(sessions Sessions, connections Connections, store interfaces.HistoryStore, baseURL string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		sessions:    sessions,
		connections: connections,
		store:       store,
		baseURL:     baseURL,
		startedAt:   time.Now(),
		engine:      gin.New(),
	}

	s.engine.Use(gin.LoggerWithWriter(os.Stdout))
	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	games := s.engine.Group("/api/games")
	games.POST("", s.createGame)
	games.GET("", s.listGames)
	games.GET("/:room", s.getGame)
	games.DELETE("/:room", s.endGame)
	games.GET("/:room/qr", s.joinQRCode)

	s.engine.GET("/api/history/:game_id", s.getHistory)
	s.engine.GET("/health", s.healthCheck)
}

// MountWebSocket serves the websocket upgrade handler at path.
func (s *Server) MountWebSocket(path string, handler http.HandlerFunc) {
	s.engine.GET(path, gin.WrapF(handler))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type CreateGameResponse struct {
	Game    *types.Snapshot `json:"game"`
	JoinURL string          `json:"join_url"`
}

type GameResponse struct {
	Game      *types.Snapshot `json:"game"`
	Connected []string        `json:"connected"`
}

type ListGamesResponse struct {
	Games []game.Summary `json:"games"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Database    string                 `json:"database"`
	Connections map[string]int         `json:"connections"`
	Sessions    map[string]interface{} `json:"sessions"`
	Uptime      string                 `json:"uptime"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/games
func (s *Server) createGame(c *gin.Context) {
	var req session.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendError(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctrl, err := s.sessions.Start(req)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidConfig):
			s.sendError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrRoomBusy):
			s.sendError(c, http.StatusConflict, "A game is already running in this room")
		case errors.Is(err, session.ErrRegistryClosed):
			s.sendError(c, http.StatusServiceUnavailable, "Server is shutting down")
		default:
			log.Printf("Failed to start game in room %s: %v", req.RoomID, err)
			s.sendError(c, http.StatusInternalServerError, "Failed to start game")
		}
		return
	}

	snapshot, err := ctrl.Snapshot("")
	if err != nil {
		// The game can only be gone this fast if it was torn down concurrently.
		s.sendError(c, http.StatusGone, "Game ended before it could be described")
		return
	}

	c.JSON(http.StatusCreated, CreateGameResponse{
		Game:    snapshot,
		JoinURL: s.joinURL(c.Request, req.RoomID),
	})
}

// GET /api/games
func (s *Server) listGames(c *gin.Context) {
	c.JSON(http.StatusOK, ListGamesResponse{Games: s.sessions.ListActive()})
}

// GET /api/games/:room
func (s *Server) getGame(c *gin.Context) {
	ctrl, ok := s.sessions.Get(c.Param("room"))
	if !ok {
		s.sendError(c, http.StatusNotFound, "No game running in this room")
		return
	}

	snapshot, err := ctrl.Snapshot("")
	if err != nil {
		s.sendError(c, http.StatusNotFound, "No game running in this room")
		return
	}

	connected := make([]string, 0, len(snapshot.Participants))
	for _, p := range snapshot.Participants {
		if s.connections.IsConnected(snapshot.RoomID, p.ID) {
			connected = append(connected, p.ID)
		}
	}

	c.JSON(http.StatusOK, GameResponse{Game: snapshot, Connected: connected})
}

// DELETE /api/games/:room
func (s *Server) endGame(c *gin.Context) {
	roomID := c.Param("room")

	if err := s.sessions.Teardown(roomID, "ended by host"); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.sendError(c, http.StatusNotFound, "No game running in this room")
			return
		}
		log.Printf("Failed to end game in room %s: %v", roomID, err)
		s.sendError(c, http.StatusInternalServerError, "Failed to end game")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game ended"})
}

// GET /api/games/:room/qr renders the room's join link as a PNG.
func (s *Server) joinQRCode(c *gin.Context) {
	roomID := c.Param("room")
	if _, ok := s.sessions.Get(roomID); !ok {
		s.sendError(c, http.StatusNotFound, "No game running in this room")
		return
	}

	png, err := qrcode.Encode(s.joinURL(c.Request, roomID), qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("QR generation failed for room %s: %v", roomID, err)
		s.sendError(c, http.StatusInternalServerError, "QR generation failed")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/history/:game_id
func (s *Server) getHistory(c *gin.Context) {
	if s.store == nil {
		s.sendError(c, http.StatusServiceUnavailable, "History is not available")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	history, err := s.store.GetGameHistory(ctx, c.Param("game_id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrGameNotFound) {
			s.sendError(c, http.StatusNotFound, "Game not found")
			return
		}
		log.Printf("Failed to load history for game %s: %v", c.Param("game_id"), err)
		s.sendError(c, http.StatusInternalServerError, "Failed to load history")
		return
	}

	c.JSON(http.StatusOK, history)
}

// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.store != nil {
		dbStatus = "healthy"
		if err := s.store.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.connections.GetStats(),
		Sessions:    s.sessions.GetStats(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

// joinURL is the websocket address participants open, minus their id.
func (s *Server) joinURL(r *http.Request, roomID string) string {
	base := s.baseURL
	if base == "" {
		scheme := "ws"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "wss"
		}
		base = scheme + "://" + r.Host
	}

	query := url.Values{}
	query.Set("room_id", roomID)
	return base + "/ws?" + query.Encode()
}

func (s *Server) sendError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}
