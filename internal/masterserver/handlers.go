package masterserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RegisterRequest is the body of POST /hosts
type RegisterRequest struct {
	Name       string `json:"name" binding:"required,max=128"`
	Address    string `json:"address" binding:"omitempty,ip|hostname"`
	Port       uint16 `json:"port" binding:"required"`
	GameID     string `json:"game_id" binding:"required,max=64"`
	GameType   string `json:"game_type" binding:"max=64"`
	Mode       string `json:"mode" binding:"max=64"`
	Protocol   string `json:"protocol" binding:"omitempty,oneof=tcp udp web"`
	Elo        int    `json:"elo" binding:"min=0"`
	Players    int    `json:"players" binding:"min=0"`
	MaxPlayers int    `json:"max_players" binding:"min=0"`
}

// HeartbeatRequest is the optional body of PUT /hosts/:id/heartbeat
type HeartbeatRequest struct {
	Players *int `json:"players" binding:"omitempty,min=0"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", s.health)

	hosts := router.Group("/hosts")
	{
		hosts.GET("", s.listHosts)
		hosts.POST("", s.registerHost)
		hosts.GET("/watch", s.watchHosts)
		hosts.GET("/:id", s.getHost)
		hosts.PUT("/:id/heartbeat", s.heartbeatHost)
		hosts.DELETE("/:id", s.removeHost)
	}

	return router
}

// requestLogger logs each request while logging is toggled on
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		if !s.logging.Load() {
			return
		}
		s.logger.Info("http_request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"instance_id": s.id,
		"hosts":       s.registry.Len(),
		"elo_range":   s.RatingRange(),
		"logging":     s.LoggingEnabled(),
	})
}

func (s *Server) listHosts(c *gin.Context) {
	filter := Filter{
		GameID:   strings.TrimSpace(c.Query("game_id")),
		GameType: strings.TrimSpace(c.Query("game_type")),
		Mode:     strings.TrimSpace(c.Query("mode")),
	}
	if raw := strings.TrimSpace(c.Query("elo")); raw != "" {
		elo, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "elo must be an integer"})
			return
		}
		filter.Elo = &elo
	}

	hosts := s.registry.List(filter, s.RatingRange())
	c.JSON(http.StatusOK, gin.H{"hosts": hosts, "count": len(hosts)})
}

func (s *Server) registerHost(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = c.ClientIP()
	}
	protocol := req.Protocol
	if protocol == "" {
		protocol = "udp"
	}

	host := s.registry.Register(Host{
		Name:       req.Name,
		Address:    address,
		Port:       req.Port,
		GameID:     req.GameID,
		GameType:   req.GameType,
		Mode:       req.Mode,
		Protocol:   protocol,
		Elo:        req.Elo,
		Players:    req.Players,
		MaxPlayers: req.MaxPlayers,
	})
	c.JSON(http.StatusCreated, host)
}

func (s *Server) getHost(c *gin.Context) {
	host, err := s.registry.Get(c.Param("id"))
	if err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, host)
}

func (s *Server) heartbeatHost(c *gin.Context) {
	var req HeartbeatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	host, err := s.registry.Heartbeat(c.Param("id"), req.Players)
	if err != nil {
		respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, host)
}

func (s *Server) removeHost(c *gin.Context) {
	if err := s.registry.Remove(c.Param("id")); err != nil {
		respondRegistryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// watchHosts upgrades to a websocket streaming registry events. The game_id
// query parameter narrows the feed to one game.
func (s *Server) watchHosts(c *gin.Context) {
	s.watchers.Add(1)
	defer s.watchers.Done()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("watch upgrade failed", "error", err)
		return
	}

	watcher := NewWatcher(uuid.NewString(), strings.TrimSpace(c.Query("game_id")), conn, s.hub)
	if !s.hub.Join(watcher) {
		conn.Close()
		return
	}

	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		watcher.Deliver()
	}()
	watcher.Listen()
}

func respondRegistryError(c *gin.Context, err error) {
	if errors.Is(err, ErrHostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
