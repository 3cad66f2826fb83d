package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stockpulse/stockpulse/internal/alerter"
	"github.com/stockpulse/stockpulse/internal/command"
	"github.com/stockpulse/stockpulse/internal/hub"
	"github.com/stockpulse/stockpulse/internal/monitor"
	"github.com/stockpulse/stockpulse/internal/types"
	"github.com/stockpulse/stockpulse/internal/version"
)

// Server exposes the command surface over HTTP and the live alert feed
// over WebSocket.
type Server struct {
	registry  *command.Registry
	scheduler *monitor.Scheduler
	engine    *alerter.Engine
	hub       *hub.Hub
	logBuffer *LogBuffer
	logger    zerolog.Logger
	port      string
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewServer creates the API server.
func NewServer(registry *command.Registry, scheduler *monitor.Scheduler, engine *alerter.Engine, h *hub.Hub, logBuffer *LogBuffer, port string, logger zerolog.Logger) *Server {
	return &Server{
		registry:  registry,
		scheduler: scheduler,
		engine:    engine,
		hub:       h,
		logBuffer: logBuffer,
		logger:    logger.With().Str("component", "api").Logger(),
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Live feed is read-only for clients; no cross-origin writes.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	router := s.routes()
	addr := ":" + s.port
	s.logger.Info().Str("address", addr).Msg("starting API server")
	return router.Run(addr)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)

	router.GET("/alerts", s.handleGetAlerts)
	router.POST("/alerts/:id/acknowledge", s.handleAcknowledge)
	router.POST("/alerts/:id/resolve", s.handleResolve)

	router.POST("/monitoring", s.handleStartMonitoring)
	router.GET("/monitoring", s.handleListSessions)
	router.DELETE("/monitoring/:id", s.handleStopMonitoring)

	router.GET("/api/logs", s.handleLogs)
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":     version.GetFullVersion(),
		"build_date":  version.GetBuildDate(),
		"uptime":      time.Since(s.startTime).Round(time.Second).String(),
		"alerts":      s.engine.Stats(),
		"sessions":    len(s.scheduler.Sessions()),
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) handleGetAlerts(c *gin.Context) {
	sev := types.Severity(c.Query("severity"))
	if sev != "" && !sev.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown severity"})
		return
	}

	resp, err := s.registry.Dispatch(c.Request.Context(), command.Request{
		Kind:     command.KindGetActiveAlerts,
		EntityID: c.Query("entity_id"),
		Severity: sev,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	wire := make([]types.WireAlert, 0, len(resp.Alerts))
	for i := range resp.Alerts {
		wire = append(wire, resp.Alerts[i].ToWire())
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"active_alerts": wire,
		"total_alerts":  len(wire),
	})
}

type actorRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
	ResolvedBy     string `json:"resolved_by"`
	ResolutionNote string `json:"resolution_note"`
}

func (s *Server) handleAcknowledge(c *gin.Context) {
	var body actorRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.AcknowledgedBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "acknowledged_by is required"})
		return
	}

	resp, err := s.registry.Dispatch(c.Request.Context(), command.Request{
		Kind:    command.KindAcknowledgeAlert,
		AlertID: c.Param("id"),
		Actor:   body.AcknowledgedBy,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if !resp.OK {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "acknowledged": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "acknowledged": true, "alert_id": c.Param("id")})
}

func (s *Server) handleResolve(c *gin.Context) {
	var body actorRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.ResolvedBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "resolved_by is required"})
		return
	}

	resp, err := s.registry.Dispatch(c.Request.Context(), command.Request{
		Kind:    command.KindResolveAlert,
		AlertID: c.Param("id"),
		Actor:   body.ResolvedBy,
		Note:    body.ResolutionNote,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if !resp.OK {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "resolved": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "resolved": true, "alert_id": c.Param("id")})
}

type startMonitoringRequest struct {
	EntityID          string  `json:"entity_id" binding:"required"`
	IntervalMinutes   int     `json:"interval_minutes"`
	AutoRestock       bool    `json:"auto_restock"`
	LowStockThreshold float64 `json:"low_stock_threshold"`
}

func (s *Server) handleStartMonitoring(c *gin.Context) {
	var body startMonitoringRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	resp, err := s.registry.Dispatch(c.Request.Context(), command.Request{
		Kind:              command.KindStartMonitoring,
		EntityID:          body.EntityID,
		Interval:          time.Duration(body.IntervalMinutes) * time.Minute,
		AutoRestock:       body.AutoRestock,
		LowStockThreshold: body.LowStockThreshold,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"monitoring_started": true,
		"entity_id":          body.EntityID,
		"session_id":         resp.SessionID,
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions := s.scheduler.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handleStopMonitoring(c *gin.Context) {
	resp, err := s.registry.Dispatch(c.Request.Context(), command.Request{
		Kind:      command.KindStopMonitoring,
		SessionID: c.Param("id"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if !resp.OK {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "monitoring_stopped": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "monitoring_stopped": true, "session_id": c.Param("id")})
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"logs":   s.logBuffer.Recent(limit),
	})
}

// handleWebSocket upgrades the request and subscribes the connection to
// the broadcast hub. The read loop only watches for the client closing;
// all writes come from the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := hub.NewWSConn(ws)
	s.hub.Subscribe(conn)

	go func() {
		defer func() {
			s.hub.Unsubscribe(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
