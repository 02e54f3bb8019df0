package api

import (
	"time"

	"webhook-trader/internal/engine"
	"webhook-trader/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires HTTP endpoints around the trading engine.
type Server struct {
	Router    *gin.Engine
	Engine    *engine.Engine
	Bus       *events.Bus
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed on /health.
type SystemMeta struct {
	DryRun     bool
	Venue      string
	InstanceID string
	Version    string
}

func NewServer(eng *engine.Engine, bus *events.Bus, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    eng,
		Bus:       bus,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.POST("/webhook", s.postWebhook)
	s.Router.GET("/health", s.health)
	s.Router.GET("/positions", s.getPositions)
	s.Router.GET("/ws", s.websocket)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := s.Router.Group("")
	protected.Use(AuthMiddleware(s.JWTSecret))
	{
		protected.POST("/close_all", s.closeAll)
	}
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
