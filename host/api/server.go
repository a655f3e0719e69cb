package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ardnew/softcxp/host"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
	"github.com/ardnew/softcxp/pkg/prof"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Options configures a Server.
type Options struct {
	// CORSOrigins lists the origins allowed to call the API. Empty allows
	// http://localhost:3000 only.
	CORSOrigins []string

	// Logger receives one line per request, tagged with the link name.
	Logger zerolog.Logger
}

// Server exposes a Host over HTTP.
type Server struct {
	host     *host.Host
	router   *gin.Engine
	appeared time.Time
}

// New builds the router and registers the routes.
func New(h *host.Host, opts Options) *Server {
	host.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observe(h, opts.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{host: h, router: r, appeared: time.Now()}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

type triggerRequest struct {
	Delay *uint8 `json:"delay" binding:"required"`
}

type triggerModeRequest struct {
	LinkTriggerMode bool `json:"link_trigger_mode"`
}

type commandRequest struct {
	Words []uint32 `json:"words" binding:"required"`
}

type readPointerRequest struct {
	ReadPointer *int `json:"read_pointer" binding:"required"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"link":    s.host.Name(),
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h := prof.Handler(); h != nil {
		s.router.GET("/debug/pprof/*profile", gin.WrapH(h))
	}

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.host.Status())
	})

	s.router.POST("/trigger", func(c *gin.Context) {
		var req triggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", pkg.ErrInvalidParameter, err))
			return
		}
		if err := s.host.Trigger(*req.Delay); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "delay": *req.Delay})
	})

	s.router.PUT("/trigger/mode", func(c *gin.Context) {
		var req triggerModeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", pkg.ErrInvalidParameter, err))
			return
		}
		s.host.SetLinkTriggerMode(req.LinkTriggerMode)
		c.JSON(http.StatusOK, gin.H{"link_trigger_mode": req.LinkTriggerMode})
	})

	s.router.POST("/trigger-ack", func(c *gin.Context) {
		if err := s.host.TriggerAck(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	s.router.POST("/writer/command", func(c *gin.Context) {
		var req commandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", pkg.ErrInvalidParameter, err))
			return
		}
		if err := s.host.SendCommand(req.Words); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "words": len(req.Words)})
	})

	s.router.POST("/writer/test", func(c *gin.Context) {
		if err := s.host.SendTestSequence(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	s.router.POST("/test/reset", func(c *gin.Context) {
		s.host.ResetTestCounters()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.POST("/errors/ack", func(c *gin.Context) {
		s.host.AckErrors()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.PUT("/command/read-pointer", func(c *gin.Context) {
		var req readPointerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", pkg.ErrInvalidParameter, err))
			return
		}
		if err := s.host.SetReadPointer(*req.ReadPointer); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"read_pointer": *req.ReadPointer})
	})

	s.router.GET("/command/next", func(c *gin.Context) {
		words, err := s.host.ReadCommandPacket()
		if err != nil {
			respondError(c, err)
			return
		}
		resp := gin.H{"words": words}
		if len(words) > 0 {
			typ := uint8(words[0])
			resp["type"] = fmt.Sprintf("0x%02X", typ)
			resp["kind"] = link.ClassifyType(typ).String()
		}
		c.JSON(http.StatusOK, resp)
	})
}

// statusFor maps a host error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkg.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, pkg.ErrNoPacket):
		return http.StatusNotFound
	case errors.Is(err, pkg.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pkg.ErrNotRunning), errors.Is(err, pkg.ErrLinkDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError attaches err to the request for the log line and writes it
// as the response body.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
