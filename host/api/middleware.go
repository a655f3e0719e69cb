package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ardnew/softcxp/host"
	"github.com/ardnew/softcxp/pkg"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// causes names the host errors a handler reports, most specific first.
var causes = []struct {
	err  error
	name string
}{
	{pkg.ErrInvalidParameter, "invalid_parameter"},
	{pkg.ErrNoPacket, "no_packet"},
	{pkg.ErrBusy, "busy"},
	{pkg.ErrNotRunning, "not_running"},
	{pkg.ErrLinkDown, "link_down"},
}

// causeOf returns the log name of err.
func causeOf(err error) string {
	for _, c := range causes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "internal"
}

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// observe counts every request against the link of h and logs one line
// for it. Handlers attach the host error with c.Error so the line names
// its cause. Successful reads are frequent status polls and log at debug.
func observe(h *host.Host, logger zerolog.Logger) gin.HandlerFunc {
	name := h.Name()
	logger = logger.With().Str("link", name).Logger()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := routePath(c)
		host.RecordRequest(name, c.Request.Method, route, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case c.Request.Method == http.MethodGet:
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		if last := c.Errors.Last(); last != nil {
			event = event.Str("cause", causeOf(last.Err)).Err(last.Err)
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Bool("link_up", h.LinkReady()).
			Str("client_ip", c.ClientIP()).
			Msg("api_request")
	}
}
