// Package web provides the HTTP API and status pages of the parking controller.
package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
	"github.com/sweeney/parking-controller/internal/status"
)

// GateOpener submits open commands to the control loop.
// *control.Loop satisfies it.
type GateOpener interface {
	OpenGate(ctx context.Context, id logic.GateID) (logic.OpenResult, error)
}

// Options configures the API surface.
type Options struct {
	// Capacity is the number of slot sensors served as /d1../dN.
	Capacity int
	// ExposeGateSensors serves the entrance and exit sensors as /d{N+1} and /d{N+2}.
	ExposeGateSensors bool
	Log               *logger.Logger
}

// Server serves the API and status pages over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	gates      GateOpener
	opts       Options
	log        *logger.Logger
}

// New creates a Server that reads state from the given tracker and sends
// open commands to gates.
func New(addr string, tracker *status.Tracker, gates GateOpener, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	s := &Server{
		tracker: tracker,
		gates:   gates,
		opts:    opts,
		log:     opts.Log,
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.GET("/ws", s.wsConnect)

	s.registerSensorRoutes(router)

	open := router.Group("/open")
	{
		open.GET("/entrance", s.openGate(logic.Entrance))
		open.GET("/exit", s.openGate(logic.Exit))
		open.GET("/slots", s.availableSlots)
	}
	router.GET("/carsInside", s.carsInside)

	router.NoRoute(s.notFound)
	return router
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLog(c *gin.Context) {
	c.Next()
	s.log.Debugw("http_request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
	)
}

func (s *Server) notFound(c *gin.Context) {
	if isSensorPath(c.Request.URL.Path) {
		c.String(http.StatusNotFound, "Sensor not found")
		return
	}
	c.String(http.StatusNotFound, "Not found")
}

// isSensorPath reports whether p looks like /d<number>.
func isSensorPath(p string) bool {
	if !strings.HasPrefix(p, "/d") || len(p) == 2 {
		return false
	}
	for _, r := range p[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, s.tracker.Snapshot()); err != nil {
		s.log.Warnw("render_index_failed", "err", err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}
