// Package api exposes the Tracker over HTTP/JSON with gin.
//
// Routes keep the paths and payload shapes of the original web client:
// items, order and use history, requirements, accounts and the
// backup-and-reset download. Failures are returned as {"error": message}.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/session"
)

const (
	// HeaderCurrentUser names the actor written into ledger entries.
	HeaderCurrentUser = "current-user"
	// HeaderRequestID carries the request id in and out.
	HeaderRequestID = "X-Request-ID"

	ctxRequestID = "stockwise.request_id"
)

// Server routes HTTP requests to a Tracker.
type Server struct {
	tracker   *stockwise.Tracker
	sessions  *session.Manager
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	staticDir string
	origins   []string

	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSessions enables remember-me cookies.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) { s.sessions = m }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithStaticDir serves a built single page application from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithCORSOrigins restricts cross-origin requests. No origins allows all.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New builds the router.
func New(t *stockwise.Tracker, opts ...Option) *Server {
	s := &Server{
		tracker: t,
		logger:  t.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.requestID(), s.requestLogger(), gin.CustomRecovery(s.recover))
	r.Use(cors.New(s.corsConfig()))
	s.routes(r)
	s.engine = r
	return s
}

// Handler returns the http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/items", s.listItems)
	r.POST("/items", s.createItem)
	r.PUT("/items/:id", s.updateItem)
	r.DELETE("/items/:id", s.deleteItem)
	r.GET("/items/:id/history", s.itemHistory)
	r.POST("/items/:id/adjust", s.adjustStock)

	r.POST("/signup", s.signup)
	r.POST("/signin", s.signin)
	r.POST("/identify-user", s.identifyUser)
	r.POST("/verify-security-answer", s.verifySecurityAnswer)
	r.POST("/reset-password", s.resetPassword)
	r.PUT("/change-password", s.changePassword)
	r.POST("/logout", s.logout)
	r.PUT("/update-username", s.updateUsername)
	r.PUT("/update-email", s.updateEmail)
	r.DELETE("/delete-account", s.deleteAccount)

	r.GET("/requirements", s.listRequirements)
	r.POST("/requirements", s.createRequirement)
	r.PUT("/requirements/:id", s.updateRequirement)
	r.DELETE("/requirements/:id", s.deleteRequirement)

	r.GET("/order-history", s.listReceipts)
	r.POST("/order-history", s.createReceipt)
	r.PUT("/order-history/:id", s.updateReceipt)
	r.DELETE("/order-history/:id", s.deleteReceipt)

	r.GET("/use-history", s.listUsages)
	r.POST("/use-history", s.createUsage)
	r.PUT("/use-history/:id", s.updateUsage)
	r.DELETE("/use-history/:id", s.deleteUsage)

	r.GET("/dashboard", s.dashboard)
	r.GET("/integrity", s.integrity)
	r.GET("/backup", s.backup)
	r.GET("/backup-and-reset", s.backupAndReset)

	r.NoRoute(s.notFound)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.origins) == 0 {
		// Credentials cannot be combined with a wildcard origin.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = s.origins
	}
	cfg.AddAllowMethods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions)
	cfg.AddAllowHeaders(HeaderCurrentUser, HeaderRequestID, "Authorization")
	cfg.AddExposeHeaders("Content-Disposition", HeaderRequestID)
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}

func (s *Server) recover(c *gin.Context, v any) {
	s.logger.Error("panic serving request",
		"path", c.Request.URL.Path,
		"panic", v,
		"request_id", c.GetString(ctxRequestID),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}

// actor names who performs a write: the current-user header, else the
// remembered session, else UnknownActor.
func (s *Server) actor(c *gin.Context) string {
	if u := strings.TrimSpace(c.GetHeader(HeaderCurrentUser)); u != "" {
		return u
	}
	if s.sessions != nil {
		if u, ok := s.sessions.FromRequest(c.Request); ok {
			return u
		}
	}
	return history.UnknownActor
}

func (s *Server) health(c *gin.Context) {
	if err := s.tracker.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// notFound serves the single page application for unknown GET paths when
// a static directory is configured.
func (s *Server) notFound(c *gin.Context) {
	if s.staticDir == "" || c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	clean := filepath.Clean("/" + c.Request.URL.Path)
	path := filepath.Join(s.staticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		c.File(path)
		return
	}
	c.File(filepath.Join(s.staticDir, "index.html"))
}
