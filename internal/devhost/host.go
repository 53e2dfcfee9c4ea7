package devhost

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/webbridge/internal/auth"
	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/observability"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed client.js
var clientScript []byte

const (
	// Scheme is the custom scheme forwarded URLs are expressed in.
	Scheme = "bldr"
	// StartPath is the document the host opens first.
	StartPath = "/index.html"

	shutdownTimeout = 5 * time.Second
)

// Bridge is what the dev host needs from the host bridge.
type Bridge interface {
	Forward(ctx context.Context, req bridge.Request, w bridge.ResponseWriter)
	HandleMessage(msg string) bool
}

type Config struct {
	Addr         string
	StartURL     string
	Init         protocol.HostInit
	CORSOrigins  []string
	MaxBodyBytes int64
	InjectClient bool
	// AdminToken, when set, is required on /metrics and /__bridge/debug.
	AdminToken string
}

// StartURL is the first navigation target, carrying the web document id when set.
func StartURL(webDocumentID string) string {
	u := Scheme + "://" + StartPath
	if id := strings.TrimSpace(webDocumentID); id != "" {
		u += "?webDocumentId=" + url.QueryEscape(id)
	}
	return u
}

// SchemeURL maps an HTTP request URI onto the custom scheme.
func SchemeURL(requestURI string) string {
	return Scheme + "://" + requestURI
}

type Host struct {
	cfg     Config
	bridge  Bridge
	hub     *Hub
	router  *gin.Engine
	logger  zerolog.Logger
	started time.Time
}

func New(cfg Config, b Bridge, hub *Hub, logger zerolog.Logger) *Host {
	if cfg.Init.DevTools {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.StartURL == "" {
		cfg.StartURL = StartURL("")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	logger = logger.With().Str("component", "devhost").Logger()

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins, cfg.Addr),
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	hub.SetMessageHandler(b.HandleMessage)
	h := &Host{
		cfg:     cfg,
		bridge:  b,
		hub:     hub,
		router:  r,
		logger:  logger,
		started: time.Now(),
	}
	h.registerRoutes()
	return h
}

func (h *Host) Handler() http.Handler {
	return h.router
}

func (h *Host) registerRoutes() {
	h.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, strings.TrimPrefix(h.cfg.StartURL, Scheme+"://"))
	})
	h.router.GET("/__bridge/ws", h.hub.ServeWS)
	h.router.GET("/__bridge/client.js", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/javascript; charset=utf-8", clientScript)
	})
	h.router.GET("/__bridge/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(h.started).String(),
			"pages":  h.hub.Pages(),
		})
	})
	admin := h.router.Group("/")
	if h.cfg.AdminToken != "" {
		admin.Use(auth.Middleware(auth.StaticToken{Token: h.cfg.AdminToken}))
	}
	admin.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if h.cfg.Init.DevTools {
		admin.GET("/__bridge/debug", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"start_url":      h.cfg.StartURL,
				"dev_tools":      h.cfg.Init.DevTools,
				"external_links": h.cfg.Init.ExternalLinks.String(),
				"pages":          h.hub.Pages(),
			})
		})
	}
	h.router.NoRoute(h.forward)
}

func (h *Host) forward(c *gin.Context) {
	if h.cfg.Init.ExternalLinks == protocol.ExternalLinksDeny && crossOrigin(c.Request) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		headers[k] = strings.Join(v, ", ")
	}
	req := bridge.Request{
		Method:  c.Request.Method,
		URL:     SchemeURL(c.Request.URL.RequestURI()),
		Headers: headers,
		Body:    body,
	}
	h.bridge.Forward(c.Request.Context(), req, newHTTPWriter(c.Writer, h.cfg.InjectClient))
}

// Run serves until ctx ends, then shuts down gracefully.
func (h *Host) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return fmt.Errorf("devhost: listen %s: %w", h.cfg.Addr, err)
	}
	return h.Serve(ctx, ln)
}

func (h *Host) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: h.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	h.logger.Info().Str("addr", ln.Addr().String()).Str("start_url", h.cfg.StartURL).Msg("dev host listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devhost: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(observability.RequestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// crossOrigin reports whether the request was initiated from another origin.
func crossOrigin(r *http.Request) bool {
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		return err != nil || u.Host != r.Host
	}
	return r.Header.Get("Sec-Fetch-Site") == "cross-site"
}

func normalizeOrigins(origins []string, addr string) []string {
	if len(origins) > 0 {
		return origins
	}
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return []string{"http://" + host}
}
