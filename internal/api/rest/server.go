package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	app "eicr-vision/internal/application"
	"eicr-vision/internal/domain/entity"
)

// maxUploadBytes caps the body of an upload request.
const maxUploadBytes = 64 << 20

// Subscriber delivers notifications raised while a request runs.
type Subscriber interface {
	Subscribe(fn func(entity.Notification)) (func(), error)
}

type Handler struct {
	inspection *app.InspectionService
	events     Subscriber
	logger     *slog.Logger
	maxUpload  int64
}

func NewHandler(inspection *app.InspectionService, events Subscriber, logger *slog.Logger) *Handler {
	return &Handler{
		inspection: inspection,
		events:     events,
		logger:     logger.With("component", "rest"),
		maxUpload:  maxUploadBytes,
	}
}

// NewRouter builds the gin engine. metrics may be nil.
func NewRouter(h *Handler, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/presets", h.HandleListPresets)
		api.GET("/settings", h.HandleGetSettings)
		api.PUT("/settings", h.HandleUpdateSettings)

		api.POST("/analyses", h.limitBody, h.HandleCreateAnalysis)
		api.GET("/analyses", h.HandleListAnalyses)
		api.POST("/analyses/retry", h.HandleRetryLast)
		api.GET("/analyses/:id", h.HandleGetAnalysis)
		api.POST("/analyses/:id/retry", h.HandleRetryAnalysis)
		api.GET("/analyses/:id/report.pdf", h.HandleExportReport)
		api.GET("/analyses/:id/evidence.jpg", h.HandleEvidence)
		api.POST("/analyses/:id/findings/:index/eicr", h.HandleAddToEICR)

		api.GET("/eicr/:report/observations", h.HandleListObservations)
	}
	return router
}

// Server serves the router until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(addr string, router http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "http"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// limitBody rejects bodies over the upload cap. Bodies without a declared
// length fail while the form is read.
func (h *Handler) limitBody(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		respondTooLarge(c, h.maxUpload)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	c.Next()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
