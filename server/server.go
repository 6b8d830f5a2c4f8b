// Package server exposes the invoice generator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/lvillar/invoicegen"
	"github.com/lvillar/invoicegen/config"
	"github.com/lvillar/invoicegen/invoice"
)

// Generator is the part of *invoicegen.Generator the handlers use.
type Generator interface {
	Build(ctx context.Context, q invoice.Query) (*invoicegen.Result, error)
	PaymentQR(q invoice.Query, sizePx int) (*invoicegen.QR, error)
}

// Server routes HTTP requests to a Generator.
type Server struct {
	gen    Generator
	cfg    config.ServerConfig
	log    zerolog.Logger
	router *gin.Engine
}

// New builds the router. An invalid rate limit format is an error; an
// empty one disables rate limiting.
func New(gen Generator, cfg config.ServerConfig, log zerolog.Logger) (*Server, error) {
	route := gin.New()
	route.ForwardedByClientIP = true

	route.Use(requestID(), requestLogger(log), recovery(log))

	if cfg.RateLimit != "" {
		// "5-S" is 5 per second, "10-M" per minute, "1000-H" per hour.
		// Exceeding the rate answers 429.
		rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("server: rate limit %q: %w", cfg.RateLimit, err)
		}
		route.Use(mgin.NewMiddleware(limiter.New(memory.NewStore(), rate)))
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	route.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", headerRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", headerQRPayload, headerQRBase64, headerRequestID},
	}))

	s := &Server{gen: gen, cfg: cfg, log: log, router: route}

	route.GET("/", s.handleIndex)
	route.GET("/docs", s.handleIndex)
	route.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	route.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	doc := route.Group("/Document")
	{
		doc.GET("GetPdf", s.handleFile(invoicegen.PDFName, invoicegen.ContentTypePDF))
		doc.GET("GetDocx", s.handleFile(invoicegen.DocxName, invoicegen.ContentTypeDocx))
		doc.GET("GetPdfZip", s.handleZip("document_pdf.zip", invoicegen.PDFName))
		doc.GET("GetDocxZip", s.handleZip("document_docx.zip", invoicegen.DocxName))
		doc.GET("GetAllZip", s.handleZip("documents_full.zip", invoicegen.DocxName, invoicegen.PDFName, invoicegen.QRName))
		doc.GET("GetPaymentQr", s.handlePaymentQR)
	}

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err == nil {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
