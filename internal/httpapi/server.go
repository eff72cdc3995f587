package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/funvill/cultural-archiver-sub007/internal/archive"
	"github.com/funvill/cultural-archiver-sub007/internal/globaltime"
	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

const (
	defaultNearRadiusMeters = 250
	maxNearRadiusMeters     = 5000
	defaultRunListLimit     = 50
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the archive read API: artworks near a point and import run
// reports. All endpoints are read-only; imports only run through the CLI.
type Server struct {
	store  *archive.Store
	logger zerolog.Logger
	opts   Options
}

func NewServer(store *archive.Store, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  store,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/artworks", s.handleArtworksNear)
	api.GET("/import-runs", s.handleImportRuns)
	api.GET("/import-runs/:run_uuid", s.handleImportRunDetail)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("archiver read API started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("archiver read API stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "archiver",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleArtworksNear(c echo.Context) error {
	lat, err := parseFloatParam(c, "lat")
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}
	lon, err := parseFloatParam(c, "lon")
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	center := massimport.LatLon{Lat: lat, Lon: lon}
	if !center.Valid() {
		return fail(c, http.StatusBadRequest, "lat/lon out of range", nil)
	}

	radius := float64(defaultNearRadiusMeters)
	if raw := strings.TrimSpace(c.QueryParam("radius")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return fail(c, http.StatusBadRequest, "radius must be a positive number of meters", nil)
		}
		radius = parsed
	}
	if radius > maxNearRadiusMeters {
		radius = maxNearRadiusMeters
	}

	status := strings.TrimSpace(c.QueryParam("status"))

	artworks, err := s.store.QueryNear(c.Request().Context(), center, radius, status)
	if err != nil {
		s.logger.Error().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("query artworks near failed")
		return internalError(c, "Failed to query artworks")
	}
	if artworks == nil {
		artworks = []massimport.Artwork{}
	}

	return success(c, map[string]any{
		"items":  artworks,
		"radius": radius,
	})
}

func (s *Server) handleImportRuns(c echo.Context) error {
	limit := defaultRunListLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fail(c, http.StatusBadRequest, "limit must be a positive integer", nil)
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list import runs failed")
		return internalError(c, "Failed to list import runs")
	}
	if runs == nil {
		runs = []archive.RunSummary{}
	}

	return success(c, map[string]any{
		"items": runs,
	})
}

func (s *Server) handleImportRunDetail(c echo.Context) error {
	runUUID := strings.TrimSpace(c.Param("run_uuid"))
	if runUUID == "" {
		return fail(c, http.StatusBadRequest, "run_uuid is required", nil)
	}

	run, err := s.store.GetRun(c.Request().Context(), runUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("get import run failed")
		return internalError(c, "Failed to load import run")
	}
	if run == nil {
		return failNotFound(c, "Import run not found")
	}

	return success(c, run)
}

func parseFloatParam(c echo.Context, name string) (float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return parsed, nil
}
