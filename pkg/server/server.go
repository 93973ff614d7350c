// Package server exposes the rules assistant over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/app"
	"github.com/docker/rulelawyer/pkg/library"
	"github.com/docker/rulelawyer/pkg/rag/types"
	"github.com/docker/rulelawyer/pkg/session"
)

const (
	defaultPreviewLimit = 5
	maxPreviewLimit     = 100
	previewTTL          = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Backend answers questions. *app.App implements it.
type Backend interface {
	AskInSession(ctx context.Context, sessionID, question string, observe func(agent.TraceEntry)) (*agent.Result, error)
	Reset(ctx context.Context) error
	Library() string
}

// Libraries lists and previews the stored libraries.
type Libraries interface {
	List() ([]library.Metadata, error)
	Preview(id string, limit int) ([]types.Document, error)
}

type Server struct {
	e         *echo.Echo
	backend   Backend
	libraries Libraries
	sessions  session.Store
	previews  *cache.Cache
}

func New(backend Backend, libraries Libraries, sessions session.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())

	s := &Server{
		e:         e,
		backend:   backend,
		libraries: libraries,
		sessions:  sessions,
		previews:  cache.New(previewTTL, 2*previewTTL),
	}

	group := e.Group("/api")

	// Health check endpoint
	group.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	group.GET("/libraries", s.getLibraries)
	group.GET("/libraries/:id/preview", s.previewLibrary)

	group.GET("/sessions", s.getSessions)
	group.POST("/sessions", s.createSession)
	group.GET("/sessions/:id", s.getSession)
	group.DELETE("/sessions/:id", s.deleteSession)
	// Answer one question, stored in the session
	group.POST("/sessions/:id/ask", s.ask)
	// Same, with trace entries pushed while the loop runs
	group.GET("/sessions/:id/stream", s.stream)

	// Clear the pool and the memory of the agent
	group.POST("/reset", s.reset)

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve answers requests on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

func (s *Server) getLibraries(c echo.Context) error {
	libs, err := s.libraries.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to list libraries: %v", err))
	}

	active := s.backend.Library()
	responses := make([]LibraryResponse, len(libs))
	for i, meta := range libs {
		responses[i] = newLibraryResponse(meta, active)
	}
	return c.JSON(http.StatusOK, responses)
}

func (s *Server) previewLibrary(c echo.Context) error {
	id := c.Param("id")
	limit := defaultPreviewLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxPreviewLimit)
	}

	key := id + ":" + strconv.Itoa(limit)
	if cached, ok := s.previews.Get(key); ok {
		return c.JSON(http.StatusOK, cached)
	}

	docs, err := s.libraries.Preview(id, limit)
	if errors.Is(err, library.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("library not found: %s", id))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to load library: %v", err))
	}

	preview := newPreview(docs)
	s.previews.Set(key, preview, cache.DefaultExpiration)
	return c.JSON(http.StatusOK, preview)
}

func (s *Server) getSessions(c echo.Context) error {
	sessions, err := s.sessions.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to get sessions: %v", err))
	}
	if sessions == nil {
		sessions = []session.Summary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) createSession(c echo.Context) error {
	sess, err := s.sessions.NewSession(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to create session: %v", err))
	}
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.sessions.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return sessionError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is empty")
	}

	res, err := s.backend.AskInSession(c.Request().Context(), c.Param("id"), question, nil)
	if err != nil && (res == nil || errors.Is(err, agent.ErrBusy)) {
		return askError(err)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, newAskResponse(res))
	}
	return c.JSON(http.StatusOK, newAskResponse(res))
}

func (s *Server) reset(c echo.Context) error {
	if err := s.backend.Reset(c.Request().Context()); err != nil {
		return askError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrEmptyID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func askError(err error) error {
	switch {
	case errors.Is(err, agent.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotStarted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return sessionError(err)
	}
}
