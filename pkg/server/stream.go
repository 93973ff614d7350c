package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/docker/rulelawyer/pkg/agent"
)

const (
	writeWait = 10 * time.Second
	readLimit = 16 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// stream answers questions sent as AskRequest frames. Each trace entry is
// pushed as a step frame while the loop runs, followed by a result frame, or
// an error frame when the question could not be run at all.
func (s *Server) stream(c echo.Context) error {
	sessionID := c.Param("id")
	if _, err := s.sessions.Get(c.Request().Context(), sessionID); err != nil {
		return sessionError(err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(readLimit)

	ctx := c.Request().Context()
	for {
		var req AskRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Stream closed", "session", sessionID, "error", err)
			}
			return nil
		}

		question := strings.TrimSpace(req.Question)
		if question == "" {
			if err := write(conn, Frame{Type: FrameError, Error: "question is empty"}); err != nil {
				return nil
			}
			continue
		}

		var writeErr error
		res, err := s.backend.AskInSession(ctx, sessionID, question, func(e agent.TraceEntry) {
			if writeErr != nil {
				return
			}
			writeErr = write(conn, Frame{Type: FrameStep, Step: &e})
		})
		if writeErr != nil {
			return nil
		}

		var frame Frame
		if err != nil && (res == nil || errors.Is(err, agent.ErrBusy)) {
			frame = Frame{Type: FrameError, Error: err.Error()}
		} else {
			resp := newAskResponse(res)
			frame = Frame{Type: FrameResult, Result: &resp}
		}
		if err := write(conn, frame); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				slog.Debug("Stream write failed", "session", sessionID, "error", err)
			}
			return nil
		}
	}
}

func write(conn *websocket.Conn, frame Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
