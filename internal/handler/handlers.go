// Package handler implements the HTTP endpoints: webhook-style event intake
// and the operator API.
package handler

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arendabot/arendabot/internal/dispatch"
	"github.com/arendabot/arendabot/internal/logsink"
	"github.com/arendabot/arendabot/internal/model"
	"github.com/arendabot/arendabot/internal/response"
)

// UpdateHandler accepts inbound chat updates and answers with the outcome
// reply. The payload is transport-neutral JSON; whichever chat platform
// fronts the bot maps its update format onto it.
type UpdateHandler struct {
	Dispatcher *dispatch.Dispatcher
}

type updateRequest struct {
	ChatID   int64  `json:"chat_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	// Kind overrides the text-derived kind, e.g. "callback".
	Kind string `json:"kind,omitempty"`
}

type updateReply struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Reply   string `json:"reply"`
}

// HandleUpdate binds the update, dispatches it through the failure boundary,
// and returns the reply synchronously (POST /updates).
func (h *UpdateHandler) HandleUpdate(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid update payload", err.Error())
	}
	if req.ChatID == 0 {
		return response.BadRequest(c, "missing chat_id", "chat_id is required")
	}

	ev := buildEvent(req)
	out := h.Dispatcher.Dispatch(c.Request().Context(), ev)
	return response.OK(c, updateReply{
		EventID: ev.ID,
		Status:  string(out.Status),
		Reply:   out.Reply,
	}, "")
}

// buildEvent derives the event from the update: an explicit kind wins,
// otherwise a leading slash makes the first word a command and anything else
// is a plain message. Command events get their name from the text either way.
func buildEvent(req updateRequest) model.Event {
	ev := model.Event{
		ID:         uuid.NewString(),
		Kind:       model.EventMessage,
		ChatID:     req.ChatID,
		UserID:     req.UserID,
		Username:   req.Username,
		Text:       req.Text,
		ReceivedAt: time.Now().UTC(),
	}
	switch {
	case req.Kind != "":
		ev.Kind = model.EventKind(req.Kind)
	case strings.HasPrefix(req.Text, "/"):
		ev.Kind = model.EventCommand
	}
	if ev.Kind == model.EventCommand {
		ev.Command = commandName(req.Text)
	}
	return ev
}

// commandName extracts the bare command from the first word of text: the
// leading slash is optional and an @botname address is stripped, so both
// "/start@arendabot now" and "start now" give "start".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return name
}

// OpsHandler serves the operator endpoints.
type OpsHandler struct {
	Recent *logsink.Recent
	Status dispatch.StatusFunc
}

// RecentLogs returns the in-memory mirror of the latest log records
// (GET /logs/recent).
func (h *OpsHandler) RecentLogs(c echo.Context) error {
	return response.OK(c, map[string]any{"logs": h.Recent.Records()}, "")
}

// GetStatus returns the process counters (GET /status).
func (h *OpsHandler) GetStatus(c echo.Context) error {
	st, err := h.Status(c.Request().Context())
	if err != nil {
		return response.InternalError(c, "collect status failed", err.Error())
	}
	return response.OK(c, st, "")
}
