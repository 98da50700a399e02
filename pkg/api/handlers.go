package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/skydeck/missionctl/pkg/events"
	"github.com/skydeck/missionctl/pkg/orchestrator"
)

// chatHandler handles POST /api/chat: a single synchronous round trip
// through the react loop, returning the full ChatResponse once it settles.
func (s *Server) chatHandler(c *echo.Context) error {
	var req orchestrator.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	resp, err := s.orch.Chat(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// chatStreamHandler handles POST /api/chat/stream: the same round trip as
// chatHandler, narrated live as Server-Sent Events while it runs. Events
// carry the session ID an emitter bound them to; the handler filters a
// single wildcard subscription down to the session this request resolves
// to, so concurrent streams on other sessions never cross-talk.
func (s *Server) chatStreamHandler(c *echo.Context) error {
	var req orchestrator.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		// Mint the session up front so its ID is known before the react
		// loop starts: the event filter below needs it immediately, and
		// Chat records req.Message itself whether the session is new or
		// resumed, so creating it empty here does not duplicate history.
		req.SessionID = s.sessions.Create().ID
	}

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	unsubscribe := s.publisher.Subscribe(events.Type(""), func(evt events.Event) {
		if events.SessionIDOf(evt.Payload) != req.SessionID {
			return
		}
		writeSSEEvent(resp, "agent_event", evt.Payload)
	})
	defer unsubscribe()

	result, err := s.orch.Chat(c.Request().Context(), req)
	if err != nil {
		writeSSEEvent(resp, "error", map[string]string{"error": err.Error()})
		return nil
	}
	writeSSEEvent(resp, "result", result)
	return nil
}

func writeSSEEvent(w *echo.Response, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	w.Flush()
}
