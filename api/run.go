package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/runner"
)

const ndjsonMIME = "application/x-ndjson"

// runRequest is one conversational turn: either a new user message or a
// decision on a suspended turn, optionally followed by a new message.
type runRequest struct {
	Message             string   `json:"message"`
	MemberID            string   `json:"memberId"`
	ServerID            string   `json:"serverId"`
	ChannelID           string   `json:"channelId"`
	ConversationID      string   `json:"conversationId"`
	ToolWhitelist       []string `json:"toolWhitelist,omitempty"`
	Approved            *bool    `json:"approved,omitempty"`
	ToolWhitelistUpdate []string `json:"toolWhitelistUpdate,omitempty"`
}

func (r *runRequest) threadKey() core.ThreadKey {
	return core.ThreadKey{
		MemberID:       r.MemberID,
		ServerID:       r.ServerID,
		ConversationID: r.ConversationID,
	}
}

// validateRun returns a problem description, or "" when the request is
// well-formed. Message content itself is not checked here: a blank message
// on a new turn is answered in-stream by the orchestrator's validation
// chunk, matching the stream contract.
func validateRun(r *runRequest) string {
	if r.MemberID == "" || r.ServerID == "" || r.ConversationID == "" {
		return "memberId, serverId and conversationId are required"
	}

	if r.Approved != nil && strings.TrimSpace(r.Message) != "" {
		return "approved and message cannot be combined in one request"
	}

	return ""
}

// dispatch routes the request to Resume when a decision is present, Run
// otherwise.
func (h *Handler) dispatch(ctx context.Context, req *runRequest) <-chan core.Chunk {
	if req.Approved != nil {
		return h.runner.Resume(ctx, runner.ResumeInput{
			Thread:    req.threadKey(),
			ChannelID: req.ChannelID,
			Decision:  core.Decision{Approved: *req.Approved, WhitelistUpdate: req.ToolWhitelistUpdate},
			Message:   req.Message,
		})
	}

	return h.runner.Run(ctx, runner.RunInput{
		Thread:    req.threadKey(),
		ChannelID: req.ChannelID,
		Message:   req.Message,
		Whitelist: req.ToolWhitelist,
	})
}

// RunAgent streams a turn as newline-delimited chunk JSON, flushed per
// chunk so callers can render output as it is produced.
//
// POST /api/agent/run
func (h *Handler) RunAgent(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	if msg := validateRun(&req); msg != "" {
		return c.JSON(http.StatusBadRequest, errorBody(msg))
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, ndjsonMIME)
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	for chunk := range h.dispatch(c.Request().Context(), &req) {
		if err := enc.Encode(chunk); err != nil {
			return err
		}

		resp.Flush()
	}

	return nil
}
