package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/runner"
)

var requestIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// resyncRequest is sent by downstream services when their queue processing
// fails and they need the full current tool inventory.
type resyncRequest struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
}

type resyncResponse struct {
	RequestID          string          `json:"requestId"`
	Timestamp          string          `json:"timestamp"`
	CurrentTools       []core.ToolInfo `json:"currentTools"`
	DiscoveryTimestamp string          `json:"discoveryTimestamp"`
}

// UpdateWhitelists applies a whitelist change across all listed
// conversations of one member and reports per-conversation outcomes.
//
// POST /api/agent/tools/whitelist
func (h *Handler) UpdateWhitelists(c echo.Context) error {
	var req runner.WhitelistUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	if req.MemberID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("memberId is required"))
	}

	if len(req.Conversations) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody("conversations must not be empty"))
	}

	result := h.runner.UpdateWhitelists(c.Request().Context(), req)

	return c.JSON(http.StatusOK, result)
}

// ResyncTools runs an on-demand discovery pass and returns the complete
// current tool inventory.
//
// POST /api/tools/resync
func (h *Handler) ResyncTools(c echo.Context) error {
	var req resyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	if !requestIDPattern.MatchString(req.RequestID) {
		return c.JSON(http.StatusBadRequest, errorBody("Request ID must be a valid UUID"))
	}

	if strings.TrimSpace(req.Reason) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Reason cannot be empty"))
	}

	result, err := h.runner.Resync(c.Request().Context(), req.RequestID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			detail := fmt.Sprintf("Tool discovery timed out after %g seconds", h.runner.ResyncTimeout().Seconds())
			return c.JSON(http.StatusRequestTimeout, errorBody(detail))
		}

		return c.JSON(http.StatusInternalServerError, errorBody("Tool discovery failed: "+err.Error()))
	}

	tools := result.Tools
	if tools == nil {
		tools = []core.ToolInfo{}
	}

	return c.JSON(http.StatusOK, resyncResponse{
		RequestID:          req.RequestID,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		CurrentTools:       tools,
		DiscoveryTimestamp: result.DiscoveredAt.Format(time.RFC3339),
	})
}
