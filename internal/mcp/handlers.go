package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
	"ragreader/internal/service"
)

// Pipeline is the part of the service the tools drive.
type Pipeline interface {
	SubmitDocuments(session, dir string) (service.BuildHandle, error)
	Status(h service.BuildHandle) (service.BuildStatus, error)
	Wait(ctx context.Context, h service.BuildHandle) (service.BuildStatus, error)
	AnswerQuery(ctx context.Context, session, query string) (domain.QueryResult, error)
	Session(session string) (service.SessionStatus, bool)
}

// Handlers implements the MCP tools.
type Handlers struct {
	pipeline Pipeline
}

func NewHandlers(p Pipeline) *Handlers {
	return &Handlers{pipeline: p}
}

func sessionArg(request mcp.CallToolRequest) string {
	return request.GetString("session", service.DefaultSession)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// SubmitDocuments handles the submit_documents tool.
func (h *Handlers) SubmitDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := request.RequireString("dir")
	if err != nil || dir == "" {
		return mcp.NewToolResultError("dir argument is required and must be a string"), nil
	}
	session := sessionArg(request)

	handle, err := h.pipeline.SubmitDocuments(session, dir)
	if errors.Is(err, domain.ErrBuildInProgress) {
		return mcp.NewToolResultError(fmt.Sprintf("a build is already in progress for session %q", session)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}
	logger.Debug("mcp: submitted %s for session %s as %s", dir, session, handle)

	if !request.GetBool("wait", true) {
		return jsonResult(map[string]any{"build_id": handle, "state": service.StatePending})
	}
	st, err := h.pipeline.Wait(ctx, handle)
	if err != nil && !st.State.Done() {
		return mcp.NewToolResultError(fmt.Sprintf("waiting for build %s: %v", handle, err)), nil
	}
	if st.State == service.StateFailed {
		return mcp.NewToolResultError(fmt.Sprintf("document processing failed: %s", st.Error)), nil
	}
	return jsonResult(st)
}

// BuildStatus handles the build_status tool.
func (h *Handlers) BuildStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("build_id")
	if err != nil {
		return mcp.NewToolResultError("build_id argument is required and must be a string"), nil
	}
	st, err := h.pipeline.Status(service.BuildHandle(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build %q: %v", id, err)), nil
	}
	return jsonResult(st)
}

// AnswerQuery handles the answer_query tool.
func (h *Handlers) AnswerQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	res, err := h.pipeline.AnswerQuery(ctx, sessionArg(request), query)
	switch {
	case errors.Is(err, domain.ErrNoIndex):
		return mcp.NewToolResultError("No documents available to query. Call submit_documents first."), nil
	case errors.Is(err, domain.ErrIndexNotReady):
		return mcp.NewToolResultError("Documents are still being processed. Try again shortly."), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(res)
}

// SessionStatus handles the session_status tool.
func (h *Handlers) SessionStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, _ := h.pipeline.Session(sessionArg(request))
	return jsonResult(st)
}
