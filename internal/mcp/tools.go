// Package mcp exposes the document pipeline as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools adds the pipeline tools to server and returns their handlers.
func RegisterTools(server *mcpserver.MCPServer, p Pipeline) *Handlers {
	h := NewHandlers(p)

	server.AddTool(mcp.Tool{
		Name:        "submit_documents",
		Description: "Index every .txt and .pdf file in a directory so it can be queried. Replaces the session's previous index once the build succeeds.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"dir": map[string]any{
					"type":        "string",
					"description": "Directory containing the documents",
				},
				"session": map[string]any{
					"type":        "string",
					"description": "Session to build into (default: \"default\")",
				},
				"wait": map[string]any{
					"type":        "boolean",
					"description": "Block until the build finishes (default: true)",
					"default":     true,
				},
			},
			Required: []string{"dir"},
		},
	}, h.SubmitDocuments)

	server.AddTool(mcp.Tool{
		Name:        "build_status",
		Description: "Report the state of a document build started by submit_documents.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"build_id": map[string]any{
					"type":        "string",
					"description": "Build ID returned by submit_documents",
				},
			},
			Required: []string{"build_id"},
		},
	}, h.BuildStatus)

	server.AddTool(mcp.Tool{
		Name:        "answer_query",
		Description: "Answer a question from the indexed documents. Returns the answer, the chunks it was based on and the response time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Question to answer",
				},
				"session": map[string]any{
					"type":        "string",
					"description": "Session to query (default: \"default\")",
				},
			},
			Required: []string{"query"},
		},
	}, h.AnswerQuery)

	server.AddTool(mcp.Tool{
		Name:        "session_status",
		Description: "Show whether a session has a ready index and the details of its latest build.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": map[string]any{
					"type":        "string",
					"description": "Session name (default: \"default\")",
				},
			},
		},
	}, h.SessionStatus)

	return h
}
