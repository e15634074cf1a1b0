package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rkarthik/bloodlink/internal/graphql"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Agent Runner
	Store SessionStore
}

// NewMCPServer creates an MCP server exposing the assistant to MCP
// clients. Tool callers must identify the acting user explicitly since
// there is no HTTP session to carry it.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bloodlink",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("bloodlink: conversational access to blood order, usage and billing data."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the assistant a question about blood orders, usage or billing."),
			mcp.WithString("user_id", mcp.Description("Acting user id"), mcp.Required()),
			mcp.WithString("company_id", mcp.Description("Acting user's company id")),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("get_history",
			mcp.WithDescription("Fetch the stored messages of one chat session."),
			mcp.WithString("user_id", mcp.Description("Acting user id"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to read"), mcp.Required()),
		),
		mcpGetHistory(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}
		companyID := req.GetString("company_id", "")

		id := graphql.Identity{UserID: userID, CompanyID: companyID}
		res := deps.Agent.Run(ctx, id, strings.TrimSpace(question), nil)
		return mcpText(res.Reply), nil
	}
}

func mcpGetHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		records, err := deps.Store.SessionMessages(userID, sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading messages: %v", err)), nil
		}

		out := make([]sessionMessage, 0, len(records))
		for _, rec := range records {
			out = append(out, sessionMessage{
				Role:           rec.Role,
				Content:        rec.Content,
				Node:           rec.Node,
				ConversationID: rec.ConversationID,
				CreatedAt:      rec.CreatedAt,
				Feedback:       rec.Feedback,
			})
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding messages: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
