package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/jsonrepair"
	"github.com/rkarthik/bloodlink/internal/llm"
)

// runTools executes every tool call from the latest assistant message
// and appends one tool message per call. Tool results never abort the
// turn: failures become prefixed error text the model can react to.
func (a *Agent) runTools(ctx context.Context, id graphql.Identity, st *State) {
	last := st.last()
	if len(last.ToolCalls) == 0 {
		st.addTool(llm.ToolResult("error", "No tool calls found. Please specify what data you need."))
		return
	}

	for _, call := range last.ToolCalls {
		result := a.runTool(ctx, id, call)
		st.addTool(llm.ToolResult(call.ID, result))
		st.ToolLog = append(st.ToolLog, ToolRecord{Name: call.Name, Arguments: call.Arguments, Result: result})
	}
}

func (a *Agent) runTool(ctx context.Context, id graphql.Identity, call llm.ToolCall) string {
	tool, ok := a.tools[call.Name]
	if !ok {
		return fmt.Sprintf("%s Unknown tool: %s", toolErrorPrefix, call.Name)
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		parsed, err := jsonrepair.Parse(call.Arguments)
		if err != nil {
			return fmt.Sprintf("%s invalid arguments for %s: %v", toolErrorPrefix, call.Name, err)
		}
		args = parsed
	}

	result, err := tool.Run(ctx, id, args)
	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("%s %s failed: %v", toolErrorPrefix, call.Name, err)
	}
	return result
}
