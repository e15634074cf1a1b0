package agent

import (
	"encoding/json"
	"strings"

	"github.com/rkarthik/bloodlink/internal/llm"
)

type route string

const (
	routeGeneral   route = "general"
	routeDataQuery route = "data_query"
	routeClarify   route = "clarification"
	routeToolCall  route = "tool_call"
	routeData      route = "data"
)

// routeIntent decides where a turn goes after planning. The decision is
// fail-open: anything that is not a well-formed plan with the expected
// keys lands in the general branch.
func routeIntent(last llm.Message) route {
	var out map[string]any
	if err := json.Unmarshal([]byte(last.Content), &out); err != nil {
		return routeGeneral
	}
	askRaw, hasAsk := out["ask_for"]
	intentRaw, hasIntent := out["intent"]
	if !hasAsk || !hasIntent {
		return routeGeneral
	}
	ask, ok := askRaw.(string)
	if !ok {
		return routeGeneral
	}
	if strings.TrimSpace(ask) != "" {
		return routeClarify
	}
	if intent, ok := intentRaw.(string); ok && intent == "data_query" {
		return routeDataQuery
	}
	return routeGeneral
}

// routeContinuation decides whether the query loop keeps calling tools
// or hands the collected data to analysis.
func routeContinuation(last llm.Message) route {
	if last.Role == llm.RoleAssistant && len(last.ToolCalls) > 0 {
		return routeToolCall
	}
	return routeData
}
