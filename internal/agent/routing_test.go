package agent

import (
	"testing"

	"github.com/rkarthik/bloodlink/internal/llm"
)

func TestRouteIntent(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    route
	}{
		{"data query", `{"intent":"data_query","ask_for":""}`, routeDataQuery},
		{"general", `{"intent":"general","ask_for":""}`, routeGeneral},
		{"clarification wins over intent", `{"intent":"data_query","ask_for":"Which hospital?"}`, routeClarify},
		{"whitespace ask_for ignored", `{"intent":"data_query","ask_for":"   "}`, routeDataQuery},
		{"malformed json", `not json`, routeGeneral},
		{"fenced json is not parsed", "```json\n{\"intent\":\"data_query\",\"ask_for\":\"\"}\n```", routeGeneral},
		{"missing ask_for", `{"intent":"data_query"}`, routeGeneral},
		{"missing intent", `{"ask_for":""}`, routeGeneral},
		{"non-string ask_for", `{"intent":"data_query","ask_for":42}`, routeGeneral},
		{"unknown intent", `{"intent":"banana","ask_for":""}`, routeGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := routeIntent(llm.Assistant(tc.content))
			if got != tc.want {
				t.Errorf("routeIntent(%q) = %s, want %s", tc.content, got, tc.want)
			}
		})
	}
}

func TestRouteContinuation(t *testing.T) {
	withCall := llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: toolGraphQLQuery}}}
	if got := routeContinuation(withCall); got != routeToolCall {
		t.Errorf("assistant with tool calls routed to %s", got)
	}

	plain := llm.Assistant("here is your answer")
	if got := routeContinuation(plain); got != routeData {
		t.Errorf("plain assistant routed to %s", got)
	}

	toolMsg := llm.ToolResult("c1", "{}")
	if got := routeContinuation(toolMsg); got != routeData {
		t.Errorf("tool message routed to %s", got)
	}
}

func TestPlannerFallbackParses(t *testing.T) {
	content := plannerFallback(`what is "Inhlth"?`)
	if got := routeIntent(llm.Assistant(content)); got != routeGeneral {
		t.Errorf("fallback plan routed to %s, want general", got)
	}
}

func TestBuildTemplateQuery(t *testing.T) {
	got := buildTemplateQuery([]string{"request_id", "status", "not_a_field"})
	want := "query { blood_order_view(limit: 30, order_by: { creation_date_and_time: desc }) { request_id status } }"
	if got != want {
		t.Errorf("buildTemplateQuery = %q", got)
	}

	// Unknown-only field lists fall back to the default selection.
	got = buildTemplateQuery([]string{"bogus"})
	if got != buildTemplateQuery(nil) {
		t.Errorf("unknown fields should use defaults, got %q", got)
	}
}
