package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/jsonrepair"
	"github.com/rkarthik/bloodlink/internal/llm"
)

// intentPlanner classifies the question and produces the retrieval
// plan. A failing model call falls back to a synthetic general-intent
// plan so the turn always proceeds.
func (a *Agent) intentPlanner(ctx context.Context, id graphql.Identity, st *State) {
	system := intentPrompt + "\n\n" + a.catalog.fieldContext(ctx, id) +
		"\nCurrent date and time: " + a.displayNow()

	msgs := make([]llm.Message, 0, len(st.History)+len(st.Messages)+1)
	msgs = append(msgs, llm.System(system))
	msgs = append(msgs, st.History...)
	msgs = append(msgs, st.Messages...)

	var content string
	reply, err := a.chat.Chat(ctx, msgs, nil)
	if err != nil || strings.TrimSpace(reply.Content) == "" {
		slog.Warn("intent planning failed, assuming general intent", "error", err, "user_id", id.UserID)
		content = plannerFallback(st.userQuestion())
	} else {
		content = reply.Content
	}

	st.add(NodeIntentPlanner, llm.Message{Role: llm.RoleAssistant, Content: content, Tag: NodeIntentPlanner}, a.stamp())
}

// plannerFallback builds the plan used when the model is unavailable.
// It must parse as valid JSON so routing stays deterministic.
func plannerFallback(question string) string {
	b, err := json.Marshal(struct {
		Intent         string `json:"intent"`
		Rephrased      string `json:"rephrased_question"`
		ChainOfThought string `json:"chain_of_thought"`
		AskFor         string `json:"ask_for"`
		FieldsNeeded   string `json:"fields_needed"`
	}{
		Intent:         "general",
		Rephrased:      question,
		ChainOfThought: "No chain of thoughts available",
	})
	if err != nil {
		return `{"intent":"general","rephrased_question":"","chain_of_thought":"No chain of thoughts available","ask_for":"","fields_needed":""}`
	}
	return string(b)
}

// plan is the parsed retrieval plan from the intent planner.
type plan struct {
	Intent         string
	Rephrased      string
	ChainOfThought string
	AskFor         string
	Fields         []string
}

// parsePlan decodes planner output tolerantly; a plan that cannot be
// recovered at all degrades to the bare user question.
func parsePlan(content, fallbackQuestion string) plan {
	out, err := jsonrepair.Parse(content)
	if err != nil {
		return plan{
			Intent:         "data_query",
			Rephrased:      fallbackQuestion,
			ChainOfThought: "No chain of thoughts available",
		}
	}
	return plan{
		Intent:         jsonrepair.String(out, "intent", "data_query"),
		Rephrased:      jsonrepair.String(out, "rephrased_question", fallbackQuestion),
		ChainOfThought: jsonrepair.String(out, "chain_of_thought", "No chain of thoughts available"),
		AskFor:         jsonrepair.String(out, "ask_for", ""),
		Fields:         jsonrepair.StringList(out, "fields_needed"),
	}
}
