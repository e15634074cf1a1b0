package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rkarthik/bloodlink/internal/composer"
	"github.com/rkarthik/bloodlink/internal/llm"
)

// dataAnalyser turns the collected tool output into the final answer.
// A failing model call gets one retry over the full transcript; after
// that the standard apology goes out rather than an error.
func (a *Agent) dataAnalyser(ctx context.Context, st *State) {
	msgs := []llm.Message{
		llm.System(analysisPrompt + "\nCurrent date and time: " + a.displayNow()),
		llm.User(fmt.Sprintf("User question: %s\n\nData:\n%s", st.userQuestion(), a.collectData(st))),
	}

	reply, err := a.chat.Chat(ctx, msgs, nil)
	if err != nil {
		slog.Warn("data analysis failed, retrying with full transcript", "error", err)
		full := make([]llm.Message, 0, len(st.Messages)+1)
		full = append(full, llm.System(analysisPrompt))
		full = append(full, st.Messages...)
		reply, err = a.chat.Chat(ctx, full, nil)
	}
	if err != nil {
		slog.Error("data analysis failed twice", "error", err)
		reply = llm.Assistant(apologyMessage)
	}

	reply.Role = llm.RoleAssistant
	reply.Tag = NodeDataAnalyser
	reply.ToolCalls = nil
	st.add(NodeDataAnalyser, reply, a.stamp())
}

// collectData gathers every tool result of the turn in compacted form.
func (a *Agent) collectData(st *State) string {
	var parts []string
	for _, msg := range st.Messages {
		if msg.Role != llm.RoleTool {
			continue
		}
		parts = append(parts, composer.Compact(msg.Content))
	}
	if len(parts) == 0 {
		return "No data was retrieved for this question."
	}
	return strings.Join(parts, "\n\n")
}

// generalResponse answers conversational questions without touching
// the data layer.
func (a *Agent) generalResponse(ctx context.Context, st *State) {
	p := parsePlan(st.plannerOutput(), st.userQuestion())
	question := p.Rephrased
	if strings.TrimSpace(question) == "" {
		question = st.userQuestion()
	}

	msgs := make([]llm.Message, 0, len(st.History)+2)
	msgs = append(msgs, llm.System(generalPrompt+"\nCurrent date and time: "+a.displayNow()))
	msgs = append(msgs, st.History...)
	msgs = append(msgs, llm.User(question))

	reply, err := a.chat.Chat(ctx, msgs, nil)
	if err != nil {
		slog.Error("general response failed", "error", err)
		reply = llm.Assistant(apologyMessage)
	}

	reply.Role = llm.RoleAssistant
	reply.Tag = NodeGeneralResponse
	reply.ToolCalls = nil
	st.add(NodeGeneralResponse, reply, a.stamp())
}

// clarify relays the planner's clarification request. No model call is
// involved.
func (a *Agent) clarify(st *State) {
	p := parsePlan(st.plannerOutput(), st.userQuestion())
	ask := strings.TrimSpace(p.AskFor)
	if ask == "" {
		ask = defaultClarification
	}
	st.add(NodeClarify, llm.Message{Role: llm.RoleAssistant, Content: ask, Tag: NodeClarify}, a.stamp())
}
