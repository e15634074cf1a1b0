package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/jsonrepair"
	"github.com/rkarthik/bloodlink/internal/llm"
)

// Fields the template fallback query may select.
var orderViewFields = map[string]bool{
	"request_id":             true,
	"blood_group":            true,
	"status":                 true,
	"reason":                 true,
	"order_line_items":       true,
	"creation_date_and_time": true,
	"delivery_date_and_time": true,
	"hospital_name":          true,
	"company_name":           true,
	"first_name":             true,
	"last_name":              true,
	"age":                    true,
}

var defaultQueryFields = []string{
	"request_id", "blood_group", "status", "creation_date_and_time", "hospital_name",
}

// queryGenerate asks the model for the next retrieval step. On the
// first pass it works from the planner output; after a failed tool run
// it receives the error text and retries with corrective guidance.
func (a *Agent) queryGenerate(ctx context.Context, id graphql.Identity, st *State) {
	system := queryPrompt + "\nCurrent date and time: " + a.displayNow()

	var guidance string
	last := st.last()
	if last.Role == llm.RoleTool {
		switch {
		case strings.HasPrefix(last.Content, graphqlErrorPrefix):
			guidance = "The previous query failed. Correct the GraphQL query using the error details above and call the tool again."
		case strings.HasPrefix(last.Content, toolErrorPrefix):
			guidance = "The previous tool call failed. Pick a valid tool with valid arguments and try again."
		}
	} else {
		p := parsePlan(st.plannerOutput(), st.userQuestion())
		guidance = fmt.Sprintf("Planned question: %s\nReasoning: %s\nSuggested fields: %s",
			p.Rephrased, p.ChainOfThought, strings.Join(p.Fields, ", "))
	}

	msgs := make([]llm.Message, 0, len(st.History)+len(st.Messages)+2)
	msgs = append(msgs, llm.System(system))
	msgs = append(msgs, st.History...)
	msgs = append(msgs, st.Messages...)
	if guidance != "" {
		msgs = append(msgs, llm.System(guidance))
	}

	reply, err := a.chat.Chat(ctx, msgs, a.toolSpecs())
	if err != nil {
		slog.Warn("query generation failed", "error", err, "user_id", id.UserID)
		reply = llm.Message{}
	}
	reply.Role = llm.RoleAssistant
	reply.Tag = NodeQueryGenerate

	a.repairToolCalls(ctx, st, &reply)

	if reply.Content == "" && len(reply.ToolCalls) > 0 {
		reply.Content = fmt.Sprintf("Calling `%s` tool to process your request...", reply.ToolCalls[0].Name)
	}

	st.LoopCount++
	st.add(NodeQueryGenerate, reply, a.stamp())
}

// repairToolCalls validates every generated GraphQL document before it
// reaches the executor. An invalid query gets one model-assisted repair
// round; if that fails too, a template query built from the planner's
// field list takes its place.
func (a *Agent) repairToolCalls(ctx context.Context, st *State, reply *llm.Message) {
	for i, tc := range reply.ToolCalls {
		if tc.Name != toolGraphQLQuery {
			continue
		}
		query := queryArgument(tc.Arguments)
		verr := graphql.Validate(query)
		if verr == nil {
			continue
		}

		if fixed, err := a.repairQuery(ctx, query, verr); err == nil {
			if graphql.Validate(fixed) == nil {
				reply.ToolCalls[i].Arguments = queryArguments(fixed)
				continue
			}
		} else {
			slog.Warn("query repair call failed", "error", err)
		}

		p := parsePlan(st.plannerOutput(), st.userQuestion())
		fallback := buildTemplateQuery(p.Fields)
		slog.Warn("falling back to template query", "invalid_query", query, "validation_error", verr)
		reply.ToolCalls[i].Arguments = queryArguments(fallback)
	}
}

func (a *Agent) repairQuery(ctx context.Context, query string, verr error) (string, error) {
	msgs := []llm.Message{
		llm.System(validatorPrompt),
		llm.User(fmt.Sprintf("Query:\n%s\n\nError: %v", query, verr)),
	}
	reply, err := a.chat.Chat(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	return jsonrepair.StripFences(reply.Content), nil
}

// buildTemplateQuery produces a known-good order listing restricted to
// fields the planner asked for.
func buildTemplateQuery(fields []string) string {
	var selected []string
	for _, f := range fields {
		if orderViewFields[f] {
			selected = append(selected, f)
		}
	}
	if len(selected) == 0 {
		selected = defaultQueryFields
	}
	return fmt.Sprintf(
		"query { blood_order_view(limit: 30, order_by: { creation_date_and_time: desc }) { %s } }",
		strings.Join(selected, " "),
	)
}

func queryArgument(rawArgs string) string {
	out, err := jsonrepair.Parse(rawArgs)
	if err != nil {
		// The model sometimes passes the bare query instead of an
		// argument object.
		return strings.TrimSpace(jsonrepair.StripFences(rawArgs))
	}
	return jsonrepair.String(out, "query", "")
}

func queryArguments(query string) string {
	b, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return `{"query":""}`
	}
	return string(b)
}
