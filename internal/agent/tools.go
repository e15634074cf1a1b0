package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/llm"
)

const (
	toolGraphQLQuery = "graphql_query"

	graphqlErrorPrefix = "[GraphQL Error]"
	toolErrorPrefix    = "[Tool Error]"
)

// Tool is one callable exposed to the query generator. Run returns the
// text handed back to the model; GraphQL failures are encoded into that
// text (with the error prefix) so the model can correct itself.
type Tool struct {
	Spec llm.ToolSpec
	Run  func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error)
}

func (a *Agent) toolSpecs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		specs = append(specs, a.tools[name].Spec)
	}
	return specs
}

func builtinTools(data DataService) (map[string]*Tool, []string) {
	tools := []*Tool{
		{
			Spec: llm.ToolSpec{
				Name:        toolGraphQLQuery,
				Description: "Execute a GraphQL query against the blood order and billing views. Use for any question the fixed tools do not cover.",
				Parameters: objectSchema(map[string]any{
					"query": map[string]any{"type": "string", "description": "A single valid GraphQL document."},
				}, "query"),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				query, _ := args["query"].(string)
				if strings.TrimSpace(query) == "" {
					return "", fmt.Errorf("missing query argument")
				}
				return runData(ctx, data, id, query, nil), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_order_details_by_ids",
				Description: "Fetch full details for specific orders by their request ids.",
				Parameters: objectSchema(map[string]any{
					"order_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}, "order_ids"),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				ids := stringSlice(args["order_ids"])
				if len(ids) == 0 {
					return "", fmt.Errorf("missing order_ids argument")
				}
				const q = `query OrderDetails($ids: [String!]) {
  blood_order_view(where: {request_id: {_in: $ids}}) {
    request_id blood_group status reason creation_date_and_time
    delivery_date_and_time hospital_name order_line_items
  }
}`
				return runData(ctx, data, id, q, map[string]any{"ids": ids}), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_orders_by_statuses",
				Description: "List recent orders matching the given status codes (PA, AA, BBA, BA, CMP, REJ, CAL).",
				Parameters: objectSchema(map[string]any{
					"statuses": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}, "statuses"),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				statuses := stringSlice(args["statuses"])
				if len(statuses) == 0 {
					return "", fmt.Errorf("missing statuses argument")
				}
				const q = `query OrdersByStatus($statuses: [String!]) {
  blood_order_view(where: {status: {_in: $statuses}}, order_by: {creation_date_and_time: desc}, limit: 20) {
    request_id blood_group status reason creation_date_and_time hospital_name
  }
}`
				return runData(ctx, data, id, q, map[string]any{"statuses": statuses}), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_current_orders_data",
				Description: "List the blood bank's current open orders (everything not completed, rejected or cancelled).",
				Parameters:  objectSchema(map[string]any{}),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				const q = `query CurrentOrders {
  blood_order_view(where: {status: {_nin: ["CMP", "REJ", "CAL"]}}, order_by: {creation_date_and_time: desc}, limit: 20) {
    request_id blood_group status reason creation_date_and_time delivery_date_and_time hospital_name
  }
}`
				return runData(ctx, data, id, q, nil), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_monthly_billing",
				Description: "Fetch the billing rollup for one month. month_year uses the Month-YYYY form, e.g. June-2025.",
				Parameters: objectSchema(map[string]any{
					"month_year": map[string]any{"type": "string"},
				}, "month_year"),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				monthYear, _ := args["month_year"].(string)
				if strings.TrimSpace(monthYear) == "" {
					return "", fmt.Errorf("missing month_year argument")
				}
				const q = `query MonthlyBilling($monthYear: String!) {
  cost_and_billing_view(where: {month_year: {_eq: $monthYear}}) {
    month_year company_name blood_component overall_blood_unit total_cost
  }
}`
				return runData(ctx, data, id, q, map[string]any{"monthYear": monthYear}), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_patient_by_blood_groups",
				Description: "List order patients filtered by blood group.",
				Parameters: objectSchema(map[string]any{
					"blood_groups": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}, "blood_groups"),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				groups := stringSlice(args["blood_groups"])
				if len(groups) == 0 {
					return "", fmt.Errorf("missing blood_groups argument")
				}
				const q = `query PatientsByBloodGroup($groups: [String!]) {
  blood_order_view(where: {blood_group: {_in: $groups}}, order_by: {creation_date_and_time: desc}, limit: 20) {
    request_id first_name last_name age blood_group status
  }
}`
				return runData(ctx, data, id, q, map[string]any{"groups": groups}), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_recent_order_ids",
				Description: "List the ids of the most recent orders.",
				Parameters: objectSchema(map[string]any{
					"limit": map[string]any{"type": "integer", "description": "How many ids to return, default 5."},
				}),
			},
			Run: func(ctx context.Context, id graphql.Identity, args map[string]any) (string, error) {
				limit := 5
				if f, ok := args["limit"].(float64); ok && f > 0 {
					limit = int(f)
				}
				const q = `query RecentOrderIds($limit: Int!) {
  blood_order_view(order_by: {creation_date_and_time: desc}, limit: $limit) {
    request_id status creation_date_and_time
  }
}`
				return runData(ctx, data, id, q, map[string]any{"limit": limit}), nil
			},
		},
	}

	byName := make(map[string]*Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, t := range tools {
		byName[t.Spec.Name] = t
		order = append(order, t.Spec.Name)
	}
	return byName, order
}

// runData executes a query and folds failures into the text returned
// to the model, prefixed so the query loop can branch on them.
func runData(ctx context.Context, data DataService, id graphql.Identity, query string, vars map[string]any) string {
	result, err := data.Run(ctx, id, query, vars)
	if err != nil {
		return fmt.Sprintf("%s %v When running this query: %s. The query might be malformed or the field might not exist.",
			graphqlErrorPrefix, err, condense(query))
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%s could not encode query result: %v", graphqlErrorPrefix, err)
	}
	return string(b)
}

func condense(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
