// Package agent runs the conversational pipeline that turns a user
// question into a grounded answer: intent planning, query generation,
// tool execution, and response synthesis.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rkarthik/bloodlink/internal/graphql"
	"github.com/rkarthik/bloodlink/internal/llm"
)

const (
	// DefaultMaxToolLoops bounds how many times the query loop may
	// return to the model after tool execution.
	DefaultMaxToolLoops = 3

	storeTimeLayout   = "2006-01-02T15:04:05"
	displayTimeLayout = "2006-01-02 03:04:05 PM"
)

// Chatter is the model interface the pipeline drives.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Message, error)
}

// DataService executes GraphQL documents on behalf of an identity.
type DataService interface {
	Run(ctx context.Context, id graphql.Identity, query string, variables map[string]any) (map[string]any, error)
}

// Agent orchestrates one turn of the pipeline.
type Agent struct {
	chat      Chatter
	data      DataService
	tools     map[string]*Tool
	toolOrder []string
	catalog   *valueCatalog
	maxLoops  int
	now       func() time.Time
}

// Result is the outcome of a turn. State carries the full trace for
// persistence.
type Result struct {
	Reply string
	State *State
}

func New(chat Chatter, data DataService, maxLoops int) *Agent {
	if maxLoops <= 0 {
		maxLoops = DefaultMaxToolLoops
	}
	tools, order := builtinTools(data)
	return &Agent{
		chat:      chat,
		data:      data,
		tools:     tools,
		toolOrder: order,
		catalog:   newValueCatalog(data),
		maxLoops:  maxLoops,
		now:       time.Now,
	}
}

// Run executes one turn. It never returns an error: every failure mode
// degrades into a usable reply, and a panic anywhere in the pipeline is
// converted into the standard apology.
func (a *Agent) Run(ctx context.Context, id graphql.Identity, question string, history []llm.Message) (res Result) {
	st := newState(question, history, a.stamp())
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panicked", "panic", r, "user_id", id.UserID)
			st.add(NodeGeneralResponse, llm.Message{Role: llm.RoleAssistant, Content: apologyMessage, Tag: NodeGeneralResponse}, a.stamp())
			res = Result{Reply: apologyMessage, State: st}
		}
	}()

	a.intentPlanner(ctx, id, st)

	switch routeIntent(st.last()) {
	case routeClarify:
		a.clarify(st)
	case routeDataQuery:
		for {
			a.queryGenerate(ctx, id, st)
			if st.LoopCount > a.maxLoops {
				slog.Warn("tool loop ceiling reached", "loops", st.LoopCount, "user_id", id.UserID)
				break
			}
			if routeContinuation(st.last()) != routeToolCall {
				break
			}
			a.runTools(ctx, id, st)
		}
		a.dataAnalyser(ctx, st)
	default:
		a.generalResponse(ctx, st)
	}

	reply := strings.TrimSpace(strings.ReplaceAll(st.last().Content, "*", ""))
	if reply == "" {
		reply = emptyReplyMessage
	}
	return Result{Reply: reply, State: st}
}

func (a *Agent) stamp() string {
	return a.now().UTC().Format(storeTimeLayout)
}

func (a *Agent) displayNow() string {
	return a.now().UTC().Format(displayTimeLayout)
}
