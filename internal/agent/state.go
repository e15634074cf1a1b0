package agent

import (
	"github.com/rkarthik/bloodlink/internal/llm"
)

// Pipeline node names. They are recorded in the turn trace and stored
// with every persisted message.
const (
	NodeHuman           = "human"
	NodeIntentPlanner   = "intent_planner"
	NodeQueryGenerate   = "query_generate"
	NodeDataAnalyser    = "data_analyser"
	NodeGeneralResponse = "general_response"
	NodeClarify         = "clarify"
)

// ToolRecord captures one executed tool call for the turn log.
type ToolRecord struct {
	Name      string
	Arguments string
	Result    string
}

// State accumulates everything produced during one turn. Nodes and
// Times align with the non-tool entries of Messages: tool results are
// appended to Messages only, so the trace never grows past the message
// list.
type State struct {
	History   []llm.Message
	Messages  []llm.Message
	Nodes     []string
	Times     []string
	ToolLog   []ToolRecord
	LoopCount int
}

func newState(question string, history []llm.Message, at string) *State {
	st := &State{History: history}
	st.add(NodeHuman, llm.User(question), at)
	return st
}

func (s *State) add(node string, msg llm.Message, at string) {
	s.Messages = append(s.Messages, msg)
	s.Nodes = append(s.Nodes, node)
	s.Times = append(s.Times, at)
}

func (s *State) addTool(msg llm.Message) {
	s.Messages = append(s.Messages, msg)
}

func (s *State) last() llm.Message {
	return s.Messages[len(s.Messages)-1]
}

// userQuestion returns the question that opened the turn.
func (s *State) userQuestion() string {
	return s.Messages[0].Content
}

// plannerOutput returns the raw content of the latest planner message,
// or the empty string when planning never ran.
func (s *State) plannerOutput() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Tag == NodeIntentPlanner {
			return s.Messages[i].Content
		}
	}
	return ""
}
