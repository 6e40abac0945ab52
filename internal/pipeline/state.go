package pipeline

type Stage string

const (
	StageStart        Stage = "start"
	StageQueryWritten Stage = "query_written"
	StageExecuted     Stage = "executed"
	StageAnswered     Stage = "answered"
	StageDone         Stage = "done"
)

// State is the record threaded through one submission. Nodes receive it by
// value and return an updated copy; a field is only read after the node that
// produces it has run.
type State struct {
	Question string
	Query    string
	Result   string
	Answer   string
	Stage    Stage
}

const (
	NodeWriteQuery     = "write_query"
	NodeExecuteQuery   = "execute_query"
	NodeGenerateAnswer = "generate_answer"
)

const (
	LabelQuery  = "Generated Query"
	LabelResult = "SQL Result"
	LabelAnswer = "Answer"
)

// Step reports one finished node together with its transcript entry.
type Step struct {
	Node    string
	Label   string
	Content string
	State   State
}

func stepFor(node string, state State) (Step, bool) {
	switch node {
	case NodeWriteQuery:
		return Step{Node: node, Label: LabelQuery, Content: state.Query, State: state}, true
	case NodeExecuteQuery:
		return Step{Node: node, Label: LabelResult, Content: state.Result, State: state}, true
	case NodeGenerateAnswer:
		return Step{Node: node, Label: LabelAnswer, Content: state.Answer, State: state}, true
	default:
		return Step{}, false
	}
}
