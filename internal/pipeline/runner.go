package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/database"
	"github.com/sqlchat/sqlchat/internal/graph"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
)

var ErrEmptyQuestion = errors.New("question is required")

type QueryWriter interface {
	Synthesize(ctx context.Context, req nl2sql.QueryRequest) (string, error)
}

type AnswerWriter interface {
	Synthesize(ctx context.Context, question, query, result string) (string, error)
}

// Database is the part of the connection the pipeline needs.
type Database interface {
	Dialect() string
	TableInfo(ctx context.Context) (string, error)
	Run(ctx context.Context, query string) database.Result
}

type Dependencies struct {
	Logger  *slog.Logger
	Queries QueryWriter
	Answers AnswerWriter
	DB      Database
	TopK    int
}

type Runner struct {
	logger  *slog.Logger
	queries QueryWriter
	answers AnswerWriter
	db      Database
	topK    int
	graph   *graph.Compiled[State]
}

func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Queries == nil || deps.Answers == nil || deps.DB == nil {
		return nil, fmt.Errorf("query writer, answer writer and database are required")
	}
	if deps.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", deps.TopK)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		logger:  logger,
		queries: deps.Queries,
		answers: deps.Answers,
		db:      deps.DB,
		topK:    deps.TopK,
	}

	g := graph.New[State]()
	nodes := []struct {
		name string
		fn   graph.NodeFunc[State]
	}{
		{NodeWriteQuery, r.writeQuery},
		{NodeExecuteQuery, r.executeQuery},
		{NodeGenerateAnswer, r.generateAnswer},
	}
	prev := graph.START
	for _, node := range nodes {
		if err := g.AddNode(node.name, r.instrument(node.name, node.fn)); err != nil {
			return nil, err
		}
		if err := g.AddEdge(prev, node.name); err != nil {
			return nil, err
		}
		prev = node.name
	}
	if err := g.AddEdge(prev, graph.END); err != nil {
		return nil, err
	}
	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	r.graph = compiled
	return r, nil
}

// Run answers one question. onStep is called after each node, in order,
// before the next node starts; it may be nil. A synthesis failure aborts the
// run and is returned; steps already reported stay valid.
func (r *Runner) Run(ctx context.Context, question string, onStep func(Step)) (State, error) {
	if strings.TrimSpace(question) == "" {
		return State{}, ErrEmptyQuestion
	}

	start := time.Now()
	final, err := r.graph.Stream(ctx, State{Question: question, Stage: StageStart}, func(u graph.Update[State]) {
		if onStep == nil {
			return
		}
		if step, ok := stepFor(u.Node, u.State); ok {
			onStep(step)
		}
	})
	if err != nil {
		observability.ObservePipelineRun(observability.OutcomeFailure)
		failedNode := ""
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			failedNode = nodeErr.Node
			err = nodeErr.Err
		}
		r.logger.WarnContext(ctx, "pipeline aborted",
			append(observability.RequestAttrs(ctx),
				slog.String("node", failedNode),
				slog.String("last_stage", string(final.Stage)),
				slog.String("error", err.Error()),
			)...,
		)
		return final, err
	}

	final.Stage = StageDone
	observability.ObservePipelineRun(observability.OutcomeSuccess)
	r.logger.InfoContext(ctx, "pipeline completed",
		append(observability.RequestAttrs(ctx),
			slog.String("duration", time.Since(start).String()),
		)...,
	)
	return final, nil
}

func (r *Runner) writeQuery(ctx context.Context, state State) (State, error) {
	tableInfo, err := r.db.TableInfo(ctx)
	if err != nil {
		return state, fmt.Errorf("introspect schema: %w", err)
	}
	query, err := r.queries.Synthesize(ctx, nl2sql.QueryRequest{
		Question:  state.Question,
		Dialect:   r.db.Dialect(),
		TopK:      r.topK,
		TableInfo: tableInfo,
	})
	if err != nil {
		return state, err
	}
	state.Query = query
	state.Stage = StageQueryWritten
	return state, nil
}

// executeQuery never fails: driver errors travel as the result text.
func (r *Runner) executeQuery(ctx context.Context, state State) (State, error) {
	result := r.db.Run(ctx, state.Query)
	if result.Err != nil {
		observability.IncrementQueryExecutionErrors()
		r.logger.WarnContext(ctx, "generated query failed",
			append(observability.RequestAttrs(ctx),
				slog.String("query", state.Query),
				slog.String("error", result.Err.Error()),
			)...,
		)
	}
	state.Result = result.Text
	state.Stage = StageExecuted
	return state, nil
}

func (r *Runner) generateAnswer(ctx context.Context, state State) (State, error) {
	answer, err := r.answers.Synthesize(ctx, state.Question, state.Query, state.Result)
	if err != nil {
		return state, err
	}
	state.Answer = answer
	state.Stage = StageAnswered
	return state, nil
}

func (r *Runner) instrument(name string, fn graph.NodeFunc[State]) graph.NodeFunc[State] {
	return func(ctx context.Context, state State) (State, error) {
		start := time.Now()
		next, err := fn(ctx, state)
		elapsed := time.Since(start)
		observability.ObservePipelineStage(name, elapsed, err != nil)
		r.logger.DebugContext(ctx, "pipeline stage finished",
			append(observability.RequestAttrs(ctx),
				slog.String("stage", name),
				slog.String("duration", elapsed.String()),
				slog.Bool("failed", err != nil),
			)...,
		)
		return next, err
	}
}
