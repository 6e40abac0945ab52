// Package graph runs a fixed chain of named steps over a state value. The
// chain is validated here and executed as an eino compose graph.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

const (
	START = "__start__"
	END   = "__end__"
)

var ErrNotCompiled = errors.New("graph is not compiled")

// NodeFunc receives a copy of the current state and returns the next one.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Update is emitted after a node finishes and before the next one starts.
type Update[S any] struct {
	Node  string
	State S
}

type Graph[S any] struct {
	nodes map[string]NodeFunc[S]
	order []string
	edges map[string]string
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes: make(map[string]NodeFunc[S]),
		edges: make(map[string]string),
	}
}

func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) error {
	if name == "" || name == START || name == END || name == compose.START || name == compose.END {
		return fmt.Errorf("invalid node name %q", name)
	}
	if fn == nil {
		return fmt.Errorf("node %q has no function", name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %q already exists", name)
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return nil
}

// AddEdge connects from to to. Each source has exactly one successor.
func (g *Graph[S]) AddEdge(from, to string) error {
	if from == END {
		return fmt.Errorf("edge cannot leave %s", END)
	}
	if to == START {
		return fmt.Errorf("edge cannot enter %s", START)
	}
	if existing, ok := g.edges[from]; ok {
		return fmt.Errorf("node %q already has an edge to %q", from, existing)
	}
	g.edges[from] = to
	return nil
}

// Compiled is an immutable, validated chain backed by an eino runnable.
type Compiled[S any] struct {
	names    []string
	runnable compose.Runnable[S, S]
}

func (g *Graph[S]) Compile() (*Compiled[S], error) {
	names, err := g.validate()
	if err != nil {
		return nil, err
	}

	chain := compose.NewGraph[S, S]()
	for _, name := range names {
		if err := chain.AddLambdaNode(name, compose.InvokableLambda[S, S](wrapNode(name, g.nodes[name]))); err != nil {
			return nil, fmt.Errorf("add node %q: %w", name, err)
		}
	}
	for from, to := range g.edges {
		if err := chain.AddEdge(einoKey(from), einoKey(to)); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", from, to, err)
		}
	}
	runnable, err := chain.Compile(context.Background())
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}
	return &Compiled[S]{names: names, runnable: runnable}, nil
}

// validate walks the chain from START and returns the node order.
func (g *Graph[S]) validate() ([]string, error) {
	for from, to := range g.edges {
		if from != START {
			if _, ok := g.nodes[from]; !ok {
				return nil, fmt.Errorf("edge from unknown node %q", from)
			}
		}
		if to != END {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("edge to unknown node %q", to)
			}
		}
	}
	if _, ok := g.edges[START]; !ok {
		return nil, fmt.Errorf("graph has no entry edge from %s", START)
	}
	for _, name := range g.order {
		if _, ok := g.edges[name]; !ok {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
	}

	visited := make(map[string]bool, len(g.nodes))
	names := make([]string, 0, len(g.nodes))
	current := g.edges[START]
	for current != END {
		if visited[current] {
			return nil, fmt.Errorf("cycle detected at node %q", current)
		}
		visited[current] = true
		names = append(names, current)
		current = g.edges[current]
	}
	for _, name := range g.order {
		if !visited[name] {
			return nil, fmt.Errorf("node %q is unreachable", name)
		}
	}
	return names, nil
}

func einoKey(name string) string {
	switch name {
	case START:
		return compose.START
	case END:
		return compose.END
	default:
		return name
	}
}

// Nodes lists node names in execution order.
func (c *Compiled[S]) Nodes() []string {
	return append([]string(nil), c.names...)
}

// Stream runs every node in order. emit may be nil. Cancellation of ctx is
// not observed: once started, the chain runs to the end or to the first node
// error, in which case the last good state is returned.
func (c *Compiled[S]) Stream(ctx context.Context, state S, emit func(Update[S])) (S, error) {
	if c == nil || c.runnable == nil {
		return state, ErrNotCompiled
	}
	run := &runState[S]{emit: emit, last: state}
	ctx = context.WithValue(context.WithoutCancel(ctx), runKey{}, run)

	final, err := c.runnable.Invoke(ctx, state)
	if run.failed != nil {
		return run.last, run.failed
	}
	if err != nil {
		return run.last, err
	}
	return final, nil
}

func (c *Compiled[S]) Invoke(ctx context.Context, state S) (S, error) {
	return c.Stream(ctx, state, nil)
}

type runKey struct{}

// runState carries per-invocation hooks into the compiled nodes. Nodes of a
// chain run one after another, so no locking is needed.
type runState[S any] struct {
	emit   func(Update[S])
	last   S
	failed *NodeError
}

func wrapNode[S any](name string, fn NodeFunc[S]) func(context.Context, S) (S, error) {
	return func(ctx context.Context, in S) (S, error) {
		run, _ := ctx.Value(runKey{}).(*runState[S])
		out, err := fn(ctx, in)
		if err != nil {
			nodeErr := &NodeError{Node: name, Err: err}
			if run != nil {
				run.last = in
				run.failed = nodeErr
			}
			return in, nodeErr
		}
		if run != nil {
			run.last = out
			if run.emit != nil {
				run.emit(Update[S]{Node: name, State: out})
			}
		}
		return out, nil
	}
}

type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
