package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cloudwego/eino/compose"
)

type counter struct {
	Trail []string
	N     int
}

func appendNode(name string) NodeFunc[counter] {
	return func(_ context.Context, s counter) (counter, error) {
		trail := append([]string(nil), s.Trail...)
		s.Trail = append(trail, name)
		s.N++
		return s, nil
	}
}

func linear(t *testing.T, names ...string) *Graph[counter] {
	t.Helper()
	g := New[counter]()
	prev := START
	for _, name := range names {
		if err := g.AddNode(name, appendNode(name)); err != nil {
			t.Fatalf("AddNode(%q) error = %v", name, err)
		}
		if err := g.AddEdge(prev, name); err != nil {
			t.Fatalf("AddEdge(%q, %q) error = %v", prev, name, err)
		}
		prev = name
	}
	if err := g.AddEdge(prev, END); err != nil {
		t.Fatalf("AddEdge(%q, END) error = %v", prev, err)
	}
	return g
}

func mustCompile(t *testing.T, g *Graph[counter]) *Compiled[counter] {
	t.Helper()
	compiled, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return compiled
}

func TestStreamEmitsEachNodeInOrder(t *testing.T) {
	compiled := mustCompile(t, linear(t, "a", "b", "c"))
	if got := compiled.Nodes(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Nodes() = %v", got)
	}

	var updates []Update[counter]
	final, err := compiled.Stream(context.Background(), counter{}, func(u Update[counter]) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("updates = %d, want 3", len(updates))
	}
	if updates[0].Node != "a" || !reflect.DeepEqual(updates[0].State.Trail, []string{"a"}) {
		t.Fatalf("first update = %+v", updates[0])
	}
	if !reflect.DeepEqual(updates[1].State.Trail, []string{"a", "b"}) {
		t.Fatalf("second update = %+v", updates[1])
	}
	if final.N != 3 || !reflect.DeepEqual(final, updates[2].State) {
		t.Fatalf("final = %+v, last update = %+v", final, updates[2].State)
	}
}

func TestInvokeDoesNotMutateInput(t *testing.T) {
	compiled := mustCompile(t, linear(t, "a"))

	input := counter{Trail: []string{"seed"}}
	final, err := compiled.Invoke(context.Background(), input)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !reflect.DeepEqual(input.Trail, []string{"seed"}) {
		t.Fatalf("input mutated: %v", input.Trail)
	}
	if !reflect.DeepEqual(final.Trail, []string{"seed", "a"}) {
		t.Fatalf("final = %v", final.Trail)
	}
}

func TestStreamStopsOnNodeError(t *testing.T) {
	boom := errors.New("boom")
	g := New[counter]()
	_ = g.AddNode("a", appendNode("a"))
	_ = g.AddNode("b", func(context.Context, counter) (counter, error) { return counter{}, boom })
	_ = g.AddNode("c", appendNode("c"))
	_ = g.AddEdge(START, "a")
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", END)
	compiled := mustCompile(t, g)

	var emitted []string
	last, err := compiled.Stream(context.Background(), counter{}, func(u Update[counter]) {
		emitted = append(emitted, u.Node)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Stream() error = %v, want boom", err)
	}
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "b" {
		t.Fatalf("Stream() error = %#v, want NodeError for b", err)
	}
	if !reflect.DeepEqual(emitted, []string{"a"}) {
		t.Fatalf("emitted = %v", emitted)
	}
	if !reflect.DeepEqual(last.Trail, []string{"a"}) {
		t.Fatalf("last good state = %+v", last)
	}
}

func TestStreamRunsToTheEndAfterCancellation(t *testing.T) {
	compiled := mustCompile(t, linear(t, "a", "b", "c"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var emitted []string
	final, err := compiled.Stream(ctx, counter{}, func(u Update[counter]) {
		emitted = append(emitted, u.Node)
		cancel()
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if !reflect.DeepEqual(emitted, []string{"a", "b", "c"}) || final.N != 3 {
		t.Fatalf("emitted = %v final = %+v", emitted, final)
	}

	final, err = compiled.Invoke(ctx, counter{})
	if err != nil || final.N != 3 {
		t.Fatalf("Invoke() on cancelled context = %+v, %v", final, err)
	}
}

func TestStreamOnUncompiledGraph(t *testing.T) {
	var compiled *Compiled[counter]
	if _, err := compiled.Invoke(context.Background(), counter{}); !errors.Is(err, ErrNotCompiled) {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestCompileValidation(t *testing.T) {
	noop := appendNode("x")
	tests := []struct {
		name  string
		build func(g *Graph[counter])
	}{
		{name: "no entry", build: func(g *Graph[counter]) {
			_ = g.AddNode("a", noop)
			_ = g.AddEdge("a", END)
		}},
		{name: "missing outgoing edge", build: func(g *Graph[counter]) {
			_ = g.AddNode("a", noop)
			_ = g.AddNode("b", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", "b")
		}},
		{name: "dangling edge", build: func(g *Graph[counter]) {
			_ = g.AddNode("a", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", "ghost")
		}},
		{name: "unreachable node", build: func(g *Graph[counter]) {
			_ = g.AddNode("a", noop)
			_ = g.AddNode("b", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", END)
			_ = g.AddEdge("b", END)
		}},
		{name: "cycle", build: func(g *Graph[counter]) {
			_ = g.AddNode("a", noop)
			_ = g.AddNode("b", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", "b")
			_ = g.AddEdge("b", "a")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New[counter]()
			tt.build(g)
			if _, err := g.Compile(); err == nil {
				t.Fatal("expected Compile() error")
			}
		})
	}
}

func TestAddNodeAndEdgeRejectInvalidInput(t *testing.T) {
	g := New[counter]()
	if err := g.AddNode(START, appendNode("x")); err == nil {
		t.Fatal("expected error for reserved start name")
	}
	if err := g.AddNode(compose.START, appendNode("x")); err == nil {
		t.Fatal("expected error for engine start name")
	}
	if err := g.AddNode("a", nil); err == nil {
		t.Fatal("expected error for nil function")
	}
	if err := g.AddNode("a", appendNode("a")); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	if err := g.AddNode("a", appendNode("a")); err == nil {
		t.Fatal("expected duplicate node error")
	}
	if err := g.AddEdge(START, "a"); err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}
	if err := g.AddEdge(START, "a"); err == nil {
		t.Fatal("expected duplicate edge error")
	}
	if err := g.AddEdge(END, "a"); err == nil {
		t.Fatal("expected error for edge leaving END")
	}
	if err := g.AddEdge("a", START); err == nil {
		t.Fatal("expected error for edge entering START")
	}
}
