package api

import (
	"maps"
	"slices"
	"strconv"
)

// NodeSize is the world-space footprint assumed for a node when computing
// graph bounds.
var NodeSize = Size{Width: 100, Height: 100}

// Graph is the workflow currently open in the editor.
//
// The editor store treats a *Graph it hands out as immutable: mutations are
// applied to a Clone and the new pointer replaces the old one. Callers must
// not modify graphs they receive from the store.
type Graph struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Nodes       []Node            `json:"nodes"`
	Connections []Connection      `json:"connections"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Node is a single step on the canvas.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion"`
	Position    Point          `json:"position"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
}

// Connection links an output of Source to an input of Target.
type Connection struct {
	Source       string `json:"source"`
	SourceOutput int    `json:"sourceOutput"`
	Target       string `json:"target"`
	TargetInput  int    `json:"targetInput"`
}

// Clone returns a copy of g that shares no slices or maps with it.
// Parameter values themselves are copied shallowly.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		ID:          g.ID,
		Name:        g.Name,
		Nodes:       make([]Node, len(g.Nodes)),
		Connections: slices.Clone(g.Connections),
		Meta:        maps.Clone(g.Meta),
	}
	for i, n := range g.Nodes {
		n.Parameters = maps.Clone(n.Parameters)
		out.Nodes[i] = n
	}
	return out
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	if i := g.nodeIndex(id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}

func (g *Graph) nodeIndex(id string) int {
	return slices.IndexFunc(g.Nodes, func(n Node) bool { return n.ID == id })
}

func (g *Graph) connectionIndex(c Connection) int {
	return slices.Index(g.Connections, c)
}

// Bounds returns the world-space rectangle covering every node, or false
// for an empty graph.
func (g *Graph) Bounds() (Rect, bool) {
	if g == nil || len(g.Nodes) == 0 {
		return Rect{}, false
	}
	r := Rect{Min: g.Nodes[0].Position, Max: g.Nodes[0].Position}
	for _, n := range g.Nodes {
		r.Min.X = min(r.Min.X, n.Position.X)
		r.Min.Y = min(r.Min.Y, n.Position.Y)
		r.Max.X = max(r.Max.X, n.Position.X+NodeSize.Width)
		r.Max.Y = max(r.Max.Y, n.Position.Y+NodeSize.Height)
	}
	return r, true
}

// Mutation describes one change to a Graph. Apply edits g in place and
// returns a ContractViolationError when the change does not fit g; the
// editor store always applies mutations to a private copy, so a failed
// Apply leaves no trace.
type Mutation interface {
	Kind() string
	Apply(g *Graph) error
}

// AddNode inserts a node. The ID must be non-empty and unused.
type AddNode struct {
	Node Node
}

func (AddNode) Kind() string { return "addNode" }

func (m AddNode) Apply(g *Graph) error {
	if m.Node.ID == "" {
		return Violation(ErrCodeInvalidMutation, "node id is required")
	}
	if g.nodeIndex(m.Node.ID) >= 0 {
		return Violation(ErrCodeInvalidMutation, "duplicate node id", "node", m.Node.ID)
	}
	n := m.Node
	n.Parameters = maps.Clone(n.Parameters)
	g.Nodes = append(g.Nodes, n)
	return nil
}

// RemoveNode deletes a node and every connection touching it.
type RemoveNode struct {
	ID string
}

func (RemoveNode) Kind() string { return "removeNode" }

func (m RemoveNode) Apply(g *Graph) error {
	i := g.nodeIndex(m.ID)
	if i < 0 {
		return Violation(ErrCodeInvalidMutation, "unknown node", "node", m.ID)
	}
	g.Nodes = slices.Delete(g.Nodes, i, i+1)
	g.Connections = slices.DeleteFunc(g.Connections, func(c Connection) bool {
		return c.Source == m.ID || c.Target == m.ID
	})
	return nil
}

// UpdateNode changes selected fields of a node. Nil fields are left alone;
// Parameters are merged key by key, a nil value deletes the key.
type UpdateNode struct {
	ID         string
	Name       *string
	Position   *Point
	Parameters map[string]any
	Disabled   *bool
}

func (UpdateNode) Kind() string { return "updateNode" }

func (m UpdateNode) Apply(g *Graph) error {
	i := g.nodeIndex(m.ID)
	if i < 0 {
		return Violation(ErrCodeInvalidMutation, "unknown node", "node", m.ID)
	}
	n := &g.Nodes[i]
	if m.Name != nil {
		n.Name = *m.Name
	}
	if m.Position != nil {
		n.Position = *m.Position
	}
	if m.Disabled != nil {
		n.Disabled = *m.Disabled
	}
	if len(m.Parameters) > 0 {
		if n.Parameters == nil {
			n.Parameters = make(map[string]any, len(m.Parameters))
		}
		for k, v := range m.Parameters {
			if v == nil {
				delete(n.Parameters, k)
				continue
			}
			n.Parameters[k] = v
		}
	}
	return nil
}

// AddConnection links two existing nodes. Duplicate links are rejected.
type AddConnection struct {
	Connection Connection
}

func (AddConnection) Kind() string { return "addConnection" }

func (m AddConnection) Apply(g *Graph) error {
	c := m.Connection
	if g.nodeIndex(c.Source) < 0 {
		return Violation(ErrCodeInvalidMutation, "unknown source node", "node", c.Source)
	}
	if g.nodeIndex(c.Target) < 0 {
		return Violation(ErrCodeInvalidMutation, "unknown target node", "node", c.Target)
	}
	if g.connectionIndex(c) >= 0 {
		return Violation(ErrCodeInvalidMutation, "duplicate connection", "source", c.Source, "target", c.Target)
	}
	g.Connections = append(g.Connections, c)
	return nil
}

// RemoveConnection deletes an existing link.
type RemoveConnection struct {
	Connection Connection
}

func (RemoveConnection) Kind() string { return "removeConnection" }

func (m RemoveConnection) Apply(g *Graph) error {
	i := g.connectionIndex(m.Connection)
	if i < 0 {
		return Violation(ErrCodeInvalidMutation, "unknown connection", "source", m.Connection.Source, "target", m.Connection.Target)
	}
	g.Connections = slices.Delete(g.Connections, i, i+1)
	return nil
}

// RenameWorkflow changes the workflow's display name.
type RenameWorkflow struct {
	Name string
}

func (RenameWorkflow) Kind() string { return "renameWorkflow" }

func (m RenameWorkflow) Apply(g *Graph) error {
	if m.Name == "" {
		return Violation(ErrCodeInvalidMutation, "workflow name is required")
	}
	g.Name = m.Name
	return nil
}

// Batch applies several mutations as one. Either all of them apply or,
// because the store works on a copy, none do.
type Batch struct {
	Mutations []Mutation
}

func (Batch) Kind() string { return "batch" }

func (m Batch) Apply(g *Graph) error {
	if len(m.Mutations) == 0 {
		return Violation(ErrCodeInvalidMutation, "empty batch")
	}
	for i, inner := range m.Mutations {
		if inner == nil {
			return Violation(ErrCodeInvalidMutation, "nil mutation in batch", "index", strconv.Itoa(i))
		}
		if err := inner.Apply(g); err != nil {
			return err
		}
	}
	return nil
}
