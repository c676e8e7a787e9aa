package core

import (
	"sort"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

type edgeKey struct {
	pred, succ string
}

// DependencyGraph is the typed precedence graph of a project. It is kept
// acyclic on every write: AddEdge rejects any edge that would close a loop
// and leaves the graph untouched when it does.
type DependencyGraph struct {
	nodes map[string]struct{}
	edges map[edgeKey]models.TaskRelationship
	succ  map[string][]string
	pred  map[string][]string
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]struct{}),
		edges: make(map[edgeKey]models.TaskRelationship),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
}

// BuildDependencyGraph creates a graph over taskIDs and inserts every
// relationship through AddEdge, so stored data that violates the graph
// invariants is reported rather than trusted.
func BuildDependencyGraph(taskIDs []string, rels []models.TaskRelationship) (*DependencyGraph, error) {
	g := NewDependencyGraph()
	for _, id := range taskIDs {
		g.AddNode(id)
	}
	sorted := make([]models.TaskRelationship, len(rels))
	copy(sorted, rels)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PredecessorID != sorted[j].PredecessorID {
			return sorted[i].PredecessorID < sorted[j].PredecessorID
		}
		return sorted[i].SuccessorID < sorted[j].SuccessorID
	})
	for _, rel := range sorted {
		if err := g.AddEdge(rel); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode registers a task. Adding an existing node is a no-op.
func (g *DependencyGraph) AddNode(id string) {
	g.nodes[id] = struct{}{}
}

// HasNode reports whether id is in the graph.
func (g *DependencyGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// RemoveNode deletes a task and every edge touching it, returning the
// removed edges.
func (g *DependencyGraph) RemoveNode(id string) []models.TaskRelationship {
	if !g.HasNode(id) {
		return nil
	}
	removed := g.EdgesTouching(map[string]bool{id: true})
	for _, rel := range removed {
		g.deleteEdge(rel.PredecessorID, rel.SuccessorID)
	}
	delete(g.nodes, id)
	delete(g.succ, id)
	delete(g.pred, id)
	return removed
}

// Nodes returns every task ID in sorted order.
func (g *DependencyGraph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *DependencyGraph) EdgeCount() int { return len(g.edges) }

// AddEdge inserts a relationship after checking, in order: both ends
// exist, the edge is not a self-loop, the pair is not already linked and
// the successor cannot already reach the predecessor. A rejected cycle
// returns a CycleDetected error whose Loop holds the closed path.
func (g *DependencyGraph) AddEdge(rel models.TaskRelationship) error {
	p, s := rel.PredecessorID, rel.SuccessorID
	if !g.HasNode(p) {
		return newError(CodeUnknownTask, "predecessor %q is not a task in this project", p)
	}
	if !g.HasNode(s) {
		return newError(CodeUnknownTask, "successor %q is not a task in this project", s)
	}
	if p == s {
		return newError(CodeSelfLoop, "task %q cannot depend on itself", p)
	}
	if _, exists := g.edges[edgeKey{p, s}]; exists {
		return newError(CodeDuplicateEdge, "%s -> %s already exists; update it instead", p, s)
	}
	if rel.Type == "" {
		rel.Type = models.FinishToStart
	}
	if !rel.Type.Valid() {
		return newError(CodeInvalidInput, "unknown relationship type %q", rel.Type)
	}
	if err := checkLag(rel.LagDays); err != nil {
		return err
	}
	if path := g.pathBetween(s, p); path != nil {
		loop := append([]string{p}, path...)
		err := newError(CodeCycleDetected, "%s -> %s would close the loop %v", p, s, loop)
		err.Loop = &models.ScheduleLoop{
			ProjectID:             rel.ProjectID,
			TaskIDs:               loop,
			RejectedPredecessorID: p,
			RejectedSuccessorID:   s,
		}
		return err
	}

	g.edges[edgeKey{p, s}] = rel
	g.succ[p] = insertSorted(g.succ[p], s)
	g.pred[s] = insertSorted(g.pred[s], p)
	return nil
}

// UpdateEdge changes the type and lag of an existing edge. The endpoints
// cannot change, so no cycle check is needed.
func (g *DependencyGraph) UpdateEdge(pred, succ string, typ models.RelationType, lag int) error {
	rel, ok := g.edges[edgeKey{pred, succ}]
	if !ok {
		return newError(CodeUnknownTask, "no relationship %s -> %s", pred, succ)
	}
	if !typ.Valid() {
		return newError(CodeInvalidInput, "unknown relationship type %q", typ)
	}
	if err := checkLag(lag); err != nil {
		return err
	}
	rel.Type = typ
	rel.LagDays = lag
	g.edges[edgeKey{pred, succ}] = rel
	return nil
}

// RemoveEdge deletes the edge pred -> succ and returns it.
func (g *DependencyGraph) RemoveEdge(pred, succ string) (models.TaskRelationship, error) {
	rel, ok := g.edges[edgeKey{pred, succ}]
	if !ok {
		return models.TaskRelationship{}, newError(CodeUnknownTask, "no relationship %s -> %s", pred, succ)
	}
	g.deleteEdge(pred, succ)
	return rel, nil
}

func (g *DependencyGraph) deleteEdge(pred, succ string) {
	delete(g.edges, edgeKey{pred, succ})
	g.succ[pred] = removeString(g.succ[pred], succ)
	g.pred[succ] = removeString(g.pred[succ], pred)
}

// Edge returns the relationship pred -> succ if present.
func (g *DependencyGraph) Edge(pred, succ string) (models.TaskRelationship, bool) {
	rel, ok := g.edges[edgeKey{pred, succ}]
	return rel, ok
}

// PredecessorsOf returns the incoming edges of id ordered by predecessor.
func (g *DependencyGraph) PredecessorsOf(id string) []models.TaskRelationship {
	out := make([]models.TaskRelationship, 0, len(g.pred[id]))
	for _, p := range g.pred[id] {
		out = append(out, g.edges[edgeKey{p, id}])
	}
	return out
}

// SuccessorsOf returns the outgoing edges of id ordered by successor.
func (g *DependencyGraph) SuccessorsOf(id string) []models.TaskRelationship {
	out := make([]models.TaskRelationship, 0, len(g.succ[id]))
	for _, s := range g.succ[id] {
		out = append(out, g.edges[edgeKey{id, s}])
	}
	return out
}

// Edges returns every relationship ordered by (predecessor, successor).
func (g *DependencyGraph) Edges() []models.TaskRelationship {
	out := make([]models.TaskRelationship, 0, len(g.edges))
	for _, id := range g.Nodes() {
		out = append(out, g.SuccessorsOf(id)...)
	}
	return out
}

// EdgesTouching returns every edge with either end in ids.
func (g *DependencyGraph) EdgesTouching(ids map[string]bool) []models.TaskRelationship {
	var out []models.TaskRelationship
	for _, rel := range g.Edges() {
		if ids[rel.PredecessorID] || ids[rel.SuccessorID] {
			out = append(out, rel)
		}
	}
	return out
}

// TopologicalOrder returns the nodes so that every predecessor comes
// before its successors. Ties are broken by task ID so the order is
// stable across runs.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.pred[id])
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []string
		for _, next := range g.succ[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		if len(ready) > 0 {
			queue = append(queue, ready...)
			sort.Strings(queue)
		}
	}

	if len(order) != len(g.nodes) {
		return nil, newError(CodeCycleDetected, "dependency graph contains a cycle (%d of %d tasks ordered)",
			len(order), len(g.nodes))
	}
	return order, nil
}

// Roots returns the tasks without predecessors.
func (g *DependencyGraph) Roots() []string {
	var roots []string
	for _, id := range g.Nodes() {
		if len(g.pred[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Clone returns an independent copy of the graph.
func (g *DependencyGraph) Clone() *DependencyGraph {
	c := NewDependencyGraph()
	for id := range g.nodes {
		c.nodes[id] = struct{}{}
	}
	for k, rel := range g.edges {
		c.edges[k] = rel
	}
	for id, list := range g.succ {
		c.succ[id] = append([]string(nil), list...)
	}
	for id, list := range g.pred {
		c.pred[id] = append([]string(nil), list...)
	}
	return c
}

// pathBetween returns the shortest path from -> ... -> to over existing
// edges using BFS, or nil when to is unreachable.
func (g *DependencyGraph) pathBetween(from, to string) []string {
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == to {
			var path []string
			for cur := to; cur != ""; cur = parent[cur] {
				path = append(path, cur)
				if cur == from {
					break
				}
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range g.succ[node] {
			if _, seen := parent[next]; !seen {
				parent[next] = node
				queue = append(queue, next)
			}
		}
	}
	return nil
}

func insertSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	if i < len(list) && list[i] == v {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

func removeString(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	if i < len(list) && list[i] == v {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

func checkLag(lag int) error {
	if lag > MaxDurationDays || lag < -MaxDurationDays {
		return newError(CodeInvalidInput, "lag %d is outside +/-%d working days", lag, MaxDurationDays)
	}
	return nil
}
