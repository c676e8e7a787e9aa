package core

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// ParseWBSCode splits a dotted WBS code into its positive segments.
func ParseWBSCode(code string) ([]int, error) {
	if code == "" {
		return nil, newError(CodeInvalidWBSCode, "WBS code is empty")
	}
	parts := strings.Split(code, ".")
	segs := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || strconv.Itoa(n) != p {
			return nil, newError(CodeInvalidWBSCode, "WBS code %q: segment %q must be a positive integer", code, p)
		}
		segs[i] = n
	}
	return segs, nil
}

// FormatWBSCode joins segments back into a dotted code.
func FormatWBSCode(segs []int) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ".")
}

// CompareWBSCodes orders codes segment by segment, so "1.2" < "1.10".
// Unparseable codes fall back to string comparison after valid ones.
func CompareWBSCodes(a, b string) int {
	sa, errA := ParseWBSCode(a)
	sb, errB := ParseWBSCode(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if sa[i] != sb[i] {
			if sa[i] < sb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(sa) < len(sb):
		return -1
	case len(sa) > len(sb):
		return 1
	}
	return 0
}

// Hierarchy is the WBS tree view over a project's tasks. It shares the
// task map with the owning Schedule, so edits are visible to both.
type Hierarchy struct {
	tasks map[string]*models.Task
}

// NewHierarchy wraps a task map.
func NewHierarchy(tasks map[string]*models.Task) *Hierarchy {
	return &Hierarchy{tasks: tasks}
}

// ByCode returns the task holding code, if any.
func (h *Hierarchy) ByCode(code string) (*models.Task, bool) {
	for _, t := range h.tasks {
		if t.WBSCode == code {
			return t, true
		}
	}
	return nil, false
}

// Children returns the direct children of parentID in WBS order. An empty
// parentID returns the root tasks.
func (h *Hierarchy) Children(parentID string) []*models.Task {
	var out []*models.Task
	for _, t := range h.tasks {
		if t.ParentTaskID == parentID {
			out = append(out, t)
		}
	}
	sortByWBS(out)
	return out
}

// HasChildren reports whether any task names id as its parent.
func (h *Hierarchy) HasChildren(id string) bool {
	for _, t := range h.tasks {
		if t.ParentTaskID == id {
			return true
		}
	}
	return false
}

// Descendants returns the IDs of every task below id in WBS order. The
// task itself is not included.
func (h *Hierarchy) Descendants(id string) []string {
	children := make(map[string][]string)
	for _, t := range h.tasks {
		if t.ParentTaskID != "" {
			children[t.ParentTaskID] = append(children[t.ParentTaskID], t.ID)
		}
	}

	var out []*models.Task
	seen := map[string]bool{id: true}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, h.tasks[c])
			stack = append(stack, c)
		}
	}
	sortByWBS(out)

	ids := make([]string, len(out))
	for i, t := range out {
		ids[i] = t.ID
	}
	return ids
}

// NextChildCode returns the code a new last child of parentID would get:
// one past the highest existing sibling segment.
func (h *Hierarchy) NextChildCode(parentID string) (string, error) {
	var prefix []int
	if parentID != "" {
		parent, ok := h.tasks[parentID]
		if !ok {
			return "", newError(CodeInvalidParent, "parent task %q does not exist", parentID)
		}
		segs, err := ParseWBSCode(parent.WBSCode)
		if err != nil {
			return "", err
		}
		prefix = segs
	}

	highest := 0
	for _, t := range h.tasks {
		segs, err := ParseWBSCode(t.WBSCode)
		if err != nil || len(segs) != len(prefix)+1 || !hasPrefix(segs, prefix) {
			continue
		}
		if last := segs[len(segs)-1]; last > highest {
			highest = last
		}
	}
	return FormatWBSCode(append(append([]int(nil), prefix...), highest+1)), nil
}

// ValidateTask checks t against the hierarchy invariants as if it were
// inserted (or replaced) in the tree: a valid unique code, a level equal to
// the segment count and a parent exactly one level up whose code prefixes
// t's code.
func (h *Hierarchy) ValidateTask(t *models.Task) error {
	segs, err := ParseWBSCode(t.WBSCode)
	if err != nil {
		return err
	}
	if t.Level != len(segs) {
		return newError(CodeInvalidWBSCode, "task %q: level %d does not match WBS code %q", t.ID, t.Level, t.WBSCode)
	}
	for id, other := range h.tasks {
		if id != t.ID && other.WBSCode == t.WBSCode {
			return newError(CodeDuplicateWBSCode, "WBS code %q is already used by task %q", t.WBSCode, id)
		}
	}

	if t.ParentTaskID == "" {
		if len(segs) > 1 {
			return newError(CodeInvalidParent, "task %q at level %d needs a parent", t.ID, len(segs))
		}
		return nil
	}
	if t.ParentTaskID == t.ID {
		return newError(CodeInvalidHierarchy, "task %q cannot be its own parent", t.ID)
	}
	parent, ok := h.tasks[t.ParentTaskID]
	if !ok {
		return newError(CodeInvalidParent, "parent task %q does not exist", t.ParentTaskID)
	}
	if parent.Level != t.Level-1 || !strings.HasPrefix(t.WBSCode, parent.WBSCode+".") {
		return newError(CodeInvalidParent, "task %q (%s) is not a direct child of %q (%s)",
			t.ID, t.WBSCode, parent.ID, parent.WBSCode)
	}
	return nil
}

// Validate checks every task in the tree.
func (h *Hierarchy) Validate() error {
	for _, t := range sortedTasks(h.tasks) {
		if err := h.ValidateTask(t); err != nil {
			return err
		}
	}
	return nil
}

// MoveTask re-parents taskID as the last child of newParentID (a root when
// empty). The task and all of its descendants get new codes and levels;
// descendants keep their relative order because only the prefix changes.
// It returns the IDs whose code changed.
func (h *Hierarchy) MoveTask(taskID, newParentID string) ([]string, error) {
	task, ok := h.tasks[taskID]
	if !ok {
		return nil, newError(CodeUnknownTask, "task %q does not exist", taskID)
	}
	if newParentID == taskID {
		return nil, newError(CodeInvalidHierarchy, "task %q cannot become its own parent", taskID)
	}
	descendants := h.Descendants(taskID)
	for _, d := range descendants {
		if d == newParentID {
			return nil, newError(CodeInvalidHierarchy, "task %q is a descendant of %q", newParentID, taskID)
		}
	}
	if task.ParentTaskID == newParentID {
		return nil, nil
	}

	newCode, err := h.NextChildCode(newParentID)
	if err != nil {
		return nil, err
	}
	oldCode := task.WBSCode

	task.ParentTaskID = newParentID
	task.WBSCode = newCode
	task.Level = strings.Count(newCode, ".") + 1
	changed := []string{taskID}
	for _, id := range descendants {
		d := h.tasks[id]
		d.WBSCode = newCode + strings.TrimPrefix(d.WBSCode, oldCode)
		d.Level = strings.Count(d.WBSCode, ".") + 1
		changed = append(changed, id)
	}
	return changed, nil
}

// Span is the rolled-up date range of a WBS node and its subtree.
type Span struct {
	TaskID  string     `json:"task_id"`
	WBSCode string     `json:"wbs_code"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Leaves  int        `json:"leaves"`
}

// RollUp returns, for every task, the earliest start and latest end across
// the task and its subtree, in WBS order.
func (h *Hierarchy) RollUp() []Span {
	tasks := sortedTasks(h.tasks)
	spans := make(map[string]*Span, len(tasks))
	for _, t := range tasks {
		spans[t.ID] = &Span{TaskID: t.ID, WBSCode: t.WBSCode}
	}

	// Deepest first so every child is complete before its parent reads it.
	byDepth := make([]*models.Task, len(tasks))
	copy(byDepth, tasks)
	sort.SliceStable(byDepth, func(i, j int) bool { return byDepth[i].Level > byDepth[j].Level })

	for _, t := range byDepth {
		s := spans[t.ID]
		if !h.HasChildren(t.ID) {
			s.Leaves = 1
			s.Start = earlier(s.Start, t.StartDate)
			s.End = later(s.End, t.EndDate)
		}
		if p, ok := spans[t.ParentTaskID]; ok {
			p.Start = earlier(p.Start, s.Start)
			p.End = later(p.End, s.End)
			p.Leaves += s.Leaves
		}
	}

	out := make([]Span, len(tasks))
	for i, t := range tasks {
		out[i] = *spans[t.ID]
	}
	return out
}

func earlier(a, b *time.Time) *time.Time {
	if b == nil || (a != nil && !b.Before(*a)) {
		return a
	}
	d := *b
	return &d
}

func later(a, b *time.Time) *time.Time {
	if b == nil || (a != nil && !b.After(*a)) {
		return a
	}
	d := *b
	return &d
}

func hasPrefix(segs, prefix []int) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}

func sortByWBS(tasks []*models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if c := CompareWBSCodes(tasks[i].WBSCode, tasks[j].WBSCode); c != 0 {
			return c < 0
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func sortedTasks(m map[string]*models.Task) []*models.Task {
	out := make([]*models.Task, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sortByWBS(out)
	return out
}
