package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

func wbsTask(id, code, parent string) *models.Task {
	segs, _ := ParseWBSCode(code)
	return &models.Task{ID: id, Name: id, WBSCode: code, ParentTaskID: parent, Level: len(segs), DurationDays: 1}
}

// sampleTree:
//
//	1 (a)
//	  1.1 (b)
//	    1.1.1 (c)
//	    1.1.2 (d)
//	  1.2 (e)
//	2 (f)
//	  2.1 (g)
func sampleTree() map[string]*models.Task {
	tasks := map[string]*models.Task{}
	for _, t := range []*models.Task{
		wbsTask("a", "1", ""),
		wbsTask("b", "1.1", "a"),
		wbsTask("c", "1.1.1", "b"),
		wbsTask("d", "1.1.2", "b"),
		wbsTask("e", "1.2", "a"),
		wbsTask("f", "2", ""),
		wbsTask("g", "2.1", "f"),
	} {
		tasks[t.ID] = t
	}
	return tasks
}

func TestParseWBSCode(t *testing.T) {
	valid := map[string][]int{"1": {1}, "1.2.3": {1, 2, 3}, "10.20": {10, 20}}
	for code, want := range valid {
		got, err := ParseWBSCode(code)
		if err != nil || !reflect.DeepEqual(got, want) {
			t.Errorf("ParseWBSCode(%q) = %v, %v", code, got, err)
		}
	}
	for _, code := range []string{"", "1.", ".1", "1..2", "a.1", "0", "1.-2", "01"} {
		if _, err := ParseWBSCode(code); !errors.Is(err, ErrInvalidWBSCode) {
			t.Errorf("ParseWBSCode(%q) should fail, got %v", code, err)
		}
	}
}

func TestCompareWBSCodes(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2", "1.10", -1},
		{"1.10", "1.2", 1},
		{"1", "1.1", -1},
		{"2", "1.9.9", 1},
		{"1.1", "1.1", 0},
	}
	for _, tt := range tests {
		if got := CompareWBSCodes(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareWBSCodes(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHierarchy_Validate(t *testing.T) {
	if err := NewHierarchy(sampleTree()).Validate(); err != nil {
		t.Fatalf("sample tree should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(map[string]*models.Task)
		want   error
	}{
		{"duplicate code", func(m map[string]*models.Task) { m["e"].WBSCode = "1.1" }, ErrDuplicateWBSCode},
		{"level mismatch", func(m map[string]*models.Task) { m["e"].Level = 3 }, ErrInvalidWBSCode},
		{"missing parent", func(m map[string]*models.Task) { m["e"].ParentTaskID = "zz" }, ErrInvalidParent},
		{"orphan level 2", func(m map[string]*models.Task) { m["e"].ParentTaskID = "" }, ErrInvalidParent},
		{"prefix mismatch", func(m map[string]*models.Task) { m["g"].ParentTaskID = "a" }, ErrInvalidParent},
		{"grandparent", func(m map[string]*models.Task) { m["c"].ParentTaskID = "a" }, ErrInvalidParent},
		{"bad code", func(m map[string]*models.Task) { m["e"].WBSCode = "1.x" }, ErrInvalidWBSCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := sampleTree()
			tt.mutate(tasks)
			if err := NewHierarchy(tasks).Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHierarchy_ChildrenAndDescendants(t *testing.T) {
	h := NewHierarchy(sampleTree())

	var roots []string
	for _, r := range h.Children("") {
		roots = append(roots, r.ID)
	}
	if !reflect.DeepEqual(roots, []string{"a", "f"}) {
		t.Errorf("roots = %v", roots)
	}
	if got := h.Descendants("a"); !reflect.DeepEqual(got, []string{"b", "c", "d", "e"}) {
		t.Errorf("Descendants(a) = %v", got)
	}
	if got := h.Descendants("c"); len(got) != 0 {
		t.Errorf("leaf has descendants: %v", got)
	}
}

func TestHierarchy_NextChildCode(t *testing.T) {
	h := NewHierarchy(sampleTree())

	tests := map[string]string{"": "3", "a": "1.3", "b": "1.1.3", "c": "1.1.1.1"}
	for parent, want := range tests {
		got, err := h.NextChildCode(parent)
		if err != nil || got != want {
			t.Errorf("NextChildCode(%q) = %q, %v; want %q", parent, got, err, want)
		}
	}
	if _, err := h.NextChildCode("zz"); !errors.Is(err, ErrInvalidParent) {
		t.Errorf("unknown parent: %v", err)
	}
}

func TestHierarchy_MoveTask(t *testing.T) {
	tasks := sampleTree()
	h := NewHierarchy(tasks)

	changed, err := h.MoveTask("b", "f")
	if err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"b", "c", "d"}) {
		t.Errorf("changed = %v", changed)
	}

	want := map[string]struct {
		code  string
		level int
	}{
		"b": {"2.2", 2},
		"c": {"2.2.1", 3},
		"d": {"2.2.2", 3},
		"e": {"1.2", 2},
	}
	for id, w := range want {
		if tasks[id].WBSCode != w.code || tasks[id].Level != w.level {
			t.Errorf("%s = %s (level %d), want %s (level %d)", id, tasks[id].WBSCode, tasks[id].Level, w.code, w.level)
		}
	}
	if tasks["b"].ParentTaskID != "f" {
		t.Errorf("parent = %q", tasks["b"].ParentTaskID)
	}
	if err := h.Validate(); err != nil {
		t.Errorf("tree invalid after move: %v", err)
	}
}

func TestHierarchy_MoveTaskToRoot(t *testing.T) {
	tasks := sampleTree()
	h := NewHierarchy(tasks)

	if _, err := h.MoveTask("c", ""); err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	if tasks["c"].WBSCode != "3" || tasks["c"].Level != 1 {
		t.Errorf("c = %s level %d", tasks["c"].WBSCode, tasks["c"].Level)
	}
	if err := h.Validate(); err != nil {
		t.Errorf("tree invalid after move: %v", err)
	}
}

func TestHierarchy_MoveTaskRejectsCycles(t *testing.T) {
	for _, target := range []string{"a", "b", "c"} {
		tasks := sampleTree()
		_, err := NewHierarchy(tasks).MoveTask("a", target)
		if !errors.Is(err, ErrInvalidHierarchy) {
			t.Errorf("MoveTask(a, %s) = %v, want InvalidHierarchy", target, err)
		}
		if tasks["a"].WBSCode != "1" || tasks["b"].WBSCode != "1.1" {
			t.Error("tree changed after rejected move")
		}
	}
}

func TestHierarchy_RollUp(t *testing.T) {
	tasks := sampleTree()
	set := func(id string, start, end int) {
		s, e := day(start), day(end)
		tasks[id].StartDate, tasks[id].EndDate = &s, &e
	}
	set("c", 0, 3)
	set("d", 2, 8)
	set("e", 1, 4)
	set("g", 7, 9)

	spans := map[string]Span{}
	for _, s := range NewHierarchy(tasks).RollUp() {
		spans[s.TaskID] = s
	}

	check := func(id string, start, end time.Time, leaves int) {
		t.Helper()
		s := spans[id]
		if s.Start == nil || s.End == nil || !s.Start.Equal(start) || !s.End.Equal(end) || s.Leaves != leaves {
			t.Errorf("span %s = %+v, want %s..%s leaves %d", id, s, start, end, leaves)
		}
	}
	check("b", day(0), day(8), 2)
	check("a", day(0), day(8), 3)
	check("f", day(7), day(9), 1)
}
