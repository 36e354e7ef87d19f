package lifecycle

import (
	"testing"
)

func TestDescendantsWalksTransitively(t *testing.T) {
	table := newFakeTable()
	table.add(1, 0, "root", 0)
	table.add(2, 1, "child-a", 0)
	table.add(3, 1, "child-b", 0)
	table.add(4, 2, "grandchild", 0)
	table.add(9, 0, "unrelated", 0)

	got := Descendants(table, 1)
	if len(got) != 3 {
		t.Fatalf("descendants: got %v", got)
	}
	pos := make(map[int]int, len(got))
	for i, pid := range got {
		pos[pid] = i
	}
	for _, pid := range []int{2, 3, 4} {
		if _, ok := pos[pid]; !ok {
			t.Fatalf("missing descendant %d in %v", pid, got)
		}
	}
	if pos[4] < pos[2] {
		t.Fatalf("grandchild listed before its parent: %v", got)
	}
}

func TestDescendantsEmptyForLeaf(t *testing.T) {
	table := newFakeTable()
	table.add(1, 0, "root", 0)
	if got := Descendants(table, 1); len(got) != 0 {
		t.Fatalf("expected no descendants, got %v", got)
	}
}

func TestDescendantsIgnoresDeadChildren(t *testing.T) {
	table := newFakeTable()
	table.add(1, 0, "root", 0)
	p := table.add(2, 1, "dead-child", 0)
	p.alive = false
	if got := Descendants(table, 1); len(got) != 0 {
		t.Fatalf("dead child included: %v", got)
	}
}
