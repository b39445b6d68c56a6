package clipboard

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdot/clipd/internal/types"
)

func textHistory(t *testing.T, maxItems int, texts ...string) *History {
	t.Helper()
	h := NewHistory(maxItems, []string{"text/plain"})
	// insert in reverse so texts[0] ends up at row 0
	for i := len(texts) - 1; i >= 0; i-- {
		require.True(t, h.InsertFront(types.NewTextBundle(texts[i]), true))
	}
	return h
}

func rows(h *History) []string {
	out := make([]string, 0, h.Len())
	for i := 0; i < h.Len(); i++ {
		out = append(out, h.BundleAt(i).Text())
	}
	return out
}

func TestInsertFrontDedup(t *testing.T) {
	h := textHistory(t, 10, "hello")

	t.Run("RejectsDuplicateOfFront", func(t *testing.T) {
		assert.False(t, h.InsertFront(types.NewTextBundle("hello"), false))
		assert.Equal(t, 1, h.Len())
	})

	t.Run("ForceOverridesDedup", func(t *testing.T) {
		assert.True(t, h.InsertFront(types.NewTextBundle("hello"), true))
		assert.Equal(t, 2, h.Len())
	})

	t.Run("ComparesAllFormats", func(t *testing.T) {
		richer := types.NewTextBundle("hello")
		richer.Set("text/html", []byte("<b>hello</b>"))
		assert.True(t, h.InsertFront(richer, false))
	})

	t.Run("DuplicateOfDeeperRowAccepted", func(t *testing.T) {
		before := h.Len()
		assert.True(t, h.InsertFront(types.NewTextBundle("hello"), false))
		assert.Equal(t, before+1, h.Len())
	})
}

func TestCapacityInvariant(t *testing.T) {
	h := NewHistory(3, []string{"text/plain"})
	inserted := []string{"a", "b", "c", "d", "e"}
	for _, s := range inserted {
		h.InsertFront(types.NewTextBundle(s), true)
		assert.LessOrEqual(t, h.Len(), 3)
	}
	// the oldest (highest rows) were evicted
	assert.Equal(t, []string{"e", "d", "c"}, rows(h))
}

func TestScenarioCapacityThree(t *testing.T) {
	h := NewHistory(3, []string{"text/plain"})
	for _, s := range []string{"A", "B", "C", "D"} {
		require.True(t, h.InsertFront(types.NewTextBundle(s), true))
	}
	require.Equal(t, []string{"D", "C", "B"}, rows(h))

	// promote B (row 2) back to the front
	require.True(t, h.MoveToFront(2))
	require.Equal(t, []string{"B", "D", "C"}, rows(h))

	fp := Fingerprint(types.NewTextBundle("D"), []string{"text/plain"})
	assert.Equal(t, 1, h.FindByFingerprint(fp))
}

func TestMoveToFront(t *testing.T) {
	t.Run("RowZeroIsNoOp", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c")
		assert.True(t, h.MoveToFront(0))
		assert.Equal(t, []string{"a", "b", "c"}, rows(h))
	})

	t.Run("PreservesRelativeOrder", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c", "d")
		assert.True(t, h.MoveToFront(2))
		assert.Equal(t, []string{"c", "a", "b", "d"}, rows(h))
	})

	t.Run("OutOfRangeFails", func(t *testing.T) {
		h := textHistory(t, 10, "a")
		assert.False(t, h.MoveToFront(1))
		assert.False(t, h.MoveToFront(-1))
		assert.Equal(t, []string{"a"}, rows(h))
	})
}

func TestMoveCyclic(t *testing.T) {
	h := textHistory(t, 10, "a", "b", "c")

	// past-the-end target wraps to row 0
	assert.True(t, h.Move(1, 3))
	assert.Equal(t, []string{"b", "a", "c"}, rows(h))

	// negative target wraps to the tail
	assert.True(t, h.Move(0, -1))
	assert.Equal(t, []string{"a", "c", "b"}, rows(h))
}

func TestRemoveAt(t *testing.T) {
	h := textHistory(t, 10, "a", "b", "c")

	assert.True(t, h.RemoveAt(1))
	assert.Equal(t, []string{"a", "c"}, rows(h))

	assert.False(t, h.RemoveAt(5))
	assert.False(t, h.RemoveAt(-1))
	assert.Equal(t, 2, h.Len())
}

func TestFindByFingerprint(t *testing.T) {
	h := textHistory(t, 10, "a", "b", "a")

	fpA := Fingerprint(types.NewTextBundle("a"), []string{"text/plain"})
	fpZ := Fingerprint(types.NewTextBundle("z"), []string{"text/plain"})

	// first match wins on collision-equal rows
	assert.Equal(t, 0, h.FindByFingerprint(fpA))
	assert.Equal(t, -1, h.FindByFingerprint(fpZ))
}

func TestSetCapacity(t *testing.T) {
	h := textHistory(t, 10, "a", "b", "c", "d")

	h.SetCapacity(2)
	assert.Equal(t, []string{"a", "b"}, rows(h))

	// growing never restores evicted items
	h.SetCapacity(10)
	assert.Equal(t, 2, h.Len())
}

func TestSortSubset(t *testing.T) {
	byText := func(a, b *Item) bool {
		return a.Bundle().Text() < b.Bundle().Text()
	}

	t.Run("OnlyListedRowsMove", func(t *testing.T) {
		h := textHistory(t, 10, "d", "x", "b", "y", "a")
		h.SortSubset([]int{0, 2, 4}, byText)
		// rows 1 and 3 kept their slots, the rest sorted among slots 0,2,4
		assert.Equal(t, []string{"a", "x", "b", "y", "d"}, rows(h))
	})

	t.Run("StableForEqualElements", func(t *testing.T) {
		h := textHistory(t, 10, "b", "a", "a", "c")
		first := h.At(1)
		second := h.At(2)
		h.SortSubset([]int{0, 1, 2, 3}, byText)
		assert.Equal(t, []string{"a", "a", "b", "c"}, rows(h))
		assert.Same(t, first, h.At(0))
		assert.Same(t, second, h.At(1))
	})

	t.Run("OutOfRangeRowIsNoOp", func(t *testing.T) {
		h := textHistory(t, 10, "b", "a")
		h.SortSubset([]int{0, 5}, byText)
		assert.Equal(t, []string{"b", "a"}, rows(h))
	})
}

func TestMoveSelection(t *testing.T) {
	t.Run("DownOneStep", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c", "d")
		changed := h.MoveSelection([]int{1, 2}, MoveDown)
		assert.Equal(t, []string{"a", "d", "b", "c"}, rows(h))
		assert.False(t, changed)
	})

	t.Run("UpAcrossFront", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c", "d")
		changed := h.MoveSelection([]int{1}, MoveUp)
		assert.Equal(t, []string{"b", "a", "c", "d"}, rows(h))
		assert.True(t, changed)
	})

	t.Run("ToStart", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c", "d")
		changed := h.MoveSelection([]int{2, 3}, MoveToStart)
		assert.Equal(t, []string{"c", "d", "a", "b"}, rows(h))
		assert.True(t, changed)
	})

	t.Run("ToEnd", func(t *testing.T) {
		h := textHistory(t, 10, "a", "b", "c", "d")
		changed := h.MoveSelection([]int{0, 1}, MoveToEnd)
		assert.Equal(t, []string{"c", "d", "a", "b"}, rows(h))
		assert.True(t, changed)
	})
}

func TestPersistenceRoundTrip(t *testing.T) {
	h := textHistory(t, 10, "one", "two", "three")
	h.At(0).Bundle().Set("text/html", []byte("<i>one</i>"))

	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)

	restored := NewHistory(10, []string{"text/plain"})
	_, err = restored.ReadFrom(&buf)
	require.NoError(t, err)

	require.Equal(t, h.Len(), restored.Len())
	for i := 0; i < h.Len(); i++ {
		assert.True(t, h.BundleAt(i).Equal(restored.BundleAt(i)), "row %d", i)
	}
}

func TestPersistenceTruncatesToCapacity(t *testing.T) {
	h := textHistory(t, 10, "a", "b", "c", "d", "e")

	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)

	small := NewHistory(3, []string{"text/plain"})
	_, err = small.ReadFrom(&buf)
	require.NoError(t, err)

	// most recent entries survive, the oldest are dropped
	assert.Equal(t, []string{"a", "b", "c"}, rows(small))
}

func TestHistoryEvents(t *testing.T) {
	h := NewHistory(2, []string{"text/plain"})
	var events []Event
	h.Subscribe(func(ev Event) { events = append(events, ev) })

	h.InsertFront(types.NewTextBundle("a"), true)
	h.InsertFront(types.NewTextBundle("b"), true)
	h.InsertFront(types.NewTextBundle("c"), true) // evicts "a"
	h.MoveToFront(1)
	h.RemoveAt(0)

	require.Len(t, events, 6)
	assert.Equal(t, Event{Kind: EventInserted, From: 0, To: 0}, events[0])
	assert.Equal(t, Event{Kind: EventInserted, From: 0, To: 0}, events[1])
	assert.Equal(t, Event{Kind: EventInserted, From: 0, To: 0}, events[2])
	assert.Equal(t, Event{Kind: EventRemoved, From: 2, To: 2}, events[3])
	assert.Equal(t, Event{Kind: EventMoved, From: 1, To: 0}, events[4])
	assert.Equal(t, Event{Kind: EventRemoved, From: 0, To: 0}, events[5])
}

func TestItemFingerprintCache(t *testing.T) {
	item := NewItem(types.NewTextBundle("hello"), []string{"text/plain"})
	fp := item.Fingerprint()
	assert.Equal(t, fp, item.Fingerprint())

	item.SetBundle(types.NewTextBundle("world"))
	assert.NotEqual(t, fp, item.Fingerprint())
}
