package clipboard

import (
	"fmt"
	"io"
	"sort"

	"github.com/clipdot/clipd/internal/types"
)

// EventKind identifies a history change notification.
type EventKind int

const (
	EventInserted EventKind = iota
	EventRemoved
	EventMoved
	EventDataChanged
)

// Event describes one history mutation. Inserted and Removed carry the
// affected row range in From..To; Moved carries the source and target
// rows; DataChanged carries the row in Row.
type Event struct {
	Kind EventKind
	From int
	To   int
	Row  int
}

// Direction selects how MoveSelection relocates the chosen rows.
type Direction int

const (
	MoveUp Direction = iota
	MoveDown
	MoveToStart
	MoveToEnd
)

// History is the ordered, capacity-bounded collection of clipboard
// items. Row 0 is the most recently promoted entry and stands for the
// current clipboard contents; higher rows are older.
//
// History is not internally synchronized: it assumes a single mutator
// goroutine (the daemon's apply loop). A host sharing one instance
// across goroutines must add its own locking around every operation.
type History struct {
	items     []*Item
	maxItems  int
	formats   []string // formats covered by item fingerprints
	observers []func(Event)
}

// NewHistory creates an empty history holding at most maxItems
// entries. formats is the set item fingerprints are computed over.
func NewHistory(maxItems int, formats []string) *History {
	if maxItems < 0 {
		maxItems = 0
	}
	return &History{maxItems: maxItems, formats: formats}
}

// Subscribe registers an observer invoked synchronously for every
// history mutation.
func (h *History) Subscribe(fn func(Event)) {
	h.observers = append(h.observers, fn)
}

func (h *History) emit(ev Event) {
	for _, fn := range h.observers {
		fn(ev)
	}
}

// Len returns the number of items.
func (h *History) Len() int {
	return len(h.items)
}

// MaxItems returns the configured capacity.
func (h *History) MaxItems() int {
	return h.maxItems
}

// At returns the item at row, or nil when out of range.
func (h *History) At(row int) *Item {
	if row < 0 || row >= len(h.items) {
		return nil
	}
	return h.items[row]
}

// BundleAt returns the bundle at row, or nil when out of range.
func (h *History) BundleAt(row int) *types.Bundle {
	if it := h.At(row); it != nil {
		return it.Bundle()
	}
	return nil
}

// InsertFront adds bundle as the new row 0 and trims the tail down to
// capacity. Without force the insert is rejected when the history is
// non-empty and bundle is exactly equal (all formats compared) to the
// current row 0; the history is left untouched and false is returned.
func (h *History) InsertFront(bundle *types.Bundle, force bool) bool {
	return h.Insert(bundle, 0, force)
}

// Insert adds bundle at row (clamped to the valid range). The dedup
// check against row 0 applies regardless of the target row.
func (h *History) Insert(bundle *types.Bundle, row int, force bool) bool {
	if !force && len(h.items) > 0 && h.items[0].Bundle().Equal(bundle) {
		return false
	}

	if row < 0 {
		row = 0
	} else if row > len(h.items) {
		row = len(h.items)
	}
	item := NewItem(bundle, h.formats)
	h.items = append(h.items, nil)
	copy(h.items[row+1:], h.items[row:])
	h.items[row] = item
	h.emit(Event{Kind: EventInserted, From: row, To: row})

	h.trim()
	return true
}

// trim evicts oldest items until the length fits the capacity.
func (h *History) trim() {
	for len(h.items) > h.maxItems {
		last := len(h.items) - 1
		h.items = h.items[:last]
		h.emit(Event{Kind: EventRemoved, From: last, To: last})
	}
}

// RemoveAt deletes the item at row. Out-of-range rows are a no-op
// returning false.
func (h *History) RemoveAt(row int) bool {
	if row < 0 || row >= len(h.items) {
		return false
	}
	h.items = append(h.items[:row], h.items[row+1:]...)
	h.emit(Event{Kind: EventRemoved, From: row, To: row})
	return true
}

// Clear removes every item.
func (h *History) Clear() {
	if len(h.items) == 0 {
		return
	}
	last := len(h.items) - 1
	h.items = nil
	h.emit(Event{Kind: EventRemoved, From: 0, To: last})
}

// RowNumber normalizes row to a valid index. With cycle an
// out-of-range row wraps around to the other end, otherwise it clamps.
// Returns -1 when the history is empty.
func (h *History) RowNumber(row int, cycle bool) int {
	n := len(h.items)
	if n == 0 {
		return -1
	}
	switch {
	case row >= n:
		if cycle {
			return 0
		}
		return n - 1
	case row < 0:
		if cycle {
			return n - 1
		}
		return 0
	default:
		return row
	}
}

// Move relocates the item at pos to newpos, preserving the relative
// order of everything else. Out-of-range positions wrap around.
func (h *History) Move(pos, newpos int) bool {
	from := h.RowNumber(pos, true)
	to := h.RowNumber(newpos, true)
	if from == -1 || to == -1 {
		return false
	}
	if from == to {
		return true
	}

	item := h.items[from]
	if from < to {
		copy(h.items[from:], h.items[from+1:to+1])
	} else {
		copy(h.items[to+1:], h.items[to:from])
	}
	h.items[to] = item
	h.emit(Event{Kind: EventMoved, From: from, To: to})
	return true
}

// MoveToFront promotes the item at row to row 0. Fails only when row
// is out of range; MoveToFront(0) is an order-preserving no-op.
func (h *History) MoveToFront(row int) bool {
	if row < 0 || row >= len(h.items) {
		return false
	}
	return h.Move(row, 0)
}

// MoveSelection relocates the items at rows one step (MoveUp,
// MoveDown) or to the boundary (MoveToStart, MoveToEnd). Rows are
// processed ascending for Up/Start and descending for Down/End so
// earlier moves never invalidate later targets. The return value
// reports whether any item crossed row 0 or the tail boundary, the
// signal to refresh the externally visible clipboard.
func (h *History) MoveSelection(rows []int, dir Direction) bool {
	list := append([]int(nil), rows...)
	if dir == MoveDown || dir == MoveToEnd {
		sort.Sort(sort.Reverse(sort.IntSlice(list)))
	} else {
		sort.Ints(list)
	}

	edge := false
	for i, d := 0, 0; i < len(list); i++ {
		from := list[i] + d

		var to int
		switch dir {
		case MoveDown:
			to = from + 1
		case MoveUp:
			to = from - 1
		case MoveToEnd:
			to = len(h.items) - i - 1
		default: // MoveToStart
			to = i
		}

		if to < 0 {
			d--
		} else if to >= len(h.items) {
			d++
		}

		if !h.Move(from, to) {
			return false
		}
		if !edge {
			edge = to == 0 || from == 0 || to == len(h.items)
		}
	}
	return edge
}

// SortSubset reorders only the items at rows relative to each other
// using less; rows not listed never move and the occupied slot set is
// unchanged. The sort is stable for equal elements. Any out-of-range
// row makes the whole call a no-op.
func (h *History) SortSubset(rows []int, less func(a, b *Item) bool) {
	type slot struct {
		row  int
		item *Item
	}
	list := make([]slot, 0, len(rows))
	slots := make([]int, 0, len(rows))
	for _, row := range rows {
		if row < 0 || row >= len(h.items) {
			return
		}
		list = append(list, slot{row: row, item: h.items[row]})
		slots = append(slots, row)
	}

	sort.Ints(slots)
	sort.SliceStable(list, func(i, j int) bool {
		return less(list[i].item, list[j].item)
	})

	for i, s := range list {
		target := slots[i]
		if s.row != target {
			h.items[target] = s.item
			h.emit(Event{Kind: EventDataChanged, Row: target})
		}
	}
}

// FindByFingerprint returns the lowest row whose item fingerprint
// equals fp, or -1 when no item matches.
func (h *History) FindByFingerprint(fp uint64) int {
	for i, item := range h.items {
		if item.Fingerprint() == fp {
			return i
		}
	}
	return -1
}

// SetCapacity changes the maximum item count, immediately evicting
// from the tail when the current length exceeds it.
func (h *History) SetCapacity(max int) {
	if max < 0 {
		max = 0
	}
	h.maxItems = max
	h.trim()
}

// appendItem adds an item at the tail without dedup or trimming; the
// load path uses it to restore persisted entries in order.
func (h *History) appendItem(item *Item) {
	h.items = append(h.items, item)
	row := len(h.items) - 1
	h.emit(Event{Kind: EventInserted, From: row, To: row})
}

// WriteTo serializes the history: a big-endian uint32 item count, then
// each item's bundle front-to-back in the bundle stream layout.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if err := writeCount(w, uint32(len(h.items)), &total); err != nil {
		return total, fmt.Errorf("failed to write item count: %w", err)
	}
	for i, item := range h.items {
		n, err := item.Bundle().WriteTo(w)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to write item %d: %w", i, err)
		}
	}
	return total, nil
}

// ReadFrom restores items from a stream produced by WriteTo, appending
// at most capacity minus current length entries in stream order. Any
// surplus stored items are the oldest and are dropped unread.
func (h *History) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	count, err := readCount(r, &total)
	if err != nil {
		return total, fmt.Errorf("failed to read item count: %w", err)
	}

	n := int(count)
	if n > h.maxItems {
		n = h.maxItems
	}
	n -= len(h.items)

	for i := 0; i < n; i++ {
		bundle, err := types.ReadBundleFrom(r)
		if err != nil {
			return total, fmt.Errorf("failed to read item %d: %w", i, err)
		}
		h.appendItem(NewItem(bundle, h.formats))
	}
	return total, nil
}

func writeCount(w io.Writer, v uint32, total *int64) error {
	buf := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	n, err := w.Write(buf)
	*total += int64(n)
	return err
}

func readCount(r io.Reader, total *int64) (uint32, error) {
	var buf [4]byte
	n, err := io.ReadFull(r, buf[:])
	*total += int64(n)
	if err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}
