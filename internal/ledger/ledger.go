// Package ledger keeps the bounded list of alert identifiers that have
// already been handled.
//
// A Ledger is a working copy: load it once at the start of a poll cycle,
// consult and extend it while processing, and persist Entries once at the end.
// Additions are visible to Contains immediately, so an alert created earlier in
// the same cycle is never processed twice.
package ledger

// MaxEntries is the number of most recent identifiers kept on persist.
const MaxEntries = 10000

// Ledger is an insertion-ordered set of raw alert identifiers. It is not safe
// for concurrent use; the poll cycle owns it.
type Ledger struct {
	ids   []string
	index map[string]struct{}
	max   int
}

// New builds a working copy from a persisted list, oldest first. Repeated
// identifiers keep their first position.
func New(ids []string) *Ledger {
	return NewWithLimit(ids, MaxEntries)
}

// NewWithLimit is New with a custom eviction bound.
func NewWithLimit(ids []string, limit int) *Ledger {
	l := &Ledger{
		ids:   make([]string, 0, len(ids)),
		index: make(map[string]struct{}, len(ids)),
		max:   limit,
	}
	for _, id := range ids {
		l.Add(id)
	}
	return l
}

// Contains reports whether id has been handled.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Add appends id unless it is already present.
func (l *Ledger) Add(id string) {
	if l.Contains(id) {
		return
	}
	l.index[id] = struct{}{}
	l.ids = append(l.ids, id)
}

// Len returns the number of identifiers in the working copy, before eviction.
func (l *Ledger) Len() int {
	return len(l.ids)
}

// Entries returns the list to persist: the most recent max identifiers,
// oldest first.
func (l *Ledger) Entries() []string {
	return Trim(l.ids, l.max)
}

// Trim keeps the last limit entries of ids, preserving their order. The
// result never aliases ids.
func Trim(ids []string, limit int) []string {
	start := 0
	if limit >= 0 && len(ids) > limit {
		start = len(ids) - limit
	}
	out := make([]string, len(ids)-start)
	copy(out, ids[start:])
	return out
}
