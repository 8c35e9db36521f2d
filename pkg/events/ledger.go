package events

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Verdict tells a consumer what to do with an incoming message event.
type Verdict int

const (
	// Deliver means the event changes the known state of its id.
	Deliver Verdict = iota
	// Duplicate means the same state was already observed.
	Duplicate
	// Superseded means an active event arrived after the id's tombstone.
	Superseded
)

func (v Verdict) String() string {
	switch v {
	case Deliver:
		return "deliver"
	case Duplicate:
		return "duplicate"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

const DefaultLedgerSize = 10000

// Ledger remembers the last status seen per message id. Active ids and
// tombstones are bounded separately so a burst of new messages never
// evicts a recall.
type Ledger struct {
	mu         sync.Mutex
	active     *lru.Cache[int64, struct{}]
	tombstones *lru.Cache[int64, struct{}]
}

// NewLedger creates a ledger holding at most size active ids and size
// tombstones.
func NewLedger(size int) *Ledger {
	if size <= 0 {
		size = DefaultLedgerSize
	}
	// lru.New only fails for a non-positive size.
	active, _ := lru.New[int64, struct{}](size)
	tombstones, _ := lru.New[int64, struct{}](size)
	return &Ledger{active: active, tombstones: tombstones}
}

// Observe records e and returns how it relates to what was seen before.
// Events without an id are always delivered and never recorded.
func (l *Ledger) Observe(e Event) Verdict {
	var m Message
	switch ev := e.(type) {
	case MessagePosted:
		m = ev.Message
	case MessageRecalled:
		m = ev.Message
	case UserBanned, UserUnbanned:
		return Deliver
	default:
		return Deliver
	}
	if m.ID == nil {
		return Deliver
	}
	return l.observe(*m.ID, m.Status)
}

func (l *Ledger) observe(id int64, status string) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tombstones.Get(id); ok {
		if status == StatusRecalled {
			return Duplicate
		}
		return Superseded
	}

	if status == StatusRecalled {
		l.active.Remove(id)
		l.tombstones.Add(id, struct{}{})
		return Deliver
	}

	if _, ok := l.active.Get(id); ok {
		return Duplicate
	}
	l.active.Add(id, struct{}{})
	return Deliver
}

// Len returns the number of tracked ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active.Len() + l.tombstones.Len()
}
