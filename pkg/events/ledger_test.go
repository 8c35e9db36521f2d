package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func posted(id int64) Event {
	return MessagePosted{Message: Message{ID: &id, Status: StatusActive, ConversationID: "general"}}
}

var timeZero = time.Time{}

func recalled(id int64) Event {
	return NewRecall(id, "general", "alice", nil, timeZero)
}

func TestLedgerSuppressesDuplicates(t *testing.T) {
	l := NewLedger(10)

	assert.Equal(t, Deliver, l.Observe(posted(1)))
	assert.Equal(t, Duplicate, l.Observe(posted(1)))
	assert.Equal(t, Deliver, l.Observe(recalled(1)))
	assert.Equal(t, Duplicate, l.Observe(recalled(1)))
}

func TestLedgerNeverResurrectsRecalled(t *testing.T) {
	l := NewLedger(10)

	// Tombstone for an id never seen active.
	assert.Equal(t, Deliver, l.Observe(recalled(7)))
	assert.Equal(t, Superseded, l.Observe(posted(7)))
	assert.Equal(t, Duplicate, l.Observe(recalled(7)))
}

func TestLedgerDeliversEventsWithoutID(t *testing.T) {
	l := NewLedger(10)
	ev := MessagePosted{Message: Message{Status: StatusActive}}

	assert.Equal(t, Deliver, l.Observe(ev))
	assert.Equal(t, Deliver, l.Observe(ev))
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, Deliver, l.Observe(UserBanned{Username: "bob"}))
}

func TestLedgerEvictsLeastRecentlyUsed(t *testing.T) {
	l := NewLedger(2)

	l.Observe(posted(1))
	l.Observe(posted(2))
	// Touch 1 so 2 becomes the oldest.
	assert.Equal(t, Duplicate, l.Observe(posted(1)))
	l.Observe(posted(3))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, Duplicate, l.Observe(posted(1)))
	assert.Equal(t, Deliver, l.Observe(posted(2)))
}

func TestLedgerKeepsTombstonesUnderActiveChurn(t *testing.T) {
	l := NewLedger(2)

	assert.Equal(t, Deliver, l.Observe(posted(1)))
	assert.Equal(t, Deliver, l.Observe(recalled(1)))
	assert.Equal(t, Deliver, l.Observe(posted(2)))
	assert.Equal(t, Deliver, l.Observe(posted(3)))
	assert.Equal(t, Deliver, l.Observe(posted(4)))

	// A replayed active event for the recalled id stays suppressed.
	assert.Equal(t, Superseded, l.Observe(posted(1)))
	assert.Equal(t, Duplicate, l.Observe(recalled(1)))
}

func TestLedgerEvictsOldestTombstone(t *testing.T) {
	l := NewLedger(2)

	l.Observe(recalled(1))
	l.Observe(recalled(2))
	l.Observe(recalled(3))

	assert.Equal(t, Deliver, l.Observe(posted(1)))
	assert.Equal(t, Superseded, l.Observe(posted(3)))
}
