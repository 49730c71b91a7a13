package messages

import (
	"context"
	"errors"
	"iter"

	"github.com/aaronromeo/imapbox/internal/imap/base"
)

// Iterator is a single-pass cursor over a UID snapshot. Each Next fetches
// one message. Messages expunged after the snapshot are skipped.
//
//	it, err := client.Iterate(ctx)
//	for it.Next(ctx) {
//		msg := it.Message()
//	}
//	err = it.Err()
type Iterator struct {
	uids  []uint32
	pos   int
	fetch func(ctx context.Context, uid uint32) (*Message, error)
	cur   *Message
	err   error
}

// FromMessages iterates over messages already in memory.
func FromMessages(msgs ...*Message) *Iterator {
	uids := make([]uint32, 0, len(msgs))
	byUID := make(map[uint32]*Message, len(msgs))
	for _, msg := range msgs {
		uids = append(uids, msg.UID)
		byUID[msg.UID] = msg
	}
	return &Iterator{
		uids: uids,
		fetch: func(_ context.Context, uid uint32) (*Message, error) {
			return byUID[uid], nil
		},
	}
}

// Next advances to the next message. It returns false at the end of the
// snapshot or on the first error.
func (it *Iterator) Next(ctx context.Context) bool {
	it.cur = nil
	if it.err != nil {
		return false
	}
	for it.pos < len(it.uids) {
		uid := it.uids[it.pos]
		it.pos++

		msg, err := it.fetch(ctx, uid)
		if errors.Is(err, base.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			it.err = err
			return false
		}
		it.cur = msg
		return true
	}
	return false
}

// Message returns the message Next advanced to.
func (it *Iterator) Message() *Message {
	return it.cur
}

func (it *Iterator) Err() error {
	return it.err
}

// UIDs returns the snapshot taken when the iterator was created.
func (it *Iterator) UIDs() []uint32 {
	return append([]uint32(nil), it.uids...)
}

// Len is the size of the snapshot.
func (it *Iterator) Len() int {
	return len(it.uids)
}

// All adapts the iterator to a range-over-func sequence of (uid, message).
// A failure ends the sequence; check Err after the loop.
func (it *Iterator) All(ctx context.Context) iter.Seq2[uint32, *Message] {
	return func(yield func(uint32, *Message) bool) {
		for it.Next(ctx) {
			if !yield(it.cur.UID, it.cur) {
				return
			}
		}
	}
}

// Collect drains the iterator.
func (it *Iterator) Collect(ctx context.Context) ([]*Message, error) {
	var msgs []*Message
	for it.Next(ctx) {
		msgs = append(msgs, it.cur)
	}
	return msgs, it.Err()
}
