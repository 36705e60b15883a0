// Copyright 2024-2026 Aiku AI

package bridge

// Direction says which side of a linked pair is behind and must receive
// pushed messages during a sync pass.
type Direction int

const (
	// DirectionNone means both sequences have equal length; nothing to push.
	DirectionNone Direction = iota
	// DirectionToThread pushes surplus discussion comments to the thread.
	DirectionToThread
	// DirectionToDiscussion pushes surplus thread messages to the discussion.
	DirectionToDiscussion
)

func (d Direction) String() string {
	switch d {
	case DirectionToThread:
		return "to_thread"
	case DirectionToDiscussion:
		return "to_discussion"
	default:
		return "none"
	}
}

// Diff compares the oldest-first comment and thread-message sequences of a
// linked pair and returns the direction plus the surplus messages to push,
// in original order.
//
// The diff is purely position-based: the shorter side is behind, and the
// surplus is the tail of the longer side starting at the shorter side's
// length. That assumes neither sequence is ever edited, deleted, or
// reordered, and that previously pushed messages permanently occupy the
// front of the behind sequence. A deletion on either side silently shifts
// positions and causes duplication or loss on the next pass.
func Diff(comments, messages []Message) (Direction, []Message) {
	switch {
	case len(comments) == len(messages):
		return DirectionNone, nil
	case len(comments) > len(messages):
		return DirectionToThread, comments[len(messages):]
	default:
		return DirectionToDiscussion, messages[len(comments):]
	}
}
