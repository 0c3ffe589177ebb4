// Package reconcile applies create, update and delete events to an ordered,
// newest-first list of messages.
//
// Every function here is a pure transform: the input slice is never written
// to, and when an event does not apply the input is returned as is. Message
// ids are unique within any list produced by these functions.
package reconcile

import "github.com/johndosdos/chatsync/internal/model"

// indexOf returns the position of the message with the given id, or -1.
func indexOf(list []model.Message, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether list holds a message with the given id.
func Contains(list []model.Message, id string) bool {
	return indexOf(list, id) >= 0
}

// ApplyCreate prepends msg to list. A message whose id is already present is
// a duplicate (for example the confirmed echo of an optimistic create) and
// leaves list unchanged.
func ApplyCreate(list []model.Message, msg model.Message) []model.Message {
	if indexOf(list, msg.ID) >= 0 {
		return list
	}

	out := make([]model.Message, 0, len(list)+1)
	out = append(out, msg)
	return append(out, list...)
}

// ApplyDelete removes the message with the given id. Deleting an absent id
// is a no-op.
func ApplyDelete(list []model.Message, id string) []model.Message {
	i := indexOf(list, id)
	if i < 0 {
		return list
	}

	out := make([]model.Message, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

// ApplyUpdate replaces the whole record that shares msg's id, keeping its
// position. Updates for ids not in list are ignored; they may arrive before
// the matching create.
func ApplyUpdate(list []model.Message, msg model.Message) []model.Message {
	i := indexOf(list, msg.ID)
	if i < 0 {
		return list
	}

	out := make([]model.Message, len(list))
	copy(out, list)
	out[i] = msg
	return out
}

// ApplyEvent dispatches ev on its mutation and reports whether the list
// changed. Unknown mutations leave the list unchanged.
func ApplyEvent(list []model.Message, ev model.Event) ([]model.Message, bool) {
	var out []model.Message
	switch ev.Mutation {
	case model.Created:
		out = ApplyCreate(list, ev.Node)
	case model.Updated:
		out = ApplyUpdate(list, ev.Node)
	case model.Deleted:
		out = ApplyDelete(list, ev.Node.ID)
	default:
		return list, false
	}
	return out, !sameSlice(out, list)
}

// Apply is ApplyEvent without the change report.
func Apply(list []model.Message, ev model.Event) []model.Message {
	out, _ := ApplyEvent(list, ev)
	return out
}

// sameSlice reports whether a and b are the same slice value. Every Apply*
// either returns its input or a freshly allocated slice, so identity is
// enough to tell a no-op from a change.
func sameSlice(a, b []model.Message) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
