// Package roster maintains the live participant list of a conference,
// fed by participant events from the event stream.
package roster

import (
	"sync"

	"confstream/client/internal/domain"
)

// EventType describes how the roster changed.
type EventType int

const (
	// EventAdded reports a single participant joining.
	EventAdded EventType = iota
	// EventUpdated reports changed properties of one participant.
	EventUpdated
	// EventDeleted reports a single participant leaving.
	EventDeleted
	// EventReloaded reports a wholesale replacement after a resync.
	EventReloaded
)

// Event is one roster change. Participant is set for Added, Updated and
// Deleted; Participants carries the full list for Reloaded.
type Event struct {
	Type         EventType
	Participant  domain.Participant
	Participants []domain.Participant
}

// Roster is the ordered participant list. During a server resync,
// mutations accumulate silently and are published as one Reloaded event
// when the sync ends.
type Roster struct {
	mu          sync.Mutex
	currentID   string
	currentName string
	visible     []domain.Participant
	buffer      []domain.Participant
	syncing     bool
	subscribers map[uint64]chan Event
	nextSub     uint64
}

// New builds a roster tracking the local participant by id so its
// display name can be surfaced separately.
func New(currentID, currentName string) *Roster {
	return &Roster{
		currentID:   currentID,
		currentName: currentName,
		subscribers: make(map[uint64]chan Event),
	}
}

// Participants returns a copy of the visible list in join order.
func (r *Roster) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, len(r.visible))
	copy(out, r.visible)
	return out
}

// CurrentName returns the local participant's display name, which may
// have been rewritten by the server.
func (r *Roster) CurrentName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentName
}

// IsCurrent reports whether id addresses the local participant.
func (r *Roster) IsCurrent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return id == r.currentID
}

// Subscribe registers a receiver for roster changes. The returned func
// removes the subscription.
func (r *Roster) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, 16)
	r.subscribers[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// AddParticipant inserts p, or replaces an existing entry with the same
// id. A replacement publishes Updated rather than Added, so the list
// never holds duplicate ids.
func (r *Roster) AddParticipant(p domain.Participant) {
	r.mu.Lock()
	r.trackCurrent(p)
	list := r.target()
	replaced := false
	for i := range *list {
		if (*list)[i].ID == p.ID {
			(*list)[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		*list = append(*list, p)
	}
	ev := Event{Type: EventAdded, Participant: p}
	if replaced {
		ev.Type = EventUpdated
	}
	r.publishLocked(ev)
	r.mu.Unlock()
}

// UpdateParticipant replaces the entry with p's id. Unknown ids are
// ignored and reported as false.
func (r *Roster) UpdateParticipant(p domain.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackCurrent(p)
	list := r.target()
	for i := range *list {
		if (*list)[i].ID == p.ID {
			(*list)[i] = p
			r.publishLocked(Event{Type: EventUpdated, Participant: p})
			return true
		}
	}
	return false
}

// RemoveParticipant deletes the entry with the given id. Unknown ids are
// ignored and reported as false.
func (r *Roster) RemoveParticipant(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.target()
	for i := range *list {
		if (*list)[i].ID == id {
			removed := (*list)[i]
			*list = append((*list)[:i], (*list)[i+1:]...)
			r.publishLocked(Event{Type: EventDeleted, Participant: removed})
			return true
		}
	}
	return false
}

// SetSyncing toggles resync mode. Entering it clears the staging buffer;
// leaving it swaps the buffer in and publishes one Reloaded event.
func (r *Roster) SetSyncing(syncing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if syncing == r.syncing {
		return
	}
	r.syncing = syncing
	if syncing {
		r.buffer = nil
		return
	}
	r.visible = r.buffer
	r.buffer = nil
	out := make([]domain.Participant, len(r.visible))
	copy(out, r.visible)
	r.publishLocked(Event{Type: EventReloaded, Participants: out})
}

// Clear empties the roster and publishes an empty Reloaded event. Used
// when the session disconnects.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = nil
	r.buffer = nil
	r.syncing = false
	r.publishLocked(Event{Type: EventReloaded})
}

// IsPresenting reports whether the local participant holds the
// presentation floor.
func (r *Roster) IsPresenting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.visible {
		if p.ID == r.currentID {
			return bool(p.IsPresenting)
		}
	}
	return false
}

func (r *Roster) target() *[]domain.Participant {
	if r.syncing {
		return &r.buffer
	}
	return &r.visible
}

func (r *Roster) trackCurrent(p domain.Participant) {
	if p.ID == r.currentID {
		r.currentName = p.DisplayName
	}
}

// publishLocked fans ev out to subscribers, except while syncing. Slow
// subscribers drop events rather than stall the stream.
func (r *Roster) publishLocked(ev Event) {
	if r.syncing && ev.Type != EventReloaded {
		return
	}
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
