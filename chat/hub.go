package chat

import (
	"context"
	"log"
	"sync"
)

// Session is one connected relay client. Deliver must not block: slow
// sessions lose frames rather than stall the room.
type Session interface {
	UserID() string
	Deliver(env Envelope)
}

// room is one mission's membership. Its lock spans persist plus fan-out for
// a send, so broadcast order within the room follows persistence order
// without stalling traffic in other rooms.
type room struct {
	mu      sync.Mutex
	members map[Session]struct{}
}

// Hub is the in-process room registry. Membership lives only in memory and is
// rebuilt empty on restart; clients recover history over HTTP when they
// reconnect. Room entries are never pruned: one small struct per mission
// chatted in during the process lifetime.
type Hub struct {
	repo Repository

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub creates a hub persisting messages through repo.
func NewHub(repo Repository) *Hub {
	return &Hub{
		repo:  repo,
		rooms: make(map[string]*room),
	}
}

// room returns the mission's room, creating it on first use. The registry
// lock is held only for the map access, never across room work.
func (h *Hub) room(missionID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[missionID]
	if !ok {
		r = &room{members: make(map[Session]struct{})}
		h.rooms[missionID] = r
	}
	return r
}

// Join adds the session to the mission's room. Joining twice is a no-op.
func (h *Hub) Join(missionID string, s Session) {
	r := h.room(missionID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[s] = struct{}{}
}

// Leave removes the session from every room it joined.
func (h *Hub) Leave(s Session) {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		delete(r.members, s)
		r.mu.Unlock()
	}
}

// SendParams is the payload of a send_message frame.
type SendParams struct {
	MissionID  string `json:"missionId"`
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
}

// Send persists the message and fans it out to the mission's room, the
// sender's own sessions included. On a persistence failure only the sender
// learns about it and nothing is broadcast.
func (h *Hub) Send(ctx context.Context, s Session, params SendParams) {
	r := h.room(params.MissionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, err := h.repo.Create(ctx, CreateParams{
		Content:    params.Content,
		MissionID:  params.MissionID,
		SenderID:   s.UserID(),
		ReceiverID: params.ReceiverID,
	})
	if err != nil {
		log.Printf("chat: persist message for mission %s: %v", params.MissionID, err)
		s.Deliver(Envelope{Event: EventMessageError, Data: map[string]string{"error": "Failed to send message"}})
		return
	}

	r.broadcastLocked(Envelope{Event: EventNewMessage, Data: msg})
}

// MarkRead flips the user's unread messages in the mission and tells the room.
func (h *Hub) MarkRead(ctx context.Context, s Session, missionID string) {
	r := h.room(missionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := h.repo.MarkRead(ctx, missionID, s.UserID()); err != nil {
		log.Printf("chat: mark read for mission %s: %v", missionID, err)
		return
	}

	r.broadcastLocked(Envelope{
		Event: EventMessagesRead,
		Data:  map[string]string{"userId": s.UserID()},
	})
}

func (r *room) broadcastLocked(env Envelope) {
	for member := range r.members {
		member.Deliver(env)
	}
}
