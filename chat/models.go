// Package chat stores mission conversations and relays them live to the
// participants connected over websockets.
package chat

import "time"

// Message mirrors the messages table. Sender carries the sender's minimal
// profile on reads that join it.
type Message struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	MissionID  string      `json:"missionId"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId"`
	IsRead     bool        `json:"isRead"`
	CreatedAt  time.Time   `json:"createdAt"`
	Sender     *SenderInfo `json:"sender,omitempty"`
}

// SenderInfo is the slice of the sender's profile shipped with each relayed
// message.
type SenderInfo struct {
	ID           string  `json:"id"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// CreateParams enumerates the fields persisted for a new message.
type CreateParams struct {
	Content    string
	MissionID  string
	SenderID   string
	ReceiverID string
}

// Envelope is the wire frame exchanged over the relay, both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Relay event names.
const (
	EventJoinMission  = "join_mission"
	EventSendMessage  = "send_message"
	EventNewMessage   = "new_message"
	EventMarkRead     = "mark_read"
	EventMessagesRead = "messages_read"
	EventMessageError = "message_error"
)
