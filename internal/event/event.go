package event

import "encoding/json"

// Chat Event Types - Client to Server
const (
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventNewMessage   = "new_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventListOnline   = "list_online_users"
)

// Chat Event Types - Server to Client
const (
	EventMessageDelivered    = "message_delivered"
	EventMessagesRead        = "messages_read"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventUserPresenceChanged = "user_presence_changed"
	EventOnlineUsers         = "online_users"
)

// Presence Event Types - bidirectional
const (
	EventPresenceUpdate = "presence_update"
)

// Voice Moderation Event Types - Server to Client, admin/monitor roles only
const (
	EventVoiceApprovalNeeded = "voice_approval_needed"
	EventVoiceApproved       = "voice_approved"
)

// WsEvent is the envelope for every frame on the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap marshals a payload struct into a WsEvent envelope.
func Wrap(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}
