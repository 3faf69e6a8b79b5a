package matrix

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type User struct {
	ID id.UserID
	*event.MemberEventContent
}

// Room mirrors the slice of room state the views need: name, the topic
// marker used for classification, and the joined members. All fields
// are guarded by the client's mutex; writers hold c.Lock, readers
// c.RLock.
type Room struct {
	ID        id.RoomID
	Name      string
	Topic     string
	TopicType string
	Encrypted bool
	Members   map[id.UserID]*User
}

// topicContent is the m.room.topic content written by CreateGroup. The
// extra "type" field is the group marker.
type topicContent struct {
	Topic string `json:"topic"`
	Type  string `json:"type,omitempty"`
}

const topicTypeGroup = "group"

// Contact is the sidebar projection of a direct room: the counterpart
// user plus the room that joins us to them.
type Contact struct {
	RoomID      id.RoomID
	UserID      id.UserID
	DisplayName string
	AvatarURL   string
}

// Group is the sidebar projection of a group room.
type Group struct {
	RoomID id.RoomID
	Name   string
}

// RoomHeader is the chat-header projection: the group name, or the
// counterpart profile for a direct room.
type RoomHeader struct {
	RoomID      id.RoomID
	IsGroup     bool
	Encrypted   bool
	DisplayName string
	UserID      id.UserID
	AvatarURL   string
}
