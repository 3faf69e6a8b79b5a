package matrix

import (
	"maunium.net/go/mautrix/id"
)

// Event is the single fan-out unit flowing over the client's event
// channel. Type names the payload carried in Data.
type Event struct {
	Type string
	Data interface{}
}

const (
	EventTypeReady           = "ready"
	EventTypeDirectMessage   = "direct_message"
	EventTypeChannelMessage  = "channel_message"
	EventTypeRoomJoined      = "room_joined"
	EventTypeContactsUpdated = "contacts_updated"
	EventTypeLogout          = "logout"
)

// ReadyEvent fires once, when the first sync completes and the
// connection handle becomes usable.
type ReadyEvent struct {
	UserID id.UserID
}

type DirectMessageEvent struct {
	RoomID  id.RoomID
	Message Message
}

type ChannelMessageEvent struct {
	RoomID  id.RoomID
	Message Message
}

type RoomJoinedEvent struct {
	RoomID id.RoomID
}

// ContactsUpdatedEvent fires when the direct-rooms account data or a
// relevant room state change should refresh the sidebar lists.
type ContactsUpdatedEvent struct{}

type LogoutEvent struct{}

func (c *Client) emit(typ string, data interface{}) {
	select {
	case c.eventChan <- &Event{Type: typ, Data: data}:
	default:
		c.logger.Warnf("event channel full, dropping %s event", typ)
	}
}

// Events exposes the inbound event stream. One consumer is expected.
func (c *Client) Events() <-chan *Event {
	return c.eventChan
}
