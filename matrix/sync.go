package matrix

import (
	"github.com/davecgh/go-spew/spew"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// start attaches the sync handlers and launches the sync loop. Called
// exactly once per process, from Restore or from a fresh login.
func (c *Client) start() {
	syncer := c.mc.Syncer.(*mautrix.DefaultSyncer)

	syncer.OnEventType(event.StateMember, c.handleMember)
	syncer.OnEventType(event.StateTopic, c.handleTopic)
	syncer.OnEventType(event.StateRoomName, c.handleRoomName)
	syncer.OnEventType(event.StateEncryption, c.handleEncryptionState)
	syncer.OnEventType(event.AccountDataDirectChats, c.handleDirectChats)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.EventEncrypted, c.handleEncrypted)

	syncer.OnSync(c.syncCallback)

	go func() {
		for {
			select {
			case <-c.quit:
				return
			default:
			}

			if err := c.mc.Sync(); err != nil {
				c.logger.Errorf("Sync() returned %v", err)
			}
		}
	}()
}

func (c *Client) syncCallback(resp *mautrix.RespSync, since string) bool {
	c.logger.Tracef("syncCallback %s", spew.Sdump(resp))

	c.Lock()
	first := !c.ready
	c.ready = true
	c.Unlock()

	if first {
		c.emit(EventTypeReady, &ReadyEvent{UserID: c.mc.UserID})
	} else {
		c.emit(EventTypeContactsUpdated, &ContactsUpdatedEvent{})
	}

	return true
}

func (c *Client) handleMember(source mautrix.EventSource, ev *event.Event) {
	member, ok := ev.Content.Parsed.(*event.MemberEventContent)
	if !ok {
		return
	}

	target := id.UserID(ev.GetStateKey())

	c.Lock()
	c.users[target] = &User{ID: target, MemberEventContent: member}

	room := c.roomLocked(ev.RoomID)
	if member.Membership == event.MembershipJoin {
		room.Members[target] = c.users[target]
	} else {
		delete(room.Members, target)
	}
	c.Unlock()

	if target != c.mc.UserID {
		return
	}

	switch member.Membership {
	case event.MembershipInvite:
		c.autoJoin(ev.RoomID)
	case event.MembershipJoin:
		c.registerDirectRoom(ev.RoomID)
	}
}

// autoJoin accepts an invite for the local user. Failure is logged and
// not retried.
func (c *Client) autoJoin(roomID id.RoomID) {
	if _, err := c.mc.JoinRoom(roomID.String(), "", nil); err != nil {
		c.logger.Errorf("auto-join of %s failed: %v", roomID, err)
		return
	}

	c.logger.Debugf("auto-joined %s", roomID)
	c.emit(EventTypeRoomJoined, &RoomJoinedEvent{RoomID: roomID})
}

// registerDirectRoom records a freshly joined one-to-one room in the
// m.direct account data. Group rooms are skipped.
func (c *Client) registerDirectRoom(roomID id.RoomID) {
	if c.IsGroup(roomID) {
		return
	}

	other, err := c.otherMember(roomID)
	if err != nil {
		c.logger.Debugf("no counterpart member in %s yet: %v", roomID, err)
		return
	}

	if err := c.addDirectRoom(other, roomID); err != nil {
		c.logger.Errorf("unable to update direct rooms for %s: %v", other, err)
		return
	}

	c.emit(EventTypeContactsUpdated, &ContactsUpdatedEvent{})
}

func (c *Client) handleTopic(source mautrix.EventSource, ev *event.Event) {
	content := topicContent{Topic: ev.Content.AsTopic().Topic}

	// the group marker is a custom field, it only exists in Raw
	if typ, ok := ev.Content.Raw["type"].(string); ok {
		content.Type = typ
	}

	c.Lock()
	room := c.roomLocked(ev.RoomID)
	room.Topic = content.Topic
	room.TopicType = content.Type
	c.Unlock()
}

func (c *Client) handleRoomName(source mautrix.EventSource, ev *event.Event) {
	name := ev.Content.AsRoomName().Name

	c.Lock()
	c.roomLocked(ev.RoomID).Name = name
	c.Unlock()
}

func (c *Client) handleEncryptionState(source mautrix.EventSource, ev *event.Event) {
	c.Lock()
	c.roomLocked(ev.RoomID).Encrypted = true
	c.Unlock()
}

func (c *Client) handleDirectChats(source mautrix.EventSource, ev *event.Event) {
	chats := ev.Content.AsDirectChats()
	if chats == nil {
		return
	}

	c.Lock()
	c.direct = make(map[id.UserID][]id.RoomID, len(*chats))
	for userID, rooms := range *chats {
		c.direct[userID] = append([]id.RoomID(nil), rooms...)
	}
	c.Unlock()

	c.emit(EventTypeContactsUpdated, &ContactsUpdatedEvent{})
}

// roomLocked returns the state holder for roomID, creating it when the
// room is seen for the first time. Callers hold c.Lock.
func (c *Client) roomLocked(roomID id.RoomID) *Room {
	room, ok := c.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Members: make(map[id.UserID]*User)}
		c.rooms[roomID] = room
	}

	return room
}
