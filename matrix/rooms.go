package matrix

import (
	"github.com/pkg/errors"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const accountDataDirect = "m.direct"

// IsGroup reports whether the room carries the group marker: an
// m.room.topic state event whose content has type == "group". Topic
// presence alone does not make a group.
func (c *Client) IsGroup(roomID id.RoomID) bool {
	c.RLock()
	room, ok := c.rooms[roomID]
	if ok {
		group := room.TopicType == topicTypeGroup
		c.RUnlock()

		return group
	}
	c.RUnlock()

	// room not seen through sync yet, ask the server
	var content topicContent
	if err := c.mc.StateEvent(roomID, event.StateTopic, "", &content); err != nil {
		return false
	}

	return content.Type == topicTypeGroup
}

// IsDirect reports whether the room id appears in any value list of the
// direct-rooms map.
func (c *Client) IsDirect(roomID id.RoomID) bool {
	c.RLock()
	defer c.RUnlock()

	for _, rooms := range c.direct {
		for _, r := range rooms {
			if r == roomID {
				return true
			}
		}
	}

	return false
}

// DirectRooms returns a copy of the cached counterpart-user to room-ids
// map.
func (c *Client) DirectRooms() map[id.UserID][]id.RoomID {
	c.RLock()
	defer c.RUnlock()

	out := make(map[id.UserID][]id.RoomID, len(c.direct))
	for userID, rooms := range c.direct {
		out[userID] = append([]id.RoomID(nil), rooms...)
	}

	return out
}

// fetchDirectRooms reads the m.direct account data from the server.
// A missing event comes back as an empty map.
func (c *Client) fetchDirectRooms() map[id.UserID][]id.RoomID {
	direct := make(map[id.UserID][]id.RoomID)
	if err := c.mc.GetAccountData(accountDataDirect, &direct); err != nil {
		c.logger.Debugf("no direct rooms account data: %v", err)
		return make(map[id.UserID][]id.RoomID)
	}

	return direct
}

// addDirectRoom merges {userID: [..., roomID]} into the m.direct
// account data and writes the full object back. The write is
// last-writer-wins; a concurrent writer in another session can drop
// entries.
func (c *Client) addDirectRoom(userID id.UserID, roomID id.RoomID) error {
	c.directMu.Lock()
	defer c.directMu.Unlock()

	direct := c.fetchDirectRooms()

	for _, r := range direct[userID] {
		if r == roomID {
			return nil
		}
	}

	direct[userID] = append(direct[userID], roomID)

	if err := c.mc.SetAccountData(accountDataDirect, direct); err != nil {
		return errors.Wrap(err, "unable to write direct rooms account data")
	}

	c.Lock()
	c.direct = direct
	c.Unlock()

	return nil
}

// otherMember returns the joined member that is not the local user.
func (c *Client) otherMember(roomID id.RoomID) (id.UserID, error) {
	resp, err := c.mc.JoinedMembers(roomID)
	if err != nil {
		return "", errors.Wrap(err, "unable to list joined members")
	}

	for userID := range resp.Joined {
		if userID != c.mc.UserID {
			return userID, nil
		}
	}

	return "", errors.New("no counterpart member")
}

// Contacts projects the direct-rooms map into the sidebar contact list:
// one entry per direct room whose counterpart is known, group-marked
// rooms skipped.
func (c *Client) Contacts() []Contact {
	var contacts []Contact

	for userID, rooms := range c.DirectRooms() {
		for _, roomID := range rooms {
			if c.IsGroup(roomID) {
				continue
			}

			contact := Contact{RoomID: roomID, UserID: userID, DisplayName: userID.String()}

			c.RLock()
			if user, ok := c.users[userID]; ok && user.MemberEventContent != nil {
				if user.Displayname != "" {
					contact.DisplayName = user.Displayname
				}
				contact.AvatarURL = c.thumbnailFromString(string(user.AvatarURL))
			}
			c.RUnlock()

			contacts = append(contacts, contact)
		}
	}

	return contacts
}

// Groups lists the rooms carrying the group marker.
func (c *Client) Groups() []Group {
	var groups []Group

	c.RLock()
	defer c.RUnlock()

	for roomID, room := range c.rooms {
		if room.TopicType == topicTypeGroup {
			name := room.Name
			if name == "" {
				name = roomID.String()
			}
			groups = append(groups, Group{RoomID: roomID, Name: name})
		}
	}

	return groups
}

// RoomHeader builds the chat-header projection for a room: its name for
// a group, the counterpart profile for a direct room.
func (c *Client) RoomHeader(roomID id.RoomID) (*RoomHeader, error) {
	if c.IsGroup(roomID) {
		header := &RoomHeader{RoomID: roomID, IsGroup: true, DisplayName: roomID.String()}

		c.RLock()
		if room, ok := c.rooms[roomID]; ok {
			if room.Name != "" {
				header.DisplayName = room.Name
			}
			header.Encrypted = room.Encrypted
		}
		c.RUnlock()

		return header, nil
	}

	other, err := c.otherMember(roomID)
	if err != nil {
		return nil, err
	}

	header := &RoomHeader{RoomID: roomID, UserID: other, DisplayName: other.String()}

	c.RLock()
	if room, ok := c.rooms[roomID]; ok {
		header.Encrypted = room.Encrypted
	}
	c.RUnlock()

	name, avatar, err := c.Profile(other)
	if err == nil {
		if name != "" {
			header.DisplayName = name
		}
		header.AvatarURL = c.thumbnailFromString(avatar)
	}

	return header, nil
}

// CreateDM reuses an existing direct room with the user when one is
// still live, otherwise creates a private is_direct room and records it
// in m.direct before returning.
func (c *Client) CreateDM(userID id.UserID) (id.RoomID, error) {
	for _, roomID := range c.DirectRooms()[userID] {
		c.RLock()
		_, alive := c.rooms[roomID]
		c.RUnlock()

		if alive {
			return roomID, nil
		}
	}

	resp, err := c.mc.CreateRoom(&mautrix.ReqCreateRoom{
		Preset:   "private_chat",
		Invite:   []id.UserID{userID},
		IsDirect: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "unable to create direct room")
	}

	if err := c.addDirectRoom(userID, resp.RoomID); err != nil {
		return "", err
	}

	c.emit(EventTypeContactsUpdated, &ContactsUpdatedEvent{})

	return resp.RoomID, nil
}

// CreateGroup creates a private room with the group marker in its
// initial topic state.
func (c *Client) CreateGroup(name string, invites []id.UserID) (id.RoomID, error) {
	if name == "" {
		return "", errors.New("group name is required")
	}

	if len(invites) == 0 {
		return "", errors.New("at least one invite is required")
	}

	stateKey := ""
	topic := &event.Event{
		Type:     event.StateTopic,
		StateKey: &stateKey,
		Content: event.Content{
			Raw: map[string]interface{}{
				"topic": "No Topic",
				"type":  topicTypeGroup,
			},
		},
	}

	resp, err := c.mc.CreateRoom(&mautrix.ReqCreateRoom{
		Name:         name,
		Preset:       "private_chat",
		Invite:       invites,
		IsDirect:     false,
		InitialState: []*event.Event{topic},
	})
	if err != nil {
		return "", errors.Wrap(err, "unable to create group room")
	}

	c.Lock()
	room := c.roomLocked(resp.RoomID)
	room.Name = name
	room.TopicType = topicTypeGroup
	room.Topic = "No Topic"
	c.Unlock()

	c.emit(EventTypeContactsUpdated, &ContactsUpdatedEvent{})

	return resp.RoomID, nil
}
