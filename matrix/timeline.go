package matrix

import (
	"sync"
	"time"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/pkg/errors"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Message is the view projection of a qualifying timeline event.
type Message struct {
	ID           id.EventID
	Timestamp    time.Time
	Sender       id.UserID
	Content      string
	Type         event.MessageType
	MediaURI     string
	Info         *event.FileInfo
	SenderName   string
	SenderAvatar string
}

// TimelineState tracks the assembly lifecycle of an open room.
type TimelineState int

const (
	TimelineEmpty TimelineState = iota
	TimelineLoadingBacklog
	TimelineLive
)

// Timeline assembles the message window for one room. It is replaced
// wholesale on room switch.
type Timeline struct {
	c      *Client
	roomID id.RoomID

	state  TimelineState
	window []Message
	seen   map[id.EventID]struct{}

	// all fetched events, oldest first; LoadOlder re-derives the
	// window from this buffer
	buffer []*event.Event
	older  string

	mu sync.Mutex
}

// OpenTimeline makes roomID the active room and fetches its backlog:
// the most recent backlog-limit qualifying events, in delivery order.
// A failed fetch leaves the previous window untouched.
func (c *Client) OpenTimeline(roomID id.RoomID) (*Timeline, error) {
	tl := &Timeline{
		c:      c,
		roomID: roomID,
		seen:   make(map[id.EventID]struct{}),
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.state = TimelineLoadingBacklog

	limit := c.v.GetInt("matrix.backloglimit")
	from := c.mc.Store.LoadNextBatch(c.mc.UserID)

	resp, err := c.mc.Messages(roomID, from, "", 'b', limit)
	if err != nil {
		tl.state = TimelineEmpty
		c.logger.Errorf("backlog fetch for %s failed: %v", roomID, err)
		return tl, errors.Wrap(err, "unable to fetch backlog")
	}

	// chunk is newest first; buffer is kept oldest first
	for i := len(resp.Chunk) - 1; i >= 0; i-- {
		tl.buffer = append(tl.buffer, resp.Chunk[i])
	}
	tl.older = resp.End

	tl.rebuildWindow()
	tl.state = TimelineLive

	// only a live timeline takes over the incoming-message feed; a
	// failed open leaves the previous room attached
	c.Lock()
	c.active = tl
	c.Unlock()

	return tl, nil
}

// LoadOlder fetches page-limit older events, re-derives the whole
// window from the retained buffer, and returns how many messages were
// prepended so the view can restore its scroll anchor.
func (tl *Timeline) LoadOlder() (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.state != TimelineLive || tl.older == "" {
		return 0, nil
	}

	limit := tl.c.v.GetInt("matrix.pagelimit")

	resp, err := tl.c.mc.Messages(tl.roomID, tl.older, "", 'b', limit)
	if err != nil {
		tl.c.logger.Errorf("paging %s failed: %v", tl.roomID, err)
		return 0, errors.Wrap(err, "unable to fetch older messages")
	}

	prepended := make([]*event.Event, 0, len(resp.Chunk))
	for i := len(resp.Chunk) - 1; i >= 0; i-- {
		prepended = append(prepended, resp.Chunk[i])
	}

	tl.buffer = append(prepended, tl.buffer...)
	tl.older = resp.End

	before := len(tl.window)
	tl.rebuildWindow()

	return len(tl.window) - before, nil
}

// rebuildWindow re-derives the message window from the full buffer.
// Callers hold tl.mu.
func (tl *Timeline) rebuildWindow() {
	tl.window = tl.window[:0]
	tl.seen = make(map[id.EventID]struct{})

	for _, ev := range tl.buffer {
		msg, ok := tl.c.projectEvent(tl.roomID, ev)
		if !ok {
			continue
		}

		if _, dup := tl.seen[msg.ID]; dup {
			continue
		}

		tl.seen[msg.ID] = struct{}{}
		tl.window = append(tl.window, msg)
	}
}

// push appends a live event. Append-only: ordering is whatever the
// sync stream delivered.
func (tl *Timeline) push(ev *event.Event, msg Message) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.state != TimelineLive {
		return
	}

	if _, dup := tl.seen[msg.ID]; dup {
		return
	}

	tl.seen[msg.ID] = struct{}{}
	tl.buffer = append(tl.buffer, ev)
	tl.window = append(tl.window, msg)
}

// Messages returns a copy of the current window, oldest first.
func (tl *Timeline) Messages() []Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return append([]Message(nil), tl.window...)
}

func (tl *Timeline) State() TimelineState {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.state
}

func (tl *Timeline) RoomID() id.RoomID {
	return tl.roomID
}

// CloseTimeline drops the active timeline. The window is discarded, not
// cached.
func (c *Client) CloseTimeline() {
	c.Lock()
	c.active = nil
	c.Unlock()
}

// projectEvent maps a timeline event to its Message projection. Only
// text, file and image messages qualify.
func (c *Client) projectEvent(roomID id.RoomID, ev *event.Event) (Message, bool) {
	if ev.Type != event.EventMessage {
		return Message{}, false
	}

	if ev.Content.Parsed == nil {
		if err := ev.Content.ParseRaw(ev.Type); err != nil {
			c.logger.Debugf("unparseable message event %s: %v", ev.ID, err)
			return Message{}, false
		}
	}

	content := ev.Content.AsMessage()

	switch content.MsgType {
	case event.MsgText, event.MsgFile, event.MsgImage:
	default:
		return Message{}, false
	}

	body := content.Body
	if body == "" && content.FormattedBody != "" {
		body = strip.StripTags(content.FormattedBody)
	}

	msg := Message{
		ID:        ev.ID,
		Timestamp: time.Unix(ev.Timestamp/1000, (ev.Timestamp%1000)*int64(time.Millisecond)),
		Sender:    ev.Sender,
		Content:   body,
		Type:      content.MsgType,
		MediaURI:  string(content.URL),
		Info:      content.GetInfo(),
	}

	msg.SenderName, msg.SenderAvatar = c.senderProfile(roomID, ev.Sender)

	return msg, true
}

// senderProfile resolves display name and avatar thumbnail for a
// sender, from room state when present, the profile cache otherwise.
func (c *Client) senderProfile(roomID id.RoomID, sender id.UserID) (string, string) {
	c.RLock()
	if room, ok := c.rooms[roomID]; ok {
		if member, ok := room.Members[sender]; ok && member.MemberEventContent != nil {
			name := member.Displayname
			avatar := c.thumbnailFromString(string(member.AvatarURL))
			c.RUnlock()

			if name == "" {
				name = sender.String()
			}

			return name, avatar
		}
	}
	c.RUnlock()

	name, avatar, err := c.Profile(sender)
	if err != nil || name == "" {
		name = sender.String()
	}

	return name, c.thumbnailFromString(avatar)
}

func (c *Client) handleMessage(source mautrix.EventSource, ev *event.Event) {
	msg, ok := c.projectEvent(ev.RoomID, ev)
	if !ok {
		return
	}

	c.RLock()
	tl := c.active
	c.RUnlock()

	if tl != nil && tl.roomID == ev.RoomID {
		tl.push(ev, msg)
	}

	if c.IsDirect(ev.RoomID) {
		c.emit(EventTypeDirectMessage, &DirectMessageEvent{RoomID: ev.RoomID, Message: msg})
		return
	}

	c.emit(EventTypeChannelMessage, &ChannelMessageEvent{RoomID: ev.RoomID, Message: msg})
}

// handleEncrypted defers assembly of an encrypted event until
// HandleDecrypted fires for it.
func (c *Client) handleEncrypted(source mautrix.EventSource, ev *event.Event) {
	c.Lock()
	c.pendingDecrypt[ev.ID] = struct{}{}
	c.Unlock()

	c.logger.Debugf("deferring encrypted event %s until decryption", ev.ID)
}

// HandleDecrypted processes a decrypted event exactly once.
func (c *Client) HandleDecrypted(ev *event.Event) {
	c.Lock()
	_, pending := c.pendingDecrypt[ev.ID]
	delete(c.pendingDecrypt, ev.ID)
	c.Unlock()

	if !pending {
		return
	}

	c.handleMessage(mautrix.EventSourceTimeline, ev)
}
