package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix/id"

	"github.com/limbchat/limb/matrix"
	"github.com/limbchat/limb/session"
)

type pane int

const (
	paneSidebar pane = iota
	paneComposer
)

type modal int

const (
	modalNone modal = iota
	modalAttach
	modalNewDM
	modalNewChannel
	modalProfile
	modalEmoji
)

// emojiPalette is the fixed set offered by the composer picker.
var emojiPalette = []string{
	"😀", "😂", "😉", "😍", "😎", "😢", "😮", "🤔",
	"👍", "👎", "👋", "🙏", "❤️", "🎉", "🔥", "💯",
}

type sidebarItem struct {
	roomID id.RoomID
	label  string
	group  bool
}

// chatModel is the main view: sidebar, message viewport and composer,
// plus the dialog overlays. It owns no protocol state; everything comes
// from the matrix client.
type chatModel struct {
	v      *viper.Viper
	store  *session.Store
	client *matrix.Client
	logger *logrus.Entry

	width  int
	height int

	synced bool
	status string

	items    []sidebarItem
	selected int

	timeline *matrix.Timeline
	header   *matrix.RoomHeader
	msgs     []matrix.Message

	// messages scrolled up from the bottom of the window. Measured from
	// the bottom so a LoadOlder prepend keeps the anchor in place.
	offset int

	focus pane
	input string

	uploading  bool
	uploadPct  int
	progressCh chan int

	modal       modal
	modalField  int
	modalInputs [2]string
	results     []matrix.Contact
	resultSel   int
}

func newChatModel(v *viper.Viper, store *session.Store, client *matrix.Client) chatModel {
	return chatModel{
		v:      v,
		store:  store,
		client: client,
		logger: logger,
		status: "syncing ...",
		focus:  paneComposer,
	}
}

func (m chatModel) Init() tea.Cmd {
	return waitEvent(m.client)
}

// visibleMessages is how many message rows fit between header and
// composer. Rough: one row per message plus separators is good enough
// for paging decisions.
func (m chatModel) visibleMessages() int {
	n := m.height - 6
	if n < 1 {
		n = 1
	}

	return n
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case clientEventMsg:
		return m.updateClientEvent(msg.ev)

	case roomOpenedMsg:
		if msg.err != nil {
			m.status = "unable to open room: " + msg.err.Error()
			m.logger.Errorf("opening %s failed: %v", msg.roomID, msg.err)
			return m, nil
		}

		m.timeline = msg.timeline
		m.header = msg.header
		m.msgs = msg.timeline.Messages()
		m.offset = 0
		m.status = ""

		if err := m.store.SaveSelectedRoom(msg.roomID.String()); err != nil {
			m.logger.Errorf("unable to persist selected room: %v", err)
		}

		return m, nil

	case olderLoadedMsg:
		if msg.err != nil {
			m.status = "unable to load older messages"
			return m, nil
		}

		if m.timeline != nil {
			m.msgs = m.timeline.Messages()
		}

		if msg.prepended > 0 {
			m.status = fmt.Sprintf("loaded %d older messages", msg.prepended)
		}

		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.status = "send failed: " + msg.err.Error()
		}

		return m, nil

	case uploadProgressMsg:
		m.uploadPct = msg.pct
		return m, waitProgress(m.progressCh)

	case uploadDoneMsg:
		m.uploading = false
		m.progressCh = nil
		if msg.err != nil {
			m.status = "upload failed: " + msg.err.Error()
		} else {
			m.status = ""
		}

		return m, nil

	case searchResultsMsg:
		if msg.err != nil {
			m.status = "search failed: " + msg.err.Error()
			return m, nil
		}

		m.results = msg.contacts
		m.resultSel = 0

		return m, nil

	case roomCreatedMsg:
		m.modal = modalNone
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}

		m.refreshSidebar()

		return m, openRoomCmd(m.client, msg.roomID)

	case profileSavedMsg:
		m.modal = modalNone
		if msg.err != nil {
			m.status = "profile update failed: " + msg.err.Error()
		} else {
			m.status = "profile updated"
		}

		return m, nil
	}

	return m, nil
}

func (m chatModel) updateClientEvent(ev *matrix.Event) (chatModel, tea.Cmd) {
	cmds := []tea.Cmd{waitEvent(m.client)}

	switch ev.Type {
	case matrix.EventTypeReady:
		m.synced = true
		m.status = ""
		m.refreshSidebar()

		// reopen the room that was selected last time
		if roomID, err := m.store.LoadSelectedRoom(); err == nil && roomID != "" {
			m.selectItem(id.RoomID(roomID))
			cmds = append(cmds, openRoomCmd(m.client, id.RoomID(roomID)))
		}

	case matrix.EventTypeContactsUpdated, matrix.EventTypeRoomJoined:
		m.refreshSidebar()

	case matrix.EventTypeDirectMessage:
		data := ev.Data.(*matrix.DirectMessageEvent)
		m = m.applyIncoming(data.RoomID, data.Message)

	case matrix.EventTypeChannelMessage:
		data := ev.Data.(*matrix.ChannelMessageEvent)
		m = m.applyIncoming(data.RoomID, data.Message)
	}

	return m, tea.Batch(cmds...)
}

func (m chatModel) applyIncoming(roomID id.RoomID, msg matrix.Message) chatModel {
	if m.timeline != nil && m.timeline.RoomID() == roomID {
		m.msgs = m.timeline.Messages()
		return m
	}

	m.status = "new message from " + msg.SenderName

	return m
}

func (m chatModel) updateKey(msg tea.KeyMsg) (chatModel, tea.Cmd) {
	if m.modal != modalNone {
		return m.updateModalKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.focus == paneSidebar {
			m.focus = paneComposer
		} else {
			m.focus = paneSidebar
		}
		return m, nil

	case "ctrl+n":
		return m.openModal(modalNewDM), nil

	case "ctrl+g":
		return m.openModal(modalNewChannel), nil

	case "ctrl+p":
		return m.openModal(modalProfile), nil

	case "ctrl+a":
		if m.timeline != nil {
			return m.openModal(modalAttach), nil
		}
		return m, nil

	case "ctrl+e":
		return m.openModal(modalEmoji), nil

	case "ctrl+l":
		return m, logoutCmd(m.client)

	case "pgup":
		return m.scrollUp()

	case "pgdown":
		m.offset -= m.visibleMessages()
		if m.offset < 0 {
			m.offset = 0
		}
		return m, nil
	}

	if m.focus == paneSidebar {
		return m.updateSidebarKey(msg)
	}

	return m.updateComposerKey(msg)
}

// scrollUp moves the viewport up one page and asks for older history
// when the top of the window is already visible.
func (m chatModel) scrollUp() (chatModel, tea.Cmd) {
	max := len(m.msgs) - m.visibleMessages()
	if max < 0 {
		max = 0
	}

	if m.offset >= max {
		if m.timeline != nil {
			return m, loadOlderCmd(m.timeline)
		}
		return m, nil
	}

	m.offset += m.visibleMessages()
	if m.offset > max {
		m.offset = max
	}

	return m, nil
}

func (m chatModel) updateSidebarKey(msg tea.KeyMsg) (chatModel, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.items)-1 {
			m.selected++
		}

	case "enter":
		if m.selected < len(m.items) {
			m.focus = paneComposer
			return m, openRoomCmd(m.client, m.items[m.selected].roomID)
		}
	}

	return m, nil
}

func (m chatModel) updateComposerKey(msg tea.KeyMsg) (chatModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input)
		if text == "" || m.timeline == nil {
			return m, nil
		}

		m.input = ""
		m.offset = 0

		return m, sendTextCmd(m.client, m.timeline.RoomID(), text)

	case "backspace":
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}

	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.input += string(msg.Runes)
		}
	}

	return m, nil
}

func (m chatModel) openModal(kind modal) chatModel {
	m.modal = kind
	m.modalField = 0
	m.modalInputs = [2]string{}
	m.results = nil
	m.resultSel = 0

	return m
}

func (m chatModel) updateModalKey(msg tea.KeyMsg) (chatModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil

	case "tab":
		if m.modal == modalNewChannel || m.modal == modalProfile {
			m.modalField = (m.modalField + 1) % 2
		}
		return m, nil

	case "up":
		if m.modal == modalNewDM && m.resultSel > 0 {
			m.resultSel--
		}
		return m, nil

	case "down":
		if m.modal == modalNewDM && m.resultSel < len(m.results)-1 {
			m.resultSel++
		}
		return m, nil

	case "left":
		if m.modal == modalEmoji && m.resultSel > 0 {
			m.resultSel--
		}
		return m, nil

	case "right":
		if m.modal == modalEmoji && m.resultSel < len(emojiPalette)-1 {
			m.resultSel++
		}
		return m, nil

	case "ctrl+r":
		if m.modal == modalProfile {
			return m, removeAvatarCmd(m.client)
		}
		return m, nil

	case "enter":
		return m.submitModal()

	case "backspace":
		f := m.modalInputs[m.modalField]
		if f != "" {
			m.modalInputs[m.modalField] = f[:len(f)-1]
		}
		return m, nil
	}

	// the emoji picker has no text field
	if m.modal != modalEmoji && (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace) {
		m.modalInputs[m.modalField] += string(msg.Runes)
	}

	return m, nil
}

func (m chatModel) submitModal() (chatModel, tea.Cmd) {
	switch m.modal {
	case modalAttach:
		path := strings.TrimSpace(m.modalInputs[0])
		if path == "" || m.timeline == nil {
			m.modal = modalNone
			return m, nil
		}

		m.modal = modalNone
		m.uploading = true
		m.uploadPct = 0
		m.progressCh = make(chan int, 8)

		return m, tea.Batch(
			uploadCmd(m.client, m.timeline.RoomID(), path, m.progressCh),
			waitProgress(m.progressCh),
		)

	case modalNewDM:
		// first enter searches, second picks a result
		if len(m.results) > 0 && m.resultSel < len(m.results) {
			return m, createDMCmd(m.client, m.results[m.resultSel].UserID)
		}

		term := strings.TrimSpace(m.modalInputs[0])
		if term == "" {
			return m, nil
		}

		return m, searchCmd(m.client, term)

	case modalNewChannel:
		name := strings.TrimSpace(m.modalInputs[0])

		var invites []id.UserID
		for _, u := range strings.Split(m.modalInputs[1], ",") {
			if u = strings.TrimSpace(u); u != "" {
				invites = append(invites, id.UserID(u))
			}
		}

		return m, createChannelCmd(m.client, name, invites)

	case modalEmoji:
		if m.resultSel < len(emojiPalette) {
			m.input += emojiPalette[m.resultSel]
		}
		m.modal = modalNone
		m.focus = paneComposer

		return m, nil

	case modalProfile:
		name := strings.TrimSpace(m.modalInputs[0])
		avatar := strings.TrimSpace(m.modalInputs[1])

		var cmds []tea.Cmd
		if name != "" {
			cmds = append(cmds, saveDisplayNameCmd(m.client, name))
		}
		if avatar != "" {
			cmds = append(cmds, saveAvatarCmd(m.client, avatar))
		}

		if len(cmds) == 0 {
			m.modal = modalNone
			return m, nil
		}

		return m, tea.Batch(cmds...)
	}

	m.modal = modalNone

	return m, nil
}

// refreshSidebar rebuilds the contact and channel lists from the
// client, contacts first.
func (m *chatModel) refreshSidebar() {
	var current id.RoomID
	if m.selected < len(m.items) {
		current = m.items[m.selected].roomID
	}

	m.items = m.items[:0]

	for _, contact := range m.client.Contacts() {
		m.items = append(m.items, sidebarItem{
			roomID: contact.RoomID,
			label:  contact.DisplayName,
		})
	}

	for _, group := range m.client.Groups() {
		m.items = append(m.items, sidebarItem{
			roomID: group.RoomID,
			label:  group.Name,
			group:  true,
		})
	}

	if current != "" {
		m.selectItem(current)
	}
}

func (m *chatModel) selectItem(roomID id.RoomID) {
	for i, item := range m.items {
		if item.roomID == roomID {
			m.selected = i
			return
		}
	}
}
