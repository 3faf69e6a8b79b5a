package ui

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix/id"

	"github.com/limbchat/limb/matrix"
	"github.com/limbchat/limb/session"
)

// messages flowing through the bubbletea update loop

type clientEventMsg struct {
	ev *matrix.Event
}

type authDoneMsg struct {
	client *matrix.Client
	err    error
}

type loggedOutMsg struct {
	err error
}

type roomOpenedMsg struct {
	roomID   id.RoomID
	timeline *matrix.Timeline
	header   *matrix.RoomHeader
	err      error
}

type olderLoadedMsg struct {
	prepended int
	err       error
}

type sentMsg struct {
	err error
}

type uploadProgressMsg struct {
	pct int
}

type uploadDoneMsg struct {
	err error
}

type searchResultsMsg struct {
	contacts []matrix.Contact
	err      error
}

type roomCreatedMsg struct {
	roomID id.RoomID
	err    error
}

type profileSavedMsg struct {
	err error
}

// waitEvent blocks on the client event channel. The update loop reissues
// it after every delivered event.
func waitEvent(c *matrix.Client) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c.Events()
		if !ok {
			return nil
		}

		return clientEventMsg{ev: ev}
	}
}

func authCmd(v *viper.Viper, store *session.Store, register bool, server, username, password, confirm string) tea.Cmd {
	return func() tea.Msg {
		if register {
			c, err := matrix.Register(v, store, server, username, password, confirm)
			return authDoneMsg{client: c, err: err}
		}

		c, err := matrix.Login(v, store, server, username, password)
		return authDoneMsg{client: c, err: err}
	}
}

func openRoomCmd(c *matrix.Client, roomID id.RoomID) tea.Cmd {
	return func() tea.Msg {
		tl, err := c.OpenTimeline(roomID)
		if err != nil {
			return roomOpenedMsg{roomID: roomID, timeline: tl, err: err}
		}

		header, err := c.RoomHeader(roomID)

		return roomOpenedMsg{roomID: roomID, timeline: tl, header: header, err: err}
	}
}

func loadOlderCmd(tl *matrix.Timeline) tea.Cmd {
	return func() tea.Msg {
		n, err := tl.LoadOlder()
		return olderLoadedMsg{prepended: n, err: err}
	}
}

func sendTextCmd(c *matrix.Client, roomID id.RoomID, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := c.SendText(roomID, text)
		return sentMsg{err: err}
	}
}

// uploadCmd reads the file and sends it, streaming coarse percentage
// progress over ch. ch is closed when the upload finishes either way.
func uploadCmd(c *matrix.Client, roomID id.RoomID, path string, ch chan int) tea.Cmd {
	return func() tea.Msg {
		defer close(ch)

		data, err := os.ReadFile(path)
		if err != nil {
			return uploadDoneMsg{err: err}
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}

		_, err = c.SendFile(roomID, filepath.Base(path), mimeType, data, func(pct int) {
			select {
			case ch <- pct:
			default:
			}
		})

		return uploadDoneMsg{err: err}
	}
}

func waitProgress(ch chan int) tea.Cmd {
	return func() tea.Msg {
		pct, ok := <-ch
		if !ok {
			return nil
		}

		return uploadProgressMsg{pct: pct}
	}
}

func searchCmd(c *matrix.Client, term string) tea.Cmd {
	return func() tea.Msg {
		contacts, err := c.SearchUsers(term)
		return searchResultsMsg{contacts: contacts, err: err}
	}
}

func createDMCmd(c *matrix.Client, userID id.UserID) tea.Cmd {
	return func() tea.Msg {
		roomID, err := c.CreateDM(userID)
		return roomCreatedMsg{roomID: roomID, err: err}
	}
}

func createChannelCmd(c *matrix.Client, name string, invites []id.UserID) tea.Cmd {
	return func() tea.Msg {
		roomID, err := c.CreateGroup(name, invites)
		return roomCreatedMsg{roomID: roomID, err: err}
	}
}

func saveDisplayNameCmd(c *matrix.Client, name string) tea.Cmd {
	return func() tea.Msg {
		return profileSavedMsg{err: c.SetDisplayName(name)}
	}
}

func saveAvatarCmd(c *matrix.Client, path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return profileSavedMsg{err: err}
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}

		mxc, err := c.UploadAvatar(mimeType, data)
		if err != nil {
			return profileSavedMsg{err: err}
		}

		return profileSavedMsg{err: c.SetAvatar(mxc)}
	}
}

func removeAvatarCmd(c *matrix.Client) tea.Cmd {
	return func() tea.Msg {
		return profileSavedMsg{err: c.RemoveAvatar()}
	}
}

func logoutCmd(c *matrix.Client) tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: c.Logout()}
	}
}
