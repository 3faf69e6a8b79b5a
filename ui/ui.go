// Package ui renders the terminal interface: the auth form when no
// session exists, the chat view otherwise. All protocol work happens in
// the matrix package; the models here hold input text, focus and scroll
// state only.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/limbchat/limb/matrix"
	"github.com/limbchat/limb/session"
)

var logger = logrus.NewEntry(logrus.New())

type viewMode int

const (
	modeAuth viewMode = iota
	modeChat
)

// Model is the root bubbletea model, switching between the auth form
// and the chat view.
type Model struct {
	v     *viper.Viper
	store *session.Store

	mode viewMode
	auth authModel
	chat chatModel
}

// Run starts the terminal program. client may be nil when no session
// could be restored; the auth form is shown first in that case.
func Run(v *viper.Viper, store *session.Store, client *matrix.Client) error {
	root := logrus.New()
	root.SetFormatter(&prefixed.TextFormatter{
		PrefixPadding: 14,
		FullTimestamp: true,
	})

	if v.GetBool("debug") {
		root.SetLevel(logrus.DebugLevel)
	}

	if v.GetBool("trace") {
		root.SetLevel(logrus.TraceLevel)
	}

	// the terminal belongs to bubbletea while we run
	if f, err := tea.LogToFile("limb-debug.log", "limb"); err == nil {
		root.SetOutput(f)
		defer f.Close()
	}

	logger = root.WithFields(logrus.Fields{"prefix": "ui"})

	m := Model{v: v, store: store}
	if client != nil {
		m.mode = modeChat
		m.chat = newChatModel(v, store, client)
	} else {
		m.auth = newAuthModel(v, store)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "unable to run terminal program")
	}

	return nil
}

func (m Model) Init() tea.Cmd {
	if m.mode == modeChat {
		return m.chat.Init()
	}

	return m.auth.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// mode switches are driven by these two messages regardless of the
	// current view
	switch msg := msg.(type) {
	case authDoneMsg:
		if msg.err != nil {
			m.auth.busy = false
			m.auth.err = msg.err
			return m, nil
		}

		width, height := m.auth.width, m.auth.height
		m.mode = modeChat
		m.chat = newChatModel(m.v, m.store, msg.client)
		m.chat.width, m.chat.height = width, height

		return m, m.chat.Init()

	case loggedOutMsg:
		if msg.err != nil {
			logger.Errorf("logout: %v", msg.err)
		}

		width, height := m.chat.width, m.chat.height
		m.mode = modeAuth
		m.auth = newAuthModel(m.v, m.store)
		m.auth.width, m.auth.height = width, height

		return m, nil
	}

	var cmd tea.Cmd

	if m.mode == modeChat {
		m.chat, cmd = m.chat.Update(msg)
	} else {
		m.auth, cmd = m.auth.Update(msg)
	}

	return m, cmd
}

func (m Model) View() string {
	if m.mode == modeChat {
		return m.chat.View()
	}

	return m.auth.View()
}
