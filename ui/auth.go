package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/limbchat/limb/session"
)

const (
	fieldServer = iota
	fieldUsername
	fieldPassword
	fieldConfirm
)

// authModel is the login/register form shown when no session can be
// restored.
type authModel struct {
	v     *viper.Viper
	store *session.Store

	register bool
	focus    int
	fields   [4]string

	busy bool
	err  error

	width  int
	height int
}

func newAuthModel(v *viper.Viper, store *session.Store) authModel {
	m := authModel{v: v, store: store}
	m.fields[fieldServer] = v.GetString("server")

	return m
}

func (m authModel) Init() tea.Cmd {
	return nil
}

func (m authModel) fieldCount() int {
	if m.register {
		return 4
	}

	return 3
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab", "down":
			m.focus = (m.focus + 1) % m.fieldCount()

		case "shift+tab", "up":
			m.focus = (m.focus + m.fieldCount() - 1) % m.fieldCount()

		case "ctrl+r":
			m.register = !m.register
			m.err = nil
			if m.focus >= m.fieldCount() {
				m.focus = 0
			}

		case "enter":
			m.busy = true
			m.err = nil
			return m, authCmd(m.v, m.store, m.register,
				m.fields[fieldServer], m.fields[fieldUsername],
				m.fields[fieldPassword], m.fields[fieldConfirm])

		case "backspace":
			f := m.fields[m.focus]
			if f != "" {
				m.fields[m.focus] = f[:len(f)-1]
			}

		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.fields[m.focus] += string(msg.Runes)
			}
		}
	}

	return m, nil
}

func (m authModel) View() string {
	title := "Limb / sign in"
	action := "sign in"
	if m.register {
		title = "Limb / create account"
		action = "register"
	}

	labels := []string{"Homeserver", "Username", "Password", "Confirm"}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	for i := 0; i < m.fieldCount(); i++ {
		value := m.fields[i]
		if i == fieldPassword || i == fieldConfirm {
			value = strings.Repeat("*", len(value))
		}

		style := dimStyle
		if i == m.focus {
			style = focusStyle
			value += "_"
		}

		b.WriteString(fmt.Sprintf("%-12s %s\n", labels[i]+":", style.Render(value)))
	}

	b.WriteString("\n")

	switch {
	case m.busy:
		b.WriteString(dimStyle.Render("contacting " + m.fields[fieldServer] + " ..."))
	case m.err != nil:
		b.WriteString(errStyle.Render(m.err.Error()))
	default:
		b.WriteString(dimStyle.Render("enter to " + action + ", ctrl+r to switch login/register, esc to quit"))
	}

	box := boxStyle.Render(b.String())

	if m.width == 0 {
		return box
	}

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
