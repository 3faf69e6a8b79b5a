package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"maunium.net/go/mautrix/event"

	"github.com/limbchat/limb/matrix"
)

const sidebarWidth = 24

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	senderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	selectedItem = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("238"))
)

func (m chatModel) View() string {
	if m.width == 0 {
		return "loading ..."
	}

	if m.modal != modalNone {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			boxStyle.Render(m.viewModal()))
	}

	chat := m.viewChat()
	sidebar := m.viewSidebar()

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chat)

	return body + "\n" + m.viewFooter()
}

func (m chatModel) viewSidebar() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Contacts"))
	b.WriteString("\n")

	wroteGroupHeader := false

	for i, item := range m.items {
		if item.group && !wroteGroupHeader {
			b.WriteString("\n")
			b.WriteString(titleStyle.Render("Channels"))
			b.WriteString("\n")
			wroteGroupHeader = true
		}

		label := item.label
		if len(label) > sidebarWidth-3 {
			label = label[:sidebarWidth-3]
		}

		if i == m.selected && m.focus == paneSidebar {
			b.WriteString(selectedItem.Render("> " + label))
		} else if i == m.selected {
			b.WriteString(focusStyle.Render("> " + label))
		} else {
			b.WriteString("  " + label)
		}
		b.WriteString("\n")
	}

	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("  nobody yet"))
	}

	return sidebarStyle.Height(m.height - 1).Render(b.String())
}

func (m chatModel) viewChat() string {
	chatWidth := m.width - sidebarWidth - 2
	if chatWidth < 20 {
		chatWidth = 20
	}

	header := dimStyle.Render("no room selected")
	if m.header != nil {
		name := m.header.DisplayName
		if m.header.IsGroup {
			name = "# " + name
		}
		header = titleStyle.Render(name)
		if m.header.Encrypted {
			header += " " + dimStyle.Render("[encrypted]")
		}
	}

	lines := messageLines(m.msgs, chatWidth)

	// viewport: offset counts messages of history pulled up from the
	// bottom, rendered lines clipped to fit
	visible := m.height - 4
	if visible < 1 {
		visible = 1
	}

	end := len(lines) - m.offset
	if end > len(lines) {
		end = len(lines)
	}
	if end < 0 {
		end = 0
	}

	start := end - visible
	if start < 0 {
		start = 0
	}

	body := strings.Join(lines[start:end], "\n")
	if body == "" {
		body = dimStyle.Render("no messages")
	}

	composer := "> " + m.input
	if m.focus == paneComposer {
		composer += "_"
	}

	pad := visible - (end - start)
	padding := ""
	if pad > 0 {
		padding = strings.Repeat("\n", pad)
	}

	return lipgloss.NewStyle().Width(chatWidth).Render(
		header + "\n" + padding + body + "\n" + composer)
}

func (m chatModel) viewFooter() string {
	if m.uploading {
		return dimStyle.Render(fmt.Sprintf("uploading ... %d%%", m.uploadPct))
	}

	if m.status != "" {
		return dimStyle.Render(m.status)
	}

	return dimStyle.Render("tab focus | ctrl+n dm | ctrl+g channel | ctrl+p profile | ctrl+a attach | ctrl+e emoji | pgup history | ctrl+l logout")
}

func (m chatModel) viewModal() string {
	var b strings.Builder

	field := func(i int, label, value string) {
		style := dimStyle
		if i == m.modalField {
			style = focusStyle
			value += "_"
		}
		b.WriteString(fmt.Sprintf("%-10s %s\n", label+":", style.Render(value)))
	}

	switch m.modal {
	case modalAttach:
		b.WriteString(titleStyle.Render("Send a file"))
		b.WriteString("\n\n")
		field(0, "Path", m.modalInputs[0])
		b.WriteString("\n" + dimStyle.Render("enter to upload, esc to cancel"))

	case modalNewDM:
		b.WriteString(titleStyle.Render("New direct message"))
		b.WriteString("\n\n")
		field(0, "Search", m.modalInputs[0])
		b.WriteString("\n")

		for i, contact := range m.results {
			line := fmt.Sprintf("%s (%s)", contact.DisplayName, contact.UserID)
			if i == m.resultSel {
				b.WriteString(selectedItem.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}

		b.WriteString("\n" + dimStyle.Render("enter to search, then enter to start the chat"))

	case modalNewChannel:
		b.WriteString(titleStyle.Render("Create a channel"))
		b.WriteString("\n\n")
		field(0, "Name", m.modalInputs[0])
		field(1, "Invite", m.modalInputs[1])
		b.WriteString("\n" + dimStyle.Render("invite: comma-separated user ids, tab to switch fields"))

	case modalProfile:
		b.WriteString(titleStyle.Render("Profile"))
		b.WriteString("\n\n")
		field(0, "Name", m.modalInputs[0])
		field(1, "Avatar", m.modalInputs[1])
		b.WriteString("\n" + dimStyle.Render("avatar: path to an image file, ctrl+r removes the current one"))

	case modalEmoji:
		b.WriteString(titleStyle.Render("Emoji"))
		b.WriteString("\n\n")

		for i, e := range emojiPalette {
			if i == m.resultSel {
				b.WriteString(selectedItem.Render(e))
			} else {
				b.WriteString(e)
			}
			b.WriteString(" ")
		}
		b.WriteString("\n\n" + dimStyle.Render("left/right to pick, enter to insert"))
	}

	return b.String()
}

// messageLines renders the window into terminal lines: a separator when
// the day changes, then a time/sender line and the wrapped body per
// message.
func messageLines(msgs []matrix.Message, width int) []string {
	var lines []string
	var lastDay string

	for _, msg := range msgs {
		day := msg.Timestamp.Format("Monday, 2 January 2006")
		if day != lastDay {
			lines = append(lines, dimStyle.Render("--- "+day+" ---"))
			lastDay = day
		}

		sender := msg.SenderName
		if sender == "" {
			sender = msg.Sender.String()
		}

		lines = append(lines, msg.Timestamp.Format("15:04")+" "+senderStyle.Render(sender))

		body := msg.Content
		if msg.Type != event.MsgText {
			body = mediaLabel(msg)
		} else {
			body = renderBody(body, width-2)
		}

		for _, l := range strings.Split(body, "\n") {
			lines = append(lines, "  "+l)
		}
	}

	return lines
}

// mediaLabel is the placeholder shown for file and image messages.
func mediaLabel(msg matrix.Message) string {
	kind := "file"
	if msg.Type == event.MsgImage {
		kind = "image"
	}

	name := msg.Content
	if name == "" {
		name = msg.MediaURI
	}

	if msg.Info != nil && msg.Info.Size > 0 {
		return fmt.Sprintf("[%s] %s (%s)", kind, name, humanSize(msg.Info.Size))
	}

	return fmt.Sprintf("[%s] %s", kind, name)
}

// renderBody wraps plain text and syntax-highlights fenced code blocks.
func renderBody(body string, width int) string {
	if width < 10 {
		width = 10
	}

	var out []string
	var code []string
	var lang string
	inCode := false

	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "```") && !inCode:
			inCode = true
			lang = strings.TrimPrefix(line, "```")
			code = code[:0]

		case strings.HasPrefix(line, "```") && inCode:
			inCode = false
			out = append(out, highlight(strings.Join(code, "\n"), lang))

		case inCode:
			code = append(code, line)

		default:
			out = append(out, wordwrap.String(line, width))
		}
	}

	// unterminated fence: show it as-is
	if inCode {
		out = append(out, strings.Join(code, "\n"))
	}

	return strings.Join(out, "\n")
}

func highlight(source, lang string) string {
	if lang == "" {
		lang = "plaintext"
	}

	var b strings.Builder
	if err := quick.Highlight(&b, source, lang, "terminal256", "monokai"); err != nil {
		return source
	}

	return strings.TrimRight(b.String(), "\n")
}

func humanSize(size int) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
