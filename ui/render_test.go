package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"maunium.net/go/mautrix/event"

	"github.com/limbchat/limb/matrix"

	"github.com/stretchr/testify/assert"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		size int
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, humanSize(tc.size))
	}
}

func TestRenderBodyWrapsPlainText(t *testing.T) {
	out := renderBody("aaaa bbbb cccc dddd", 10)

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 10)
	}
}

func TestRenderBodyHighlightsCodeFences(t *testing.T) {
	body := "look:\n```go\nfunc main() {}\n```\ndone"

	out := renderBody(body, 80)

	assert.Contains(t, out, "look:")
	assert.Contains(t, out, "done")
	// highlighted block keeps the source text, possibly wrapped in
	// escape sequences
	assert.Contains(t, out, "main")
	assert.NotContains(t, out, "```")
}

func TestRenderBodyUnterminatedFence(t *testing.T) {
	out := renderBody("```go\nfunc main() {}", 80)

	assert.Contains(t, out, "func main() {}")
}

func TestMediaLabel(t *testing.T) {
	img := matrix.Message{
		Type:    event.MsgImage,
		Content: "cat.png",
		Info:    &event.FileInfo{Size: 2048},
	}
	assert.Equal(t, "[image] cat.png (2.0 KB)", mediaLabel(img))

	file := matrix.Message{Type: event.MsgFile, Content: "notes.pdf"}
	assert.Equal(t, "[file] notes.pdf", mediaLabel(file))
}

func TestMessageLinesDateSeparators(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	msgs := []matrix.Message{
		{Timestamp: day1, SenderName: "alice", Content: "hi", Type: event.MsgText},
		{Timestamp: day1.Add(time.Minute), SenderName: "bob", Content: "hey", Type: event.MsgText},
		{Timestamp: day2, SenderName: "alice", Content: "morning", Type: event.MsgText},
	}

	lines := messageLines(msgs, 80)

	separators := 0
	for _, line := range lines {
		if strings.Contains(line, "Friday, 1 March 2024") || strings.Contains(line, "Saturday, 2 March 2024") {
			separators++
		}
	}

	assert.Equal(t, 2, separators)
}

func TestAuthModelFieldCycling(t *testing.T) {
	m := newAuthModel(viper.New(), nil)

	assert.Equal(t, 3, m.fieldCount())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, m.register)
	assert.Equal(t, 4, m.fieldCount())

	for i := 0; i < 4; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	assert.Equal(t, 0, m.focus)
}

func TestAuthModelTyping(t *testing.T) {
	m := newAuthModel(viper.New(), nil)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("https://x")})
	assert.Equal(t, "https://x", m.fields[fieldServer])

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "https://", m.fields[fieldServer])
}

func TestEmojiPickerInsertsIntoComposer(t *testing.T) {
	m := newChatModel(viper.New(), nil, nil)
	m.input = "hi "

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, modalEmoji, m.modal)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 2, m.resultSel)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modalNone, m.modal)
	assert.Equal(t, "hi "+emojiPalette[2], m.input)
}

func TestEmojiPickerEscCancels(t *testing.T) {
	m := newChatModel(viper.New(), nil, nil)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, modalNone, m.modal)
	assert.Empty(t, m.input)
}
