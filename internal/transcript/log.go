// Package transcript keeps the user-visible conversation log.
package transcript

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ynot/internal/domain"
)

const defaultCapacity = 200

// Listener is told about every appended entry.
type Listener func(entry domain.LogEntry)

// Log is a bounded, append-only history. Entries are returned newest first,
// the way the log is displayed.
type Log struct {
	mu        sync.Mutex
	entries   []domain.LogEntry
	capacity  int
	listeners []Listener
	now       func() time.Time
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{capacity: capacity, now: time.Now}
}

// Append records a line. Listeners run after the lock is released.
func (l *Log) Append(tag domain.LogTag, text string) {
	entry := domain.LogEntry{Tag: tag, Text: text, At: l.now()}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	for _, listener := range listeners {
		listener(entry)
	}
}

// Entries returns the history, most recent first.
func (l *Log) Entries() []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LogEntry, len(l.entries))
	for i, entry := range l.entries {
		out[len(l.entries)-1-i] = entry
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Subscribe registers listener for future entries.
func (l *Log) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

var (
	userTag      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantTag = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	timestamp    = lipgloss.NewStyle().Faint(true)
)

// Console returns a listener that prints entries to w as styled lines.
func Console(w io.Writer) Listener {
	var mu sync.Mutex
	return func(entry domain.LogEntry) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintln(w, FormatLine(entry))
	}
}

// FormatLine renders "15:04:05 Tag: text" with the tag styled per speaker.
func FormatLine(entry domain.LogEntry) string {
	style := assistantTag
	if entry.Tag == domain.TagUser {
		style = userTag
	}
	return timestamp.Render(entry.At.Format("15:04:05")) + " " + style.Render(string(entry.Tag)+":") + " " + entry.Text
}
