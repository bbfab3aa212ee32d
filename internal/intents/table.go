// Package intents holds the ordered command table: which keywords select
// which handler, how the handler's parameter is cut out of the transcript,
// and the handlers themselves.
package intents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ynot/internal/domain"
)

// Reply is what a handler wants said.
type Reply struct {
	Utterance string
	Status    domain.OutcomeStatus
}

// Handler performs one intent. It never returns an error: failures become a
// fallback Reply with status degraded.
type Handler interface {
	Handle(ctx context.Context, param string) Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, param string) Reply

func (f HandlerFunc) Handle(ctx context.Context, param string) Reply { return f(ctx, param) }

// Matcher decides whether normalized text selects an intent.
type Matcher func(text string) bool

// Extractor cuts the handler parameter out of normalized text.
type Extractor func(text string) string

// Descriptor is one row of the command table.
type Descriptor struct {
	Name     string
	Keywords []string
	Match    Matcher
	Extract  Extractor
	// Ack, when set, returns a short cue spoken before a slow handler runs.
	Ack     func(param string) string
	Handler Handler
}

// ErrEmptyTable is returned by NewTable without descriptors.
var ErrEmptyTable = errors.New("intent table is empty")

// Table evaluates descriptors in order; the first match wins.
type Table struct {
	descriptors []Descriptor
}

func NewTable(descriptors ...Descriptor) (*Table, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyTable
	}

	rows := append([]Descriptor(nil), descriptors...)
	seen := make(map[string]struct{}, len(rows))
	for i := range rows {
		d := &rows[i]
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("intent %d has no name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("intent %q declared twice", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Handler == nil {
			return nil, fmt.Errorf("intent %q has no handler", d.Name)
		}
		if d.Match == nil {
			if len(d.Keywords) == 0 {
				return nil, fmt.Errorf("intent %q has neither matcher nor keywords", d.Name)
			}
			d.Match = Contains(d.Keywords...)
		}
		if d.Extract == nil {
			d.Extract = NoParameter
		}
	}
	return &Table{descriptors: rows}, nil
}

// MustTable is NewTable for tables built from constants.
func MustTable(descriptors ...Descriptor) *Table {
	table, err := NewTable(descriptors...)
	if err != nil {
		panic(err)
	}
	return table
}

// Resolve returns the first descriptor matching text.
func (t *Table) Resolve(text string) (Descriptor, bool) {
	for _, d := range t.descriptors {
		if d.Match(text) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Descriptors returns the table rows in evaluation order.
func (t *Table) Descriptors() []Descriptor {
	return append([]Descriptor(nil), t.descriptors...)
}

// Names returns intent names in evaluation order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.descriptors))
	for _, d := range t.descriptors {
		names = append(names, d.Name)
	}
	return names
}

// Len reports the number of intents.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.descriptors)
}

// Contains matches when any keyword occurs as a substring, so "time" also
// matches "sometimes".
func Contains(keywords ...string) Matcher {
	return func(text string) bool {
		for _, keyword := range keywords {
			if keyword != "" && strings.Contains(text, keyword) {
				return true
			}
		}
		return false
	}
}

// StripFirst removes the first occurrence of each keyword, in order, and
// collapses the remaining whitespace.
func StripFirst(keywords ...string) Extractor {
	return func(text string) string {
		for _, keyword := range keywords {
			if keyword != "" {
				text = strings.Replace(text, keyword, "", 1)
			}
		}
		return strings.Join(strings.Fields(text), " ")
	}
}

// WithDefault substitutes fallback when extract yields nothing.
func WithDefault(extract Extractor, fallback string) Extractor {
	return func(text string) string {
		if param := extract(text); param != "" {
			return param
		}
		return fallback
	}
}

// NoParameter is the extractor for intents that take no argument.
func NoParameter(string) string { return "" }
