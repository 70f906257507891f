package participant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateParticipant = errors.New("duplicate participant name")
	ErrInvalidParticipant   = errors.New("invalid participant")
	ErrEmptyRoster          = errors.New("roster is empty")
)

// Store exposes the roster to handlers and the orchestrator.
type Store interface {
	List() []Participant
	FindByName(name string) (Participant, bool)
}

// Registry implements Store with an immutable, ordered roster.
type Registry struct {
	items []Participant
	index map[string]int
}

// NewRegistry validates the supplied participants and returns a Registry preserving their order.
// Names are compared case-insensitively, so "Socrates" and "socrates" collide.
func NewRegistry(items []Participant) (*Registry, error) {
	if len(items) == 0 {
		return nil, ErrEmptyRoster
	}

	r := &Registry{
		items: make([]Participant, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		item.Description = strings.TrimSpace(item.Description)
		if item.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidParticipant, i)
		}
		if item.Description == "" {
			return nil, fmt.Errorf("%w: %q has no description", ErrInvalidParticipant, item.Name)
		}

		key := normalize(item.Name)
		if _, exists := r.index[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParticipant, item.Name)
		}
		r.index[key] = len(r.items)
		r.items = append(r.items, item)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static rosters known to be valid.
func MustRegistry(items []Participant) *Registry {
	r, err := NewRegistry(items)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns the roster in registration order.
func (r *Registry) List() []Participant {
	return append([]Participant(nil), r.items...)
}

// FindByName looks up a participant by name, ignoring case and surrounding whitespace.
func (r *Registry) FindByName(name string) (Participant, bool) {
	idx, ok := r.index[normalize(name)]
	if !ok {
		return Participant{}, false
	}
	return r.items[idx], true
}

// FormatList renders the roster as "name: description" lines for selection prompts.
func FormatList(roster []Participant) string {
	var builder strings.Builder
	for i, p := range roster {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("- ")
		builder.WriteString(p.Name)
		builder.WriteString(": ")
		builder.WriteString(p.Description)
	}
	return builder.String()
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
