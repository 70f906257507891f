package participant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Participants []Participant `yaml:"participants"`
}

// LoadFile reads a YAML roster. The result still has to go through NewRegistry.
func LoadFile(path string) ([]Participant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML roster document.
func Parse(data []byte) ([]Participant, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if len(doc.Participants) == 0 {
		return nil, ErrEmptyRoster
	}
	return doc.Participants, nil
}
