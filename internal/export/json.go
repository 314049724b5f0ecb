package export

import (
	"encoding/json"
	"fmt"

	"github.com/fakeyudi/linewheel/internal/session"
)

// JSONRenderer renders records as an indented JSON array, oldest first.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(entries []session.LogEntry) ([]byte, error) {
	sorted := SortByStart(entries)
	if sorted == nil {
		sorted = []session.LogEntry{}
	}
	return json.MarshalIndent(sorted, "", "  ")
}

// JSONParser parses a JSON array of records.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) ([]session.LogEntry, error) {
	var entries []session.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON logs: %w", err)
	}
	return entries, nil
}
