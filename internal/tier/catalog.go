package tier

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Entry is one catalog record: an identifier plus an opaque JSON payload.
// Payloads hold metadata and blob references, never raw media bytes.
type Entry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// mergeEntries combines two catalog snapshots keyed by entry id. Incoming
// entries win over existing ones; output order is stable by id.
func mergeEntries(existing, incoming []Entry) []Entry {
	merged := make(map[string]Entry, len(existing)+len(incoming))
	for _, entry := range existing {
		merged[entry.ID] = entry
	}
	for _, entry := range incoming {
		merged[entry.ID] = entry
	}

	out := make([]Entry, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func encodeEntries(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return data, nil
}

func decodeEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}
