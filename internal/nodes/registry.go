// Package nodes loads the consensus-node registry.
package nodes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Load reads the node registry file and returns the node ids in sorted
// order. The registry is a JSON object whose top-level keys name the
// nodes; it must be re-read at the start of every cycle because
// membership can change between runs.
//
// A missing or malformed registry logs a warning and yields an empty
// list so that a bad file never blocks startup.
func Load(path string) []string {
	ids, err := load(path)
	if err != nil {
		slog.Warn("failed to load node registry", "path", path, "error", err)
		return nil
	}
	return ids
}

func load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node registry: %w", err)
	}

	var registry map[string]json.RawMessage
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("parse node registry: %w", err)
	}

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
