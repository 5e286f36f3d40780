// Package checkpoint persists the per-stream "last valid" watermark.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

// Checkpoint is the durable watermark for one stream type. It is
// advanced at most once per completed cycle and never regresses.
type Checkpoint struct {
	LastValidFileName string    `json:"lastValidFileName"`
	LastValidFileHash string    `json:"lastValidFileHash"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// Store holds the in-memory checkpoints and their JSON documents on
// disk, one document per stream type. Between advances the in-memory
// copy is the source of truth.
type Store struct {
	dir string
	mem map[streamfile.Type]Checkpoint
	log *slog.Logger
}

// Open loads (or creates) the checkpoint documents under dir.
//
// If a stream's document does not exist yet, its values are migrated
// from any legacy combined configuration file at legacyPath, and a
// default record is persisted immediately, so the document always
// exists after first run. Malformed documents log a warning and fall
// back to an empty watermark.
func Open(dir, legacyPath string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}

	s := &Store{
		dir: dir,
		mem: make(map[streamfile.Type]Checkpoint, len(streamfile.All())),
		log: slog.With("component", "checkpoint"),
	}

	var legacy map[string]string
	for _, st := range streamfile.All() {
		path := s.path(st)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var cp Checkpoint
			if err := json.Unmarshal(data, &cp); err != nil {
				s.log.Warn("malformed checkpoint document, starting empty",
					"stream", st.String(), "path", path, "error", err)
				cp = Checkpoint{}
			}
			s.mem[st] = cp
		case os.IsNotExist(err):
			if legacy == nil {
				legacy = loadLegacy(legacyPath)
			}
			cp := migrated(st, legacy)
			s.mem[st] = cp
			if err := s.persist(st, cp); err != nil {
				return nil, err
			}
			s.log.Info("created checkpoint document",
				"stream", st.String(), "path", path,
				"last_valid", cp.LastValidFileName)
		default:
			return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
		}
	}
	return s, nil
}

// LastValid returns the stream's current watermark.
func (s *Store) LastValid(st streamfile.Type) (filename, hash string) {
	cp := s.mem[st]
	return cp.LastValidFileName, cp.LastValidFileHash
}

// Advance moves the stream's watermark forward and synchronously
// persists it. If persistence fails the in-memory value is rolled back
// and the error returned, so memory and disk never diverge silently.
// Advancing to the current value is a no-op.
func (s *Store) Advance(st streamfile.Type, filename, hash string) error {
	prev := s.mem[st]
	if prev.LastValidFileName == filename && prev.LastValidFileHash == hash {
		return nil
	}

	next := Checkpoint{
		LastValidFileName: filename,
		LastValidFileHash: hash,
		UpdatedAt:         time.Now().UTC(),
	}
	s.mem[st] = next
	if err := s.persist(st, next); err != nil {
		s.mem[st] = prev
		return err
	}

	s.log.Info("advanced checkpoint",
		"stream", st.String(), "last_valid", filename)
	return nil
}

func (s *Store) path(st streamfile.Type) string {
	return filepath.Join(s.dir, st.CheckpointName()+".json")
}

// persist fully overwrites the stream's document, pretty-printed,
// through a temp file and rename.
func (s *Store) persist(st streamfile.Type, cp Checkpoint) error {
	path := s.path(st)

	data, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// legacy field names used by the old combined configuration file.
var legacyFields = map[streamfile.Type][2]string{
	streamfile.Record:  {"lastValidRcdFileName", "lastValidRcdFileHash"},
	streamfile.Balance: {"lastValidBalanceFileName", ""},
	streamfile.Event:   {"lastValidEventFileName", "lastValidEventFileHash"},
}

func migrated(st streamfile.Type, legacy map[string]string) Checkpoint {
	fields := legacyFields[st]
	cp := Checkpoint{LastValidFileName: legacy[fields[0]]}
	if fields[1] != "" {
		cp.LastValidFileHash = legacy[fields[1]]
	}
	return cp
}

// loadLegacy reads the one-time migration source. Absence or parse
// failure is not an error; migration simply starts from empty values.
func loadLegacy(path string) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("malformed legacy configuration, skipping migration",
			"path", path, "error", err)
		return nil
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			values[k] = s
		}
	}
	return values
}
