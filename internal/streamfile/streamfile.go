// Package streamfile defines the stream types published by consensus
// nodes and the parsing/ordering rules for their filenames.
package streamfile

import (
	"path"
	"strings"
	"time"
)

// Type identifies one of the three streams a consensus node publishes.
type Type int

const (
	Record Type = iota
	Balance
	Event
)

// All returns the fixed set of stream types.
func All() []Type {
	return []Type{Record, Balance, Event}
}

func (t Type) String() string {
	switch t {
	case Record:
		return "record"
	case Balance:
		return "balance"
	case Event:
		return "event"
	default:
		return "unknown"
	}
}

// PayloadSuffix returns the suffix of the stream's payload files.
func (t Type) PayloadSuffix() string {
	switch t {
	case Record:
		return ".rcd"
	case Balance:
		return "_Balances.csv"
	case Event:
		return ".evts"
	default:
		return ""
	}
}

// SignatureSuffix returns the suffix of the stream's signature files.
func (t Type) SignatureSuffix() string {
	return t.PayloadSuffix() + "_sig"
}

// LocalSubdir returns the subdirectory under the download root where
// this stream's signature files are materialized.
func (t Type) LocalSubdir() string {
	switch t {
	case Record:
		return "recordstreams"
	case Balance:
		return "accountbalances"
	case Event:
		return "eventstreams"
	default:
		return "unknown"
	}
}

// CheckpointName returns the logical name of the stream's checkpoint
// document.
func (t Type) CheckpointName() string {
	switch t {
	case Record:
		return "records"
	case Balance:
		return "balance"
	case Event:
		return "events"
	default:
		return "unknown"
	}
}

// IsSignature reports whether name (key or filename) is a signature
// file of this stream type. A trailing compression extension is
// transparent.
func (t Type) IsSignature(name string) bool {
	return strings.HasSuffix(trimCompression(name), t.SignatureSuffix())
}

// IsPayload reports whether name is a payload file of this stream type.
func (t Type) IsPayload(name string) bool {
	return strings.HasSuffix(trimCompression(name), t.PayloadSuffix())
}

// trimCompression strips the compression extension objects may carry in
// the bucket, so parsing and predicates see the logical filename.
func trimCompression(name string) string {
	return strings.TrimSuffix(name, ".gz")
}

// IsLatestAlias reports whether a key names a "latest" alias object.
// Nodes republish their most recent file under a stable alias that
// must never count as a new stream file.
func IsLatestAlias(key string) bool {
	return strings.Contains(path.Base(key), "latest")
}

// suffixes ordered longest-first so signature suffixes are stripped
// before their payload counterparts.
var knownSuffixes = []string{
	Balance.SignatureSuffix(),
	Balance.PayloadSuffix(),
	Record.SignatureSuffix(),
	Event.SignatureSuffix(),
	Record.PayloadSuffix(),
	Event.PayloadSuffix(),
}

// Timestamp extracts the logical instant from a stream filename or
// object key. Filenames carry an RFC3339Nano timestamp with ':'
// replaced by '_' (e.g. 2019-07-01T14_29_00.302068Z.rcd_sig); a
// trailing compression extension is transparent.
// The second return is false when no timestamp can be parsed; callers
// must order such names strictly before any real timestamp.
func Timestamp(name string) (time.Time, bool) {
	base := trimCompression(path.Base(strings.ReplaceAll(name, "\\", "/")))
	for _, suffix := range knownSuffixes {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.ReplaceAll(base, "_", ":"))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Compare is the canonical ordering for stream filenames: by parsed
// timestamp, with unparseable names ordering first and ties broken by
// raw string comparison. The raw-key and filesystem-path orderings are
// derived from this one; for well-formed names of one node and stream
// type all three agree, because the fixed-width timestamp format makes
// lexicographic order equal temporal order.
func Compare(a, b string) int {
	ta, oka := Timestamp(a)
	tb, okb := Timestamp(b)
	switch {
	case !oka && !okb:
		return strings.Compare(a, b)
	case !oka:
		return -1
	case !okb:
		return 1
	}
	if c := ta.Compare(tb); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// CompareKeys orders two object keys by the canonical filename order.
func CompareKeys(a, b string) int {
	return Compare(path.Base(a), path.Base(b))
}

// ComparePaths orders two local file paths by the canonical filename
// order of their base names.
func ComparePaths(a, b string) int {
	return Compare(path.Base(strings.ReplaceAll(a, "\\", "/")),
		path.Base(strings.ReplaceAll(b, "\\", "/")))
}

// NodeFromKey splits an object key of the form <prefix><nodeID>/<file>
// into its node id and filename. ok is false when the key does not lie
// under prefix or has no node segment.
func NodeFromKey(prefix, key string) (nodeID, filename string, ok bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
