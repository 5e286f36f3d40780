package downloader

// Status classifies the result of one materialization attempt.
type Status int

const (
	// Downloaded means the object was freshly transferred to disk.
	Downloaded Status = iota
	// AlreadyPresent means the local file existed and no transfer ran.
	AlreadyPresent
	// Failed means no local file was produced.
	Failed
)

func (s Status) String() string {
	switch s {
	case Downloaded:
		return "downloaded"
	case AlreadyPresent:
		return "already_present"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of materializing one remote object.
// Downloaded and AlreadyPresent always carry the local path; Failed
// never does.
type Outcome struct {
	Status    Status
	Key       string // remote object key
	LocalPath string // empty iff Status == Failed
}

// OK reports whether a local file exists for this outcome.
func (o Outcome) OK() bool {
	return o.Status != Failed
}

// Fresh reports whether this outcome performed a new transfer.
// Only fresh downloads count toward the download ceiling.
func (o Outcome) Fresh() bool {
	return o.Status == Downloaded
}
