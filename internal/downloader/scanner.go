package downloader

import (
	"context"
	"strings"

	"github.com/openmirror/mirror-downloader/internal/logging"
	"github.com/openmirror/mirror-downloader/internal/metrics"
	"github.com/openmirror/mirror-downloader/internal/objstore"
	"github.com/openmirror/mirror-downloader/internal/stop"
	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

// scanRequest describes one (node, stream type) scan.
type scanRequest struct {
	stream streamfile.Type
	nodeID string

	// prefix is the node's full remote prefix, e.g.
	// "recordstreams/record0.0.3/".
	prefix string

	// marker is the resume filename (exclusive lower bound); empty
	// means "from the beginning".
	marker string

	// accept filters candidate keys after the marker filter.
	accept func(key string) bool

	// localPath maps an accepted key to its materialization target.
	localPath func(key string) string

	// maxItems caps fresh downloads for this scan; 0 means unlimited.
	maxItems int
}

// scanResult carries the outcomes of one per-node scan plus running
// counters for observability.
type scanResult struct {
	outcomes  []Outcome
	attempted int
	succeeded int // fresh downloads only
	stopped   bool
}

// Scanner drives the paginated listing of one node's prefix, applying
// the resume marker, the stream predicate and the download ceiling.
type Scanner struct {
	bucket *objstore.Bucket
	mat    *Materializer
	sig    *stop.Signal
}

// NewScanner returns a Scanner over the shared bucket handle.
func NewScanner(bucket *objstore.Bucket, sig *stop.Signal) *Scanner {
	return &Scanner{
		bucket: bucket,
		mat:    NewMaterializer(bucket),
		sig:    sig,
	}
}

// scan lists req.prefix page by page and materializes every surviving
// entry.
//
// Termination conditions are checked at the top of every page
// iteration, in priority order: stop signal raised (partial results
// kept), download ceiling reached, listing exhausted. A listing error
// aborts only this scan; the partial result gathered so far is
// returned along with the error so the caller can move to the next
// node.
func (s *Scanner) scan(ctx context.Context, req scanRequest) (scanResult, error) {
	log := logging.ScanLogger(req.stream.String(), req.nodeID)
	m := metrics.Get()

	// The marker is both the server-side StartAfter bound (where the
	// driver supports one) and a client-side skip filter on raw keys.
	// Raw lexicographic order equals temporal order for the fixed-width
	// timestamp naming scheme, so both applications agree.
	var fullMarker string
	if req.marker != "" {
		fullMarker = req.prefix + req.marker
	}

	var res scanResult
	token := objstore.FirstPageToken
	for {
		if s.sig.Raised() {
			log.Info("stop signal raised, ending scan")
			res.stopped = true
			return res, nil
		}
		if req.maxItems > 0 && res.succeeded >= req.maxItems {
			log.Info("download ceiling reached", "max_items", req.maxItems)
			return res, nil
		}

		page, err := s.bucket.ListPage(ctx, req.prefix, fullMarker, token, objstore.DefaultPageSize)
		if err != nil {
			if m != nil {
				m.IncListErrors(req.stream.String())
			}
			log.Error("listing failed", "prefix", req.prefix, "error", err)
			return res, err
		}
		if m != nil {
			m.IncListPages(req.stream.String())
		}

		for _, key := range page.Keys {
			if s.sig.Raised() {
				log.Info("stop signal raised, ending scan")
				res.stopped = true
				return res, nil
			}
			if req.maxItems > 0 && res.succeeded >= req.maxItems {
				return res, nil
			}

			if streamfile.IsLatestAlias(key) {
				continue
			}
			if req.marker != "" && strings.Compare(key, fullMarker) <= 0 {
				continue
			}
			if !req.accept(key) {
				continue
			}

			outcome := s.mat.Materialize(ctx, key, req.localPath(key))
			res.attempted++
			res.outcomes = append(res.outcomes, outcome)
			switch outcome.Status {
			case Downloaded:
				res.succeeded++
				if m != nil {
					m.IncDownloaded(req.stream.String(), req.nodeID)
				}
			case AlreadyPresent:
				if m != nil {
					m.IncPresent(req.stream.String(), req.nodeID)
				}
			case Failed:
				if m != nil {
					m.IncFailed(req.stream.String(), req.nodeID)
				}
			}
		}

		if !page.Truncated {
			return res, nil
		}
		token = page.NextToken
	}
}
