// Package downloader implements the incremental stream-file download
// pipeline: per-node paginated scans, idempotent materialization,
// cross-node signature grouping and checkpoint advancement.
package downloader

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmirror/mirror-downloader/internal/checkpoint"
	"github.com/openmirror/mirror-downloader/internal/config"
	"github.com/openmirror/mirror-downloader/internal/metrics"
	"github.com/openmirror/mirror-downloader/internal/nodes"
	"github.com/openmirror/mirror-downloader/internal/objstore"
	"github.com/openmirror/mirror-downloader/internal/stop"
	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// SignatureGroup maps a logical filename (node-independent) to the
// local signature files contributed by each node for that timestamp.
// It is built fresh per cycle and handed to the downstream verifier;
// the verifier must treat each group as a set, since insertion order
// depends on node iteration order.
type SignatureGroup map[string][]string

// Downloader runs download cycles against the shared bucket handle.
type Downloader struct {
	cfg         config.Config
	scanner     *Scanner
	checkpoints *checkpoint.Store
	sig         *stop.Signal
	log         *slog.Logger
}

// New wires a Downloader from its collaborators.
func New(cfg config.Config, bucket *objstore.Bucket, cps *checkpoint.Store, sig *stop.Signal) *Downloader {
	return &Downloader{
		cfg:         cfg,
		scanner:     NewScanner(bucket, sig),
		checkpoints: cps,
		sig:         sig,
		log:         slog.With("component", "downloader"),
	}
}

// cycleInfo summarizes one cross-node pass.
type cycleInfo struct {
	stopped  bool
	nodeErrs int
	// maxFresh is the greatest freshly-downloaded filename, by raw
	// string order (equal to temporal order for this naming scheme).
	maxFresh string
}

// complete reports whether every node was scanned to exhaustion.
// Only a complete cycle may advance the checkpoint.
func (c cycleInfo) complete() bool {
	return !c.stopped && c.nodeErrs == 0
}

// RunSignatureCycle downloads all new signature files of one stream
// type across every registered node, groups them by logical filename,
// and on full-cycle success advances the stream's checkpoint to the
// greatest filename downloaded (never regressing). The grouping is
// returned for the downstream verifier even when the cycle was cut
// short by the stop signal.
func (d *Downloader) RunSignatureCycle(ctx context.Context, st streamfile.Type) (SignatureGroup, error) {
	start := time.Now()
	groups := make(SignatureGroup)

	lastValid, _ := d.checkpoints.LastValid(st)
	info := d.forEachNode(ctx, st, func(nodeID string) scanRequest {
		return scanRequest{
			stream:   st,
			nodeID:   nodeID,
			prefix:   d.cfg.Streams.Prefix(st) + nodeID + "/",
			marker:   lastValid,
			accept:   st.IsSignature,
			maxItems: d.cfg.Download.MaxItems,
			localPath: func(key string) string {
				return filepath.Join(d.cfg.Download.ToDir, st.LocalSubdir(), nodeID, d.localName(key))
			},
		}
	}, func(o Outcome) {
		name := filepath.Base(o.LocalPath)
		groups[name] = append(groups[name], o.LocalPath)
	})

	if m := metrics.Get(); m != nil {
		m.ObserveCycleDuration(st.String(), time.Since(start).Seconds())
	}

	if info.complete() {
		if err := d.advance(st, lastValid, info.maxFresh); err != nil {
			return groups, err
		}
	}
	return groups, nil
}

// RunBalanceCycle downloads new balance payload files (not signatures)
// from every node into the flattened valid/ directory, then advances
// the balance checkpoint to max(existing, max filename downloaded this
// cycle). The max is taken across all nodes at cycle end because nodes
// may publish balance files out of strict global order.
func (d *Downloader) RunBalanceCycle(ctx context.Context) error {
	start := time.Now()
	st := streamfile.Balance

	lastValid, _ := d.checkpoints.LastValid(st)
	info := d.forEachNode(ctx, st, func(nodeID string) scanRequest {
		return scanRequest{
			stream:   st,
			nodeID:   nodeID,
			prefix:   d.cfg.Streams.Prefix(st) + nodeID + "/",
			marker:   lastValid,
			accept:   st.IsPayload,
			maxItems: d.cfg.Download.MaxItems,
			localPath: func(key string) string {
				// Flattened: the per-node prefix is stripped and every
				// node's payloads land in one valid/ directory.
				return filepath.Join(d.cfg.Download.ToDir, "valid", d.localName(key))
			},
		}
	}, nil)

	if m := metrics.Get(); m != nil {
		m.ObserveCycleDuration(st.String()+"_payload", time.Since(start).Seconds())
	}

	if info.complete() {
		return d.advance(st, lastValid, info.maxFresh)
	}
	return nil
}

// forEachNode re-reads the node registry and runs one scan per node,
// sequentially. Each collected (non-failed) outcome is passed to
// collect when non-nil. A node's listing error aborts only that node's
// scan; the cycle continues with the remaining nodes.
func (d *Downloader) forEachNode(ctx context.Context, st streamfile.Type, build func(nodeID string) scanRequest, collect func(Outcome)) cycleInfo {
	var info cycleInfo

	nodeIDs := nodes.Load(d.cfg.Download.NodeRegistryFile)
	for _, nodeID := range nodeIDs {
		if d.sig.Raised() {
			d.log.Info("stop signal raised, ending cycle", "stream", st.String())
			info.stopped = true
			break
		}

		d.log.Info("start downloading files of node",
			"stream", st.String(), "node", nodeID)

		res, err := d.scanner.scan(ctx, build(nodeID))
		for _, o := range res.outcomes {
			if !o.OK() {
				continue
			}
			if collect != nil {
				collect(o)
			}
			if o.Fresh() {
				if name := filepath.Base(o.LocalPath); strings.Compare(name, info.maxFresh) > 0 {
					info.maxFresh = name
				}
			}
		}

		d.log.Info("finished downloading files of node",
			"stream", st.String(), "node", nodeID,
			"attempted", res.attempted, "downloaded", res.succeeded)
		if m := metrics.Get(); m != nil {
			m.IncNodesScanned(st.String())
		}

		if err != nil {
			info.nodeErrs++
			continue
		}
		if res.stopped {
			info.stopped = true
			break
		}
	}
	return info
}

// advance moves the stream watermark to maxFresh when it is ahead of
// the current value. The hash is left for the downstream verifier to
// fill in through the same Advance call once it validates the payload.
func (d *Downloader) advance(st streamfile.Type, lastValid, maxFresh string) error {
	if maxFresh == "" || strings.Compare(maxFresh, lastValid) <= 0 {
		return nil
	}
	if err := d.checkpoints.Advance(st, maxFresh, ""); err != nil {
		d.log.Error("checkpoint advance failed; cycle will be retried",
			"stream", st.String(), "last_valid", maxFresh, "error", err)
		return err
	}
	if m := metrics.Get(); m != nil {
		m.IncCheckpointAdvances(st.String())
	}
	return nil
}

// localName maps an object key to its local base filename. When the
// bucket gunzips in flight, the .gz extension is dropped from the
// materialized name.
func (d *Downloader) localName(key string) string {
	name := path.Base(key)
	if d.cfg.Storage.DecompressGzip {
		name = strings.TrimSuffix(name, ".gz")
	}
	return name
}
