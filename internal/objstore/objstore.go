// Package objstore wraps a cloud object-storage bucket behind the two
// capabilities the downloader needs: paginated key listing and blocking
// download of a whole object to a local file.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// DefaultPageSize is the listing page size used by every scan.
const DefaultPageSize = 100

// Config selects and configures the storage provider.
type Config struct {
	Provider string `yaml:"provider"` // "s3" | "gcs" | "local"
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // custom endpoint for B2/MinIO/R2
	LocalDir string `yaml:"local_dir"`

	// DecompressGzip transparently gunzips ".gz" objects while they
	// are written to the local target file.
	DecompressGzip bool `yaml:"decompress_gzip"`
}

// Bucket is a read-only handle on the stream-file bucket, shared by all
// per-node scans within a cycle.
type Bucket struct {
	b              *blob.Bucket
	decompressGzip bool
	closeOnce      sync.Once
	closeErr       error
}

// Open opens the configured bucket.
// For S3-compatible stores the endpoint can point at B2/R2/MinIO.
func Open(ctx context.Context, cfg Config) (*Bucket, error) {
	var (
		b   *blob.Bucket
		err error
	)

	switch cfg.Provider {
	case "s3":
		bucketURL := fmt.Sprintf("s3://%s", cfg.Bucket)
		params := url.Values{}
		if cfg.Region != "" {
			params.Set("region", cfg.Region)
		}
		if cfg.Endpoint != "" {
			params.Set("endpoint", cfg.Endpoint)
			params.Set("s3ForcePathStyle", "true")
		}
		if len(params) > 0 {
			bucketURL = bucketURL + "?" + params.Encode()
		}
		b, err = blob.OpenBucket(ctx, bucketURL)
	case "gcs":
		b, err = blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", cfg.Bucket))
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local_dir required for local provider")
		}
		b, err = fileblob.OpenBucket(cfg.LocalDir, nil)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}

	return &Bucket{b: b, decompressGzip: cfg.DecompressGzip}, nil
}

// Page is one page of a key listing.
type Page struct {
	Keys      []string
	NextToken []byte
	Truncated bool
}

// FirstPageToken starts a listing from its first page.
var FirstPageToken = blob.FirstPageToken

// ListPage lists up to pageSize keys under prefix, starting at token.
// Keys are returned in lexicographic order; directory pseudo-entries
// are dropped.
//
// A non-empty startAfter is pushed down to the S3 driver as the
// ListObjectsV2 StartAfter bound, so a resumed scan skips already
// consumed history server-side. Other drivers ignore it and list from
// the start of the prefix; callers must keep filtering keys at or
// below their marker regardless.
func (bk *Bucket) ListPage(ctx context.Context, prefix, startAfter string, token []byte, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	opts := &blob.ListOptions{
		Prefix:    prefix,
		Delimiter: "/",
	}
	if startAfter != "" {
		opts.BeforeList = func(as func(interface{}) bool) error {
			var req *s3v2.ListObjectsV2Input
			if as(&req) {
				req.StartAfter = aws.String(startAfter)
			}
			return nil
		}
	}
	objs, next, err := bk.b.ListPage(ctx, token, pageSize, opts)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	page := Page{
		NextToken: next,
		Truncated: len(next) > 0,
	}
	for _, obj := range objs {
		if obj.IsDir {
			continue
		}
		page.Keys = append(page.Keys, obj.Key)
	}
	return page, nil
}

// DownloadToFile downloads one object to localPath, blocking until the
// transfer completes or fails. The write goes through a temp file and a
// rename, so the final path never holds a partial object. Gzip payloads
// are decompressed in flight when the bucket was opened with
// DecompressGzip.
func (bk *Bucket) DownloadToFile(ctx context.Context, key, localPath string) error {
	r, err := bk.b.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("open object %s: %w", key, err)
	}
	defer r.Close()

	var src io.Reader = r
	if bk.decompressGzip && strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("gunzip object %s: %w", key, err)
		}
		defer gz.Close()
		src = gz
	}

	tempPath := localPath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tempPath, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, localPath, err)
	}
	return nil
}

// Close releases the bucket's connection resources. Safe to call more
// than once; only the first call takes effect.
func (bk *Bucket) Close() error {
	bk.closeOnce.Do(func() {
		bk.closeErr = bk.b.Close()
	})
	return bk.closeErr
}
