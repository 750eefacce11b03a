// Package imagepipe resolves legacy catalog image references to durable
// object-storage URLs. Remote bodies are streamed to a temporary file while a
// SHA-256 checksum is computed, and byte-identical content is uploaded exactly
// once per run regardless of how many source URLs point at it.
package imagepipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cartbridge/cartbridge/internal/errors"
	"github.com/cartbridge/cartbridge/internal/limiter"
	"github.com/cartbridge/cartbridge/internal/logging"
	"github.com/cartbridge/cartbridge/internal/objectstore"
)

// Status of one image resolution attempt.
const (
	StatusUploaded = "uploaded"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Result describes the outcome of resolving one candidate image URL. The
// pipeline always returns a Result, it never lets an error escape.
type Result struct {
	SourcePath string `json:"source_path"`
	Checksum   string `json:"checksum,omitempty"`
	ObjectURL  string `json:"object_url,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// ProductContext carries identifying product fields used to derive
// human-readable object keys.
type ProductContext struct {
	ID    uint64
	Name  string
	Brand string
}

// Pipeline resolves image references for a single job run. The checksum and
// URL caches are owned by the orchestrating goroutine; concurrent fetch tasks
// only stream bytes and compute checksums, cache writes happen after the
// fan-out joins.
type Pipeline struct {
	client      *http.Client
	uploader    objectstore.Uploader
	concurrency int
	maxImages   int
	placeholder string
	tempDir     string
	logger      *slog.Logger

	seen     map[string]string  // checksum -> object URL
	resolved map[string]*Result // raw source URL -> result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient overrides the fetch client, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Pipeline) { p.client = hc }
}

// WithTempDir redirects temp files away from os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// New creates a pipeline for one job run.
func New(uploader objectstore.Uploader, concurrency, maxImages int, placeholder string, opts ...Option) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxImages < 1 {
		maxImages = 8
	}
	p := &Pipeline{
		client:      &http.Client{Timeout: 60 * time.Second},
		uploader:    uploader,
		concurrency: concurrency,
		maxImages:   maxImages,
		placeholder: placeholder,
		logger:      logging.ForService("imagepipe"),
		seen:        make(map[string]string),
		resolved:    make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// fetched is the output of the concurrent streaming stage.
type fetched struct {
	tempPath    string
	checksum    string
	contentType string
	err         error
}

// fetch streams the remote body to a temp file while hashing it. It is safe
// to call concurrently, it touches no pipeline state.
func (p *Pipeline) fetch(ctx context.Context, imageURL string) *fetched {
	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &fetched{err: errors.Newf("unsupported image reference %q, only http(s) URLs are fetched", imageURL).
			Component("imagepipe").
			Category(errors.CategoryImageFetch).
			Build()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return &fetched{err: errors.New(err).
			Component("imagepipe").
			Category(errors.CategoryImageFetch).
			Context("url", imageURL).
			Build()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &fetched{err: errors.New(err).
			Component("imagepipe").
			Category(errors.CategoryNetwork).
			Context("url", imageURL).
			Build()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Debug("closing image response body", "url", imageURL, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fetched{err: errors.Newf("image fetch returned status %d", resp.StatusCode).
			Component("imagepipe").
			Category(errors.CategoryImageFetch).
			Context("url", imageURL).
			Build()}
	}

	tmp, err := os.CreateTemp(p.tempDir, "imagepipe-*")
	if err != nil {
		return &fetched{err: errors.New(err).
			Component("imagepipe").
			Category(errors.CategoryFileIO).
			Build()}
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &fetched{err: errors.New(err).
			Component("imagepipe").
			Category(errors.CategoryImageFetch).
			Context("url", imageURL).
			Build()}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &fetched{err: errors.New(err).
			Component("imagepipe").
			Category(errors.CategoryFileIO).
			Build()}
	}

	return &fetched{
		tempPath:    tmp.Name(),
		checksum:    hex.EncodeToString(hasher.Sum(nil)),
		contentType: responseContentType(resp, imageURL),
	}
}

// finalize applies dedup and upload to one fetched image. Must be called from
// the orchestrating goroutine only, it mutates the caches.
func (p *Pipeline) finalize(ctx context.Context, f *fetched, imageURL, sourceTable string, sourceID uint64, index int, pctx ProductContext) *Result {
	result := &Result{SourcePath: imageURL}
	if f.err != nil {
		result.Status = StatusFailed
		result.Reason = f.err.Error()
		return result
	}
	result.Checksum = f.checksum

	if existing, ok := p.seen[f.checksum]; ok {
		os.Remove(f.tempPath)
		result.Status = StatusSkipped
		result.ObjectURL = existing
		result.Reason = "duplicate content, already uploaded"
		return result
	}

	if p.uploader == nil || !p.uploader.Configured() {
		// Keep the temp file so an operator can recover the bytes.
		result.Status = StatusSkipped
		result.Reason = fmt.Sprintf("object storage not configured, image retained at %s", f.tempPath)
		return result
	}

	key := p.objectKey(imageURL, sourceTable, sourceID, index, pctx)
	body, err := os.Open(f.tempPath)
	if err != nil {
		os.Remove(f.tempPath)
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result
	}
	objectURL, uploadErr := p.uploader.Upload(ctx, key, f.contentType, body)
	body.Close()
	os.Remove(f.tempPath)
	if uploadErr != nil {
		result.Status = StatusFailed
		result.Reason = uploadErr.Error()
		return result
	}

	p.seen[f.checksum] = objectURL
	result.Status = StatusUploaded
	result.ObjectURL = objectURL
	return result
}

// ProcessImage resolves one image reference end to end: fetch, checksum,
// dedup, upload. It never panics and never returns an error, failures are
// reported in the Result.
func (p *Pipeline) ProcessImage(ctx context.Context, sourceTable string, sourceID uint64, imageURL string, pctx ProductContext) *Result {
	if cached, ok := p.resolved[imageURL]; ok {
		return cached
	}
	result := p.finalize(ctx, p.fetch(ctx, imageURL), imageURL, sourceTable, sourceID, 0, pctx)
	p.resolved[imageURL] = result
	return result
}

// BuildProductImages resolves a product's candidate URLs through a bounded
// fan-out and returns the ordered object URLs plus the per-candidate results.
// Duplicate candidates and duplicate resolved URLs collapse, the list is
// capped, and a placeholder is substituted when nothing resolves.
func (p *Pipeline) BuildProductImages(ctx context.Context, sourceTable string, sourceID uint64, candidates []string, pctx ProductContext) ([]string, []*Result) {
	unique := make([]string, 0, len(candidates))
	seenCandidate := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seenCandidate[c] {
			continue
		}
		seenCandidate[c] = true
		unique = append(unique, c)
	}

	// Fetch concurrently; cache lookups and writes stay on this goroutine.
	type slot struct {
		url     string
		cached  *Result
		fetched *fetched
	}
	slots := make([]slot, len(unique))
	toFetch := make([]int, 0, len(unique))
	for i, u := range unique {
		slots[i].url = u
		if cached, ok := p.resolved[u]; ok {
			slots[i].cached = cached
		} else {
			toFetch = append(toFetch, i)
		}
	}
	if len(toFetch) > 0 {
		lim := limiter.New(p.concurrency)
		fetchResults := limiter.Map(lim, toFetch, func(i int) *fetched {
			return p.fetch(ctx, slots[i].url)
		})
		for n, i := range toFetch {
			slots[i].fetched = fetchResults[n]
		}
	}

	results := make([]*Result, 0, len(unique))
	urls := make([]string, 0, len(unique))
	seenURL := make(map[string]bool, len(unique))
	for i := range slots {
		var res *Result
		if slots[i].cached != nil {
			res = slots[i].cached
		} else {
			res = p.finalize(ctx, slots[i].fetched, slots[i].url, sourceTable, sourceID, i, pctx)
			p.resolved[slots[i].url] = res
		}
		results = append(results, res)
		if res.ObjectURL == "" || seenURL[res.ObjectURL] {
			continue
		}
		seenURL[res.ObjectURL] = true
		if len(urls) < p.maxImages {
			urls = append(urls, res.ObjectURL)
		}
	}

	if len(urls) == 0 && p.placeholder != "" {
		p.logger.Warn("no image candidate resolved, substituting placeholder",
			"source_table", sourceTable,
			"source_id", sourceID,
			"candidates", len(unique))
		urls = append(urls, p.placeholder)
	}

	return urls, results
}

// objectKey derives a collision-resistant, human-readable storage key.
func (p *Pipeline) objectKey(imageURL, sourceTable string, sourceID uint64, index int, pctx ProductContext) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(path.Base(imageURL), "?", 2)[0]))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}

	folder := Slugify(pctx.Brand)
	if folder == "" {
		folder = sourceTable
	}
	name := Slugify(pctx.Name)
	if name == "" {
		name = fmt.Sprintf("%s-%d", sourceTable, sourceID)
		return fmt.Sprintf("products/%s/%s-%d%s", folder, name, index, ext)
	}
	return fmt.Sprintf("products/%s/%s-%d-%d%s", folder, name, pctx.ID, index, ext)
}

// Slugify lowercases and reduces a name to URL-safe hyphenated tokens.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func responseContentType(resp *http.Response, imageURL string) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	switch strings.ToLower(path.Ext(imageURL)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
