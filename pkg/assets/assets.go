// Package assets handles hero-image embedding and the asset-upload boundary.
//
// Remote images are fetched over HTTP and inlined as data URLs so a board
// snapshot is self-contained. The image cache is an explicit ImageStore
// scoped to one layout invocation and passed by reference; there is no
// package-level mutable state.
//
// Upload of new assets is consumed, not owned: the Uploader interface is the
// boundary to whatever blob storage the host application provides.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/httputil"
)

// maxImageBytes caps a single embedded image. Larger bodies abort the fetch
// so one oversized asset cannot balloon the snapshot row.
const maxImageBytes = 8 << 20

// =============================================================================
// ImageStore - Per-Invocation Image Cache
// =============================================================================

// ImageStore collects embedded files for one layout invocation. Create one at
// the call boundary, pass it through the layout pass, and read Files when
// done. Not safe for concurrent use; a layout pass is single-writer.
type ImageStore struct {
	files map[string]board.EmbeddedFile
	byURL map[string]string // source URL -> file id, dedupes repeat fetches
}

// NewImageStore creates an empty image store.
func NewImageStore() *ImageStore {
	return &ImageStore{
		files: map[string]board.EmbeddedFile{},
		byURL: map[string]string{},
	}
}

// Add registers an embedded file fetched from the given source URL and
// returns its file id. Fetching the same URL twice reuses the first entry.
func (s *ImageStore) Add(sourceURL string, f board.EmbeddedFile) string {
	if id, ok := s.byURL[sourceURL]; ok {
		return id
	}
	s.files[f.ID] = f
	s.byURL[sourceURL] = f.ID
	return f.ID
}

// Lookup returns the file id for a previously added source URL.
func (s *ImageStore) Lookup(sourceURL string) (string, bool) {
	id, ok := s.byURL[sourceURL]
	return id, ok
}

// Files returns the collected file map, keyed by file id.
func (s *ImageStore) Files() map[string]board.EmbeddedFile {
	return s.files
}

// Len returns the number of embedded files collected.
func (s *ImageStore) Len() int { return len(s.files) }

// =============================================================================
// Fetcher - Remote Image Inlining
// =============================================================================

// Fetcher downloads remote images and inlines them as data URLs.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given HTTP client.
// A nil client defaults to a 15-second-timeout client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads url, inlines it as a data URL, and records it in the store.
// Returns the embedded file id. Transient HTTP failures are retried with
// backoff; a failure after retries returns a NETWORK_ERROR so callers can
// treat a single broken image as non-fatal.
func (f *Fetcher) Fetch(ctx context.Context, store *ImageStore, url string) (string, error) {
	if id, ok := store.Lookup(url); ok {
		return id, nil
	}

	var file board.EmbeddedFile
	err := httputil.RetryWithBackoff(ctx, func() error {
		var ferr error
		file, ferr = f.fetchOnce(ctx, url)
		return ferr
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch image %s", url)
	}

	return store.Add(url, file), nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (board.EmbeddedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return board.EmbeddedFile{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return board.EmbeddedFile{}, httputil.Retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return board.EmbeddedFile{}, httputil.Retryable(fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return board.EmbeddedFile{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return board.EmbeddedFile{}, httputil.Retryable(err)
	}
	if len(body) > maxImageBytes {
		return board.EmbeddedFile{}, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(body)
	}

	return board.EmbeddedFile{
		ID:       uuid.NewString(),
		MimeType: mime,
		DataURL:  fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(body)),
		Created:  time.Now().UTC(),
	}, nil
}

// =============================================================================
// Uploader - Consumed Asset-Storage Boundary
// =============================================================================

// Uploader is the blob-storage interface the host application provides.
// The layout engine never uploads hero images itself; it only fetches
// already-hosted URLs.
type Uploader interface {
	// Upload stores the file contents and returns its public URL.
	Upload(ctx context.Context, name string, contents io.Reader) (url string, err error)
}

// UploadHooks receives lifecycle callbacks around an upload.
// Any hook may be nil.
type UploadHooks struct {
	OnUploadStart    func(name string)
	OnUploadComplete func(name, url string)
	OnUploadError    func(name string, err error)
}

// UploadWithHooks runs an upload through the given uploader, invoking
// lifecycle hooks around it.
func UploadWithHooks(ctx context.Context, u Uploader, name string, contents io.Reader, hooks UploadHooks) (string, error) {
	if hooks.OnUploadStart != nil {
		hooks.OnUploadStart(name)
	}
	url, err := u.Upload(ctx, name, contents)
	if err != nil {
		if hooks.OnUploadError != nil {
			hooks.OnUploadError(name, err)
		}
		return "", err
	}
	if hooks.OnUploadComplete != nil {
		hooks.OnUploadComplete(name, url)
	}
	return url, nil
}
