package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	appLog "smartcal/internal/log"
)

// FetchResult is a downloaded calendar feed.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads subscribed calendar feeds, revalidating with ETag and
// Last-Modified and falling back to the last good copy when the server is
// unreachable.
type Fetcher struct {
	client   *http.Client
	fs       afero.Fs
	cacheDir string
}

func NewFetcher(fs afero.Fs, cacheDir string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Fetcher{client: client, fs: fs, cacheDir: cacheDir}
}

// IsURL reports whether src names an http(s) feed rather than a file.
func IsURL(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (FetchResult, error) {
	if !IsURL(feedURL) {
		return FetchResult{}, fmt.Errorf("ics: not an http(s) url: %q", redactURL(feedURL))
	}

	dir := f.cachePath(feedURL)
	if err := f.fs.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, err
	}
	meta, _ := f.loadMeta(dir)
	cached, _ := afero.ReadFile(f.fs, filepath.Join(dir, "body.ics"))

	fallback := func(cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, cause
		}
		appLog.Error("ics fetch failed, using cached body", cause, "url", redactURL(feedURL))
		return FetchResult{URL: feedURL, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return fallback(err)
		}
		newMeta := cacheMeta{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(dir, newMeta, body); err != nil {
			appLog.Error("ics cache save failed", err, "url", redactURL(feedURL))
		}
		appLog.Info("ics fetch success", "url", redactURL(feedURL), "bytes", len(body))
		return FetchResult{URL: feedURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("ics: 304 Not Modified without a cached body")
		}
		appLog.Info("ics feed not modified", "url", redactURL(feedURL))
		return FetchResult{URL: feedURL, Body: cached, FromCache: true}, nil
	}
	return fallback(errors.New(resp.Status))
}

func (f *Fetcher) cachePath(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := afero.ReadFile(f.fs, filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (f *Fetcher) saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := afero.WriteFile(f.fs, filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}

// Load reads src as a feed URL or a local file path.
func (f *Fetcher) Load(ctx context.Context, src string) ([]byte, error) {
	if IsURL(src) {
		res, err := f.Fetch(ctx, src)
		return res.Body, err
	}
	return afero.ReadFile(f.fs, strings.TrimPrefix(src, "file://"))
}
