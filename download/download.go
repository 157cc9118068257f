// Package download fetches static assets over HTTP with conditional requests
// and a small JSON sidecar, so re-running before each event only transfers
// what changed.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const MetadataSuffix = ".status.json"

// Status indicates whether the remote content changed.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusSameContent Status = "same_content"
)

// Metadata tracks the last successful download or check of one file.
type Metadata struct {
	URL          string    `json:"url,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	CheckedAt    time.Time `json:"checked_at,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
}

// Request configures one download.
type Request struct {
	URL         string
	Destination string
	Timeout     time.Duration
	Force       bool
	UserAgent   string
}

// Result summarizes the download outcome.
type Result struct {
	Status Status
	Meta   Metadata
	Bytes  int64
}

// MetadataPath returns the sidecar path for a destination.
func MetadataPath(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return dest + MetadataSuffix
}

// Purpose: Download a file with conditional headers and a metadata sidecar.
// Key aspects: Uses ETag/Last-Modified, compares SHA-256 with the previous
// copy, and replaces the destination atomically via a temp file.
// Upstream: FetchAll, cmd/fetchassets.
// Downstream: net/http client, ReadMetadata, WriteMetadata.
func Download(ctx context.Context, req Request) (Result, error) {
	var result Result
	url := strings.TrimSpace(req.URL)
	dest := strings.TrimSpace(req.Destination)
	if url == "" {
		return result, errors.New("download: URL is empty")
	}
	if dest == "" {
		return result, errors.New("download: destination is empty")
	}
	metaPath := MetadataPath(dest)

	_, err := os.Stat(dest)
	destExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("download: stat destination: %w", err)
	}
	prevMeta := ReadMetadata(metaPath)
	force := req.Force || !destExists

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("download: build request: %w", err)
	}
	if !force && prevMeta != nil {
		if prevMeta.ETag != "" {
			httpReq.Header.Set("If-None-Match", prevMeta.ETag)
		}
		if prevMeta.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", prevMeta.LastModified)
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("download: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	if resp.StatusCode == http.StatusNotModified && destExists {
		result.Status = StatusNotModified
		result.Meta = mergeMetadata(prevMeta, url, resp, now, "")
		writeMetadataLogged(metaPath, result.Meta)
		return result, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("download: fetch %s: status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return result, fmt.Errorf("download: create directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return result, fmt.Errorf("download: create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return result, fmt.Errorf("download: copy body: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return result, fmt.Errorf("download: finalize temp file: %w", err)
	}
	if written <= 0 {
		return result, errors.New("download: empty response body")
	}
	hashHex := hex.EncodeToString(hasher.Sum(nil))
	result.Bytes = written

	if !force && prevMeta != nil && prevMeta.SHA256 == hashHex {
		result.Status = StatusSameContent
		result.Meta = mergeMetadata(prevMeta, url, resp, now, hashHex)
		writeMetadataLogged(metaPath, result.Meta)
		return result, nil
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return result, fmt.Errorf("download: replace file: %w", err)
	}
	result.Status = StatusUpdated
	meta := mergeMetadata(prevMeta, url, resp, now, hashHex)
	meta.DownloadedAt = now
	meta.SizeBytes = written
	result.Meta = meta
	writeMetadataLogged(metaPath, meta)
	return result, nil
}

// ReadMetadata loads a sidecar, returning nil when it is missing or unreadable.
func ReadMetadata(path string) *Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// WriteMetadata persists an indented sidecar for operator readability.
func WriteMetadata(path string, meta Metadata) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("download: metadata path is empty")
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeMetadataLogged(path string, meta Metadata) {
	if err := WriteMetadata(path, meta); err != nil {
		log.Printf("Warning: unable to write metadata %s: %v", path, err)
	}
}

func mergeMetadata(prev *Metadata, url string, resp *http.Response, now time.Time, hash string) Metadata {
	meta := Metadata{}
	if prev != nil {
		meta = *prev
	}
	meta.URL = url
	meta.CheckedAt = now
	if etag := strings.TrimSpace(resp.Header.Get("ETag")); etag != "" {
		meta.ETag = etag
	}
	if last := strings.TrimSpace(resp.Header.Get("Last-Modified")); last != "" {
		meta.LastModified = last
	}
	if hash != "" {
		meta.SHA256 = hash
	}
	return meta
}
