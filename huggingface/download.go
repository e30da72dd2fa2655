// download.go - Download eines Repositories in ein lokales Verzeichnis
// Unterstuetzt Include/Exclude-Globs, Fortsetzen, Wiederholungen und Progress-Callbacks.
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mneves75/z-image-go/logutil"
)

// Download-Konstanten
const (
	DefaultChunkSize   = 1024 * 1024
	MaxDownloadRetries = 3
	DownloadRetryDelay = 2 * time.Second
	DefaultParallelism = 4
	partialSuffix      = ".download"
)

// Progress is reported after every chunk.
type Progress struct {
	File       string
	Downloaded int64
	Total      int64
}

// DownloadResult lists the files present in the target directory.
type DownloadResult struct {
	Repo     string
	Revision string
	Dir      string
	Files    []DownloadedFile
	Total    int64
	Elapsed  time.Duration
}

// DownloadedFile is one file of a DownloadResult.
type DownloadedFile struct {
	Filename  string
	LocalPath string
	Size      int64
	Skipped   bool
}

// DownloadOption konfiguriert einen Download
type DownloadOption func(*downloadConfig)

type downloadConfig struct {
	revision    string
	include     []string
	exclude     []string
	parallelism int64
	retryDelay  time.Duration
	progress    func(Progress)
}

// WithRevision setzt die Git-Revision
func WithRevision(revision string) DownloadOption {
	return func(cfg *downloadConfig) {
		if revision != "" {
			cfg.revision = revision
		}
	}
}

// WithInclude keeps only files matching one of the globs.
func WithInclude(patterns ...string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.include = patterns }
}

// WithExclude drops files matching any of the globs.
func WithExclude(patterns ...string) DownloadOption {
	return func(cfg *downloadConfig) { cfg.exclude = patterns }
}

// WithParallelism setzt die Anzahl paralleler Downloads
func WithParallelism(n int) DownloadOption {
	return func(cfg *downloadConfig) {
		if n > 0 {
			cfg.parallelism = int64(n)
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) DownloadOption {
	return func(cfg *downloadConfig) { cfg.retryDelay = d }
}

// WithProgress setzt den Progress-Callback. Er wird nebenlaeufig aufgerufen.
func WithProgress(fn func(Progress)) DownloadOption {
	return func(cfg *downloadConfig) { cfg.progress = fn }
}

// DownloadModel mirrors repo into dir. Files already present with the
// expected size are skipped; interrupted files resume from their
// .download remainder.
func (c *Client) DownloadModel(ctx context.Context, repo, dir string, opts ...DownloadOption) (*DownloadResult, error) {
	start := time.Now()
	cfg := &downloadConfig{revision: "main", parallelism: DefaultParallelism, retryDelay: DownloadRetryDelay}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logutil.FromContext(ctx).With("component", "weights", "repo", repo)

	info, err := c.GetModelInfo(ctx, repo, cfg.revision)
	if err != nil {
		return nil, fmt.Errorf("model info: %w", err)
	}
	files := filterFiles(info.Siblings, cfg.include, cfg.exclude)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files match in %s", ErrFileNotFound, repo)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var total int64
	for _, f := range files {
		total += f.FileSize()
	}

	var (
		downloaded atomic.Int64
		mu         sync.Mutex
		errs       []error
		wg         sync.WaitGroup
		sem        = semaphore.NewWeighted(cfg.parallelism)
		results    = make([]DownloadedFile, len(files))
	)
	report := func(name string, n int64) {
		d := downloaded.Add(n)
		if cfg.progress != nil {
			cfg.progress(Progress{File: name, Downloaded: d, Total: total})
		}
	}

	for i, f := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			local, err := localPath(dir, f.Filename)
			if err == nil {
				results[i] = DownloadedFile{Filename: f.Filename, LocalPath: local, Size: f.FileSize()}
				if st, serr := os.Stat(local); serr == nil && st.Size() == f.FileSize() {
					results[i].Skipped = true
					report(f.Filename, f.FileSize())
					log.Debug("already present", "file", f.Filename)
					return
				}
				err = c.downloadWithRetry(ctx, cfg, repo, f.Filename, local, report)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", f.Filename, err))
				mu.Unlock()
				return
			}
			log.Info("downloaded", "file", f.Filename, "size", f.FileSize())
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &DownloadResult{
		Repo: repo, Revision: cfg.revision, Dir: dir,
		Files: results, Total: total, Elapsed: time.Since(start),
	}, nil
}

func (c *Client) downloadWithRetry(ctx context.Context, cfg *downloadConfig, repo, filename, target string, report func(string, int64)) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	u := c.fileURL(repo, cfg.revision, filename)

	// fetch reports absolute offsets; only the change reaches the total.
	var reported int64
	progress := func(offset int64) {
		report(filename, offset-reported)
		reported = offset
	}

	var lastErr error
	for attempt := range MaxDownloadRetries {
		if attempt > 0 {
			logutil.FromContext(ctx).Warn("retrying download", "file", filename, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.retryDelay):
			}
		}
		lastErr = c.fetch(ctx, u, target, progress)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrModelNotFound) || errors.Is(lastErr, ErrUnauthorized) || ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDownloadFailed, MaxDownloadRetries, lastErr)
}

// fetch downloads u into target via target.download, resuming with a Range
// request when a partial file exists. progress receives the bytes on disk.
func (c *Client) fetch(ctx context.Context, u, target string, progress func(int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	tmp := target + partialSuffix
	var existing int64
	if st, err := os.Stat(tmp); err == nil {
		existing = st.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The partial file is already complete.
		progress(existing)
		return os.Rename(tmp, target)
	case resp.StatusCode == http.StatusOK && existing > 0:
		existing = 0
	default:
		if err := handleResponseError(resp); err != nil {
			return err
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if existing > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	progress(existing)
	f, err := os.OpenFile(tmp, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, DefaultChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return err
			}
			existing += int64(n)
			progress(existing)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: %v", ErrNetworkError, rerr)
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// localPath joins a repository file name onto dir and rejects names that
// would escape it.
func localPath(dir, name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: unsafe file name %q", ErrInvalidResponse, name)
	}
	return filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func filterFiles(siblings []Sibling, include, exclude []string) []Sibling {
	var out []Sibling
	for _, s := range siblings {
		if len(include) > 0 && !matchAny(include, s.Filename) {
			continue
		}
		if matchAny(exclude, s.Filename) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// matchAny matches name against globs. "*" also crosses directories, and a
// pattern without a slash is tried against the base name.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == "*" || p == "**" {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := path.Match(p, path.Base(name)); ok {
				return true
			}
		}
	}
	return false
}
