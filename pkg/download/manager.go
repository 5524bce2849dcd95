// Package download implements the model download manager:
// resumable range-GET downloads, atomic partial/extracting handling, and
// archive extraction for directory-shaped models.
package download

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dictation-tools/dictator/pkg/logging"
)

// Model describes one catalog entry.
type Model struct {
	ID string
	Filename string
	URL string
	SizeMB int64
	IsDirectory bool
}

// Progress is emitted periodically while a download streams.
type Progress struct {
	ModelID string
	Downloaded int64
	Total int64
	Percentage float64
	Cancelled bool
}

const progressEmitInterval = 250 * time.Millisecond

// Manager tracks per-model cancellation and drives the download/extract
// pipeline into a directory of installed models.
type Manager struct {
	dir string
	client *http.Client
	log logging.Logger

	mu sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewManager(dir string, log logging.Logger) *Manager {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Manager{
		dir: dir,
		client: &http.Client{Timeout: 0}, // per-request deadlines via context
		log: log,
		cancels: make(map[string]context.CancelFunc),
	}
}

func (m *Manager) finalPath(model Model) string { return filepath.Join(m.dir, model.Filename) }
func (m *Manager) partialPath(model Model) string { return m.finalPath(model) + ".partial" }
func (m *Manager) extractingPath(model Model) string {
	return m.finalPath(model) + ".extracting"
}

// Cancel notifies the download in progress for modelID, if any.
func (m *Manager) Cancel(modelID string) {
	m.mu.Lock()
	cancel, ok := m.cancels[modelID]
	delete(m.cancels, modelID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// SweepStaleExtractions removes any `.extracting` directories left
// behind by a prior run that was killed mid-extraction.
func (m *Manager) SweepStaleExtractions()error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".extracting") {
			if err := os.RemoveAll(filepath.Join(m.dir, e.Name())); err != nil {
				m.log.Warn("failed to sweep stale extraction directory", "path", e.Name(), "err", err)
			}
		}
	}
	return nil
}

// Download fetches model into the install directory, resuming a
// `.partial` if one exists, then (for directory models) extracts it.
// onProgress may be nil.
func (m *Manager) Download(ctx context.Context, model Model, onProgress func(Progress)) error {
	if _, err := os.Stat(m.finalPath(model)); err == nil {
		_ = os.Remove(m.partialPath(model))
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[model.ID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, model.ID)
		m.mu.Unlock()
		cancel()
	}()

	if err := m.downloadToPartial(ctx, model, onProgress); err != nil {
		return err
	}

	if !model.IsDirectory {
		return os.Rename(m.partialPath(model), m.finalPath(model))
	}
	return m.extractArchive(model)
}

func (m *Manager) downloadToPartial(ctx context.Context, model Model, onProgress func(Progress)) error {
	partial := m.partialPath(model)

	var resumeOffset int64
	if info, err := os.Stat(partial); err == nil {
		resumeOffset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusOK:
		// Server ignored the Range request; restart from scratch.
		resumeOffset = 0
		flags |= os.O_TRUNC
	default:
		return fmt.Errorf("download failed: server returned %d", resp.StatusCode)
	}

	total := resp.ContentLength + resumeOffset

	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open partial file: %w", err)
	}
	defer f.Close()

	downloaded := resumeOffset
	lastEmit := time.Time{}
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			if onProgress != nil {
				onProgress(Progress{ModelID: model.ID, Downloaded: downloaded, Total: total, Cancelled: true})
			}
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write partial file: %w", werr)
			}
			downloaded += int64(n)
			if onProgress != nil && time.Since(lastEmit) >= progressEmitInterval {
				pct := 0.0
				if total > 0 {
					pct = float64(downloaded) / float64(total) * 100
				}
				onProgress(Progress{ModelID: model.ID, Downloaded: downloaded, Total: total, Percentage: pct})
				lastEmit = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read download stream: %w", readErr)
		}
	}

	if total > 0 && downloaded != total {
		_ = os.Remove(partial)
		return fmt.Errorf("download size mismatch: got %d bytes, expected %d", downloaded, total)
	}
	if onProgress != nil {
		onProgress(Progress{ModelID: model.ID, Downloaded: downloaded, Total: total, Percentage: 100})
	}
	return nil
}

// extractArchive un-gzips and un-tars the partial into a sibling
// `.extracting` directory, then promotes either that directory or its
// sole top-level child into the final path.
func (m *Manager) extractArchive(model Model) error {
	partial := m.partialPath(model)
	extracting := m.extractingPath(model)

	if err := os.RemoveAll(extracting); err != nil {
		return fmt.Errorf("clear stale extraction dir: %w", err)
	}
	if err := os.MkdirAll(extracting, 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}

	if err := untarGzip(partial, extracting); err != nil {
		_ = os.RemoveAll(extracting)
		return fmt.Errorf("extract archive: %w", err)
	}
	_ = os.Remove(partial)

	topLevel, single, err := soleTopLevelDir(extracting)
	if err != nil {
		_ = os.RemoveAll(extracting)
		return err
	}

	final := m.finalPath(model)
	if single {
		if err := os.Rename(topLevel, final); err != nil {
			_ = os.RemoveAll(extracting)
			return fmt.Errorf("promote extracted directory: %w", err)
		}
		return os.RemoveAll(extracting)
	}
	return os.Rename(extracting, final)
}

func untarGzip(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// soleTopLevelDir reports whether extracting contains exactly one entry
// and it's a directory.
func soleTopLevelDir(extracting string) (path string, single bool, err error) {
	entries, err := os.ReadDir(extracting)
	if err != nil {
		return "", false, err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extracting, entries[0].Name()), true, nil
	}
	return "", false, nil
}
