// Package staging holds simulated uploads in a confined local directory and
// serves bounded, encoding-tolerant previews of them. Files are created and
// read, never rewritten by the service; cleanup is operator-managed.
package staging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/relayops/sftprelay/core/infra/logging"
	"github.com/relayops/sftprelay/core/relay/filename"
)

const component = "staging"

// StagedFile describes one file under the staging root.
type StagedFile struct {
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a confined staging area. Concurrent writers to the same
// sanitized name race last-write-wins; that is accepted and documented.
type Store struct {
	root         string
	previewLines int
}

// NewStore returns a Store rooted at dir, previewing at most previewLines
// lines per file.
func NewStore(dir string, previewLines int) *Store {
	return &Store{root: dir, previewLines: previewLines}
}

// Root returns the staging root path.
func (s *Store) Root() string { return s.root }

// Write stages the payload under the root and returns the absolute path.
// The root is created on first use.
func (s *Store) Write(name filename.Sanitized, payload []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return "", fmt.Errorf("create staging root: %w", err)
	}
	dst, err := filename.JoinUnder(s.root, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, payload, 0o640); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	return dst, nil
}

// List returns the regular files directly under the staging root, newest
// first. A file whose metadata cannot be read is skipped, not fatal.
func (s *Store) List() ([]StagedFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []StagedFile{}, nil
		}
		return nil, fmt.Errorf("list staging root: %w", err)
	}

	files := make([]StagedFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logging.Warn(component, "skipping unreadable staged file", "name", entry.Name(), "error", err)
			continue
		}
		files = append(files, StagedFile{
			Name:         entry.Name(),
			SizeBytes:    info.Size(),
			LastModified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].LastModified.After(files[j].LastModified)
	})
	return files, nil
}

// Preview returns at most the configured number of lines from a staged
// file, trailing line terminators stripped and invalid UTF-8 replaced with
// the replacement character. When the file holds more lines, a single
// truncation sentinel is appended.
func (s *Store) Preview(name filename.Sanitized) ([]string, error) {
	path, err := filename.JoinUnder(s.root, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) // #nosec G304 -- path is confinement-checked above.
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("staged file %s not found", name)
		}
		return nil, fmt.Errorf("open staged file %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	reader := bufio.NewReader(f)
	lines := make([]string, 0, s.previewLines)
	for len(lines) < s.previewLines {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\r\n")
			lines = append(lines, strings.ToValidUTF8(trimmed, "�"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read staged file %s: %w", name, err)
		}
	}

	// More content past the cap means the file was truncated.
	if _, err := reader.ReadByte(); err == nil {
		lines = append(lines, s.truncationSentinel())
	} else if err != io.EOF {
		return nil, fmt.Errorf("read staged file %s: %w", name, err)
	}
	return lines, nil
}

func (s *Store) truncationSentinel() string {
	return fmt.Sprintf("... [File truncated - Showing first %d lines] ...", s.previewLines)
}
