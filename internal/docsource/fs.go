package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ragpipe/ragpipe/internal/log"
)

// defaultExtensions are the file types indexed when no override is given.
var defaultExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".c":    true,
	".cpp":  true,
	".h":    true,
	".rs":   true,
	".rb":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".html": true,
	".sql":  true,
}

// MaxFileSize caps how large a file may be before it is skipped rather
// than chunked.
const MaxFileSize = 10 << 20 // 10MB

// FSConfig configures a filesystem source.
type FSConfig struct {
	// Dir is the corpus root. A path to a single file is also accepted.
	Dir string

	// Extensions overrides the indexed file types, e.g. [".md", ".txt"].
	Extensions []string
}

// FS loads documents from a directory tree. Files are read through
// os.Root so symlinks cannot escape the corpus root, and a .gitignore at
// the root is honored.
type FS struct {
	dir        string
	extensions map[string]bool
	logger     log.Logger
}

// NewFS validates the corpus path and constructs a filesystem source.
func NewFS(cfg FSConfig, logger log.Logger) (*FS, error) {
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", cfg.Dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("source path %q: %w", cfg.Dir, err)
	}

	extMap := make(map[string]bool, len(cfg.Extensions))
	if len(cfg.Extensions) > 0 {
		for _, ext := range cfg.Extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultExtensions {
			extMap[k] = v
		}
	}

	return &FS{dir: abs, extensions: extMap, logger: logger}, nil
}

// Load walks the corpus and returns every readable, supported document.
// Unsupported, oversized, binary, and ignored files are skipped with a
// log entry; a skipped file never fails the load.
func (s *FS) Load(ctx context.Context) ([]Document, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		doc, err := s.loadFile(filepath.Dir(s.dir), filepath.Base(s.dir), info.Size())
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var gitIgnore *ignore.GitIgnore
	if _, err := os.Stat(filepath.Join(s.dir, ".gitignore")); err == nil {
		gitIgnore, err = ignore.CompileIgnoreFile(filepath.Join(s.dir, ".gitignore"))
		if err != nil {
			s.logger.Warn("malformed .gitignore, continuing without it", "error", err)
			gitIgnore = nil
		}
	}

	var docs []Document
	err = filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}

		if info.IsDir() {
			if relPath != "." && (strings.HasPrefix(info.Name(), ".") ||
				(gitIgnore != nil && gitIgnore.MatchesPath(relPath))) {
				return filepath.SkipDir
			}
			return nil
		}
		if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
			return nil
		}

		if !s.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if info.Size() > MaxFileSize {
			s.logger.Warn("skipping oversized file", "path", relPath, "size", info.Size())
			return nil
		}

		doc, err := s.loadFile(s.dir, relPath, info.Size())
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", relPath, "error", err)
			return nil
		}
		if doc.Text == "" {
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source directory: %w", err)
	}

	s.logger.Debug("loaded documents", "dir", s.dir, "count", len(docs))
	return docs, nil
}

// loadFile reads one file through a rooted filesystem handle.
func (s *FS) loadFile(rootDir, relPath string, size int64) (Document, error) {
	root, err := os.OpenRoot(rootDir)
	if err != nil {
		return Document{}, fmt.Errorf("opening root %q: %w", rootDir, err)
	}
	defer func() { _ = root.Close() }()

	content, err := root.ReadFile(relPath)
	if err != nil {
		return Document{}, fmt.Errorf("reading %q: %w", relPath, err)
	}
	if !utf8.Valid(content) {
		return Document{}, fmt.Errorf("file %q is not valid UTF-8", relPath)
	}

	return Document{
		ID:   DocumentID(relPath),
		Path: relPath,
		Text: string(content),
		Metadata: map[string]string{
			"file_path":  relPath,
			"file_name":  filepath.Base(relPath),
			"file_ext":   strings.ToLower(filepath.Ext(relPath)),
			"file_size":  fmt.Sprintf("%d", size),
			"indexed_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}
