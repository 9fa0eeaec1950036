// Package ingestion finds BGV dump files, lists the graphs they contain and
// keeps the index up to date as a compiler writes new dumps.
package ingestion

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DumpExt is the extension of BGV dump files.
const DumpExt = ".bgv"

// IgnoreFile lists gitignore-style patterns, relative to the dump directory,
// of files and directories to leave out.
const IgnoreFile = ".bgvignore"

// DumpFile is a dump found by WalkDumps.
type DumpFile struct {
	// Path is the file path, rooted at the walked directory.
	Path string

	// RelPath is the path relative to the walked directory.
	RelPath string

	// Size is the file size in bytes.
	Size int64
}

// WalkDumps returns every *.bgv file under dir that is not ignored, in
// lexical order.
func WalkDumps(dir string, patterns []string) ([]DumpFile, error) {
	matcher, err := loadMatcher(dir, patterns)
	if err != nil {
		return nil, err
	}

	var dumps []DumpFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if isHidden(d.Name()) || matcher.Match(splitPath(relPath), true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isDump(d.Name()) || matcher.Match(splitPath(relPath), false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		dumps = append(dumps, DumpFile{Path: path, RelPath: relPath, Size: info.Size()})
		return nil
	})
	return dumps, err
}

// loadMatcher combines the extra patterns with the directory's ignore file.
func loadMatcher(dir string, extra []string) (gitignore.Matcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range extra {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	content, err := os.ReadFile(filepath.Join(dir, IgnoreFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), scanner.Err()
}

func isDump(name string) bool {
	return strings.EqualFold(filepath.Ext(name), DumpExt)
}

// isHidden reports dot-directories such as the index directory.
func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
