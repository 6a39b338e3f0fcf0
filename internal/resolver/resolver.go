// Package resolver turns the input globs of a project into an ordered list of
// asset files.
package resolver

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/runway-sync/runway/internal/asset"
	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFileName = ".runwayignore"

var defaultIgnoreLines = []string{
	config.DataDirName + "/",
	config.StateFileName,
	IgnoreFileName,
	// temp files left by atomic writes
	".*.tmp-*",
	"*.tmp",
	// vcs
	".git",
	".svn",
	// editors and OS
	".vscode",
	".idea",
	"*~",
	"*.swp",
	".DS_Store",
	"Thumbs.db",
}

// Resolver matches files under a root against a list of glob patterns.
type Resolver struct {
	root     string
	patterns []string
	ignore   *gitignore.GitIgnore
}

// New validates the patterns and loads ignore rules from root.
func New(root string, patterns []string) (*Resolver, error) {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./")
		if p == "" || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return nil, fmt.Errorf("%w: input glob '%s' must be relative to the project root", config.ErrConfig, p)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid input glob '%s'", config.ErrConfig, p)
		}
		cleaned = append(cleaned, p)
	}

	r := &Resolver{root: root, patterns: cleaned}
	r.loadIgnore()
	return r, nil
}

func (r *Resolver) loadIgnore() {
	lines := slices.Clone(defaultIgnoreLines)

	ignorePath := filepath.Join(r.root, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("read ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	r.ignore = gitignore.CompileIgnoreLines(lines...)
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns every file matched by the patterns, ordered by pattern and
// lexicographically within a pattern, with duplicates dropped.
func (r *Resolver) Resolve() ([]asset.Input, error) {
	fsys := os.DirFS(r.root)
	seen := make(map[asset.Ident]struct{})
	var inputs []asset.Input

	for _, pattern := range r.patterns {
		base, _ := doublestar.SplitPattern(pattern)
		if base != "." && !utils.DirExists(filepath.Join(r.root, filepath.FromSlash(base))) {
			slog.Debug("input base does not exist", "glob", pattern, "base", base)
			continue
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("glob '%s': %w", pattern, err)
		}
		slices.Sort(matches)

		for _, rel := range matches {
			ident := asset.Ident(rel)
			if _, dup := seen[ident]; dup {
				continue
			}
			if r.ignore.MatchesPath(rel) {
				continue
			}
			seen[ident] = struct{}{}
			inputs = append(inputs, asset.Input{
				Ident: ident,
				Path:  filepath.Join(r.root, filepath.FromSlash(rel)),
			})
		}
	}

	return inputs, nil
}

// Match reports whether the file at absPath would be resolved.
func (r *Resolver) Match(absPath string) (asset.Ident, bool) {
	ident, err := asset.NewIdent(r.root, absPath)
	if err != nil {
		return "", false
	}
	if r.ignore.MatchesPath(ident.String()) {
		return "", false
	}
	for _, pattern := range r.patterns {
		if ok, _ := doublestar.Match(pattern, ident.String()); ok {
			return ident, true
		}
	}
	return "", false
}

// WatchRoots returns the absolute directories that must be watched to observe
// every file the patterns can match: the fixed prefix of each pattern.
// Nested roots are folded into their parent.
func (r *Resolver) WatchRoots() []string {
	var roots []string
	for _, pattern := range r.patterns {
		base, _ := doublestar.SplitPattern(pattern)
		roots = append(roots, filepath.Join(r.root, filepath.FromSlash(base)))
	}
	slices.Sort(roots)
	roots = slices.Compact(roots)

	var out []string
	for _, root := range roots {
		nested := slices.ContainsFunc(out, func(parent string) bool {
			return utils.IsWithin(parent, root)
		})
		if !nested {
			out = append(out, root)
		}
	}
	return out
}
