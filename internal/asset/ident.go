// Package asset defines asset identities, asset types and content fingerprints.
package asset

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("asset: path is outside the project root")

// Ident is the slash-separated path of an asset relative to the project root.
// It is the key for an asset across runs and stays stable until the file moves.
type Ident string

// NewIdent derives an Ident for assetPath, which must live under root.
func NewIdent(root, assetPath string) (Ident, error) {
	rel, err := filepath.Rel(root, assetPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, assetPath)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, assetPath)
	}
	return Ident(rel), nil
}

func (i Ident) String() string {
	return string(i)
}

// Base returns the last path segment.
func (i Ident) Base() string {
	return path.Base(string(i))
}

// Ext returns the lowercase extension including the dot.
func (i Ident) Ext() string {
	return strings.ToLower(path.Ext(string(i)))
}

// Input is one resolved file handed to a sync pass.
type Input struct {
	Ident Ident
	Path  string // absolute path on disk
}
