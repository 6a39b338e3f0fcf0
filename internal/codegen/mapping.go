// Package codegen renders the path to identifier mapping of a target into
// source files that application code can import.
package codegen

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/runway-sync/runway/internal/state"
)

var ErrKeyConflict = errors.New("codegen: key conflict")

type Options struct {
	// Flatten emits one table keyed by full path instead of nesting by
	// directory.
	Flatten bool
	// StripPrefix is removed from the front of every path that has it.
	StripPrefix string
	// StripExtension drops the file extension from the last segment.
	StripExtension bool
}

// Node is either a leaf holding an identifier or a table of children.
type Node struct {
	ID       string
	Children map[string]*Node
}

func newTable() *Node {
	return &Node{Children: make(map[string]*Node)}
}

func (n *Node) IsLeaf() bool {
	return n.Children == nil
}

// Keys returns the child keys in lexicographic order.
func (n *Node) Keys() []string {
	return slices.Sorted(maps.Keys(n.Children))
}

// NewMapping builds the tree of records that have an identifier.
func NewMapping(records *state.RecordSet, opts Options) (*Node, error) {
	root := newTable()
	prefix := strings.Trim(opts.StripPrefix, "/")

	for _, ident := range records.Idents() {
		rec, _ := records.Get(ident)
		if rec.ID == "" {
			continue
		}

		key := ident.String()
		if prefix != "" {
			if rest, ok := strings.CutPrefix(key, prefix+"/"); ok {
				key = rest
			}
		}
		if opts.StripExtension {
			key = strings.TrimSuffix(key, path.Ext(key))
		}

		var err error
		if opts.Flatten {
			err = insert(root, []string{key}, rec.ID)
		} else {
			err = insert(root, strings.Split(key, "/"), rec.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ident, err)
		}
	}
	return root, nil
}

func insert(root *Node, segments []string, id string) error {
	node := root
	for i, seg := range segments {
		last := i == len(segments)-1
		child, exists := node.Children[seg]

		switch {
		case last && exists:
			return fmt.Errorf("%w: '%s' is produced by more than one asset", ErrKeyConflict, strings.Join(segments, "/"))
		case last:
			node.Children[seg] = &Node{ID: id}
		case exists && child.IsLeaf():
			return fmt.Errorf("%w: '%s' is both an asset and a directory", ErrKeyConflict, strings.Join(segments[:i+1], "/"))
		case exists:
			node = child
		default:
			child = newTable()
			node.Children[seg] = child
			node = child
		}
	}
	return nil
}
