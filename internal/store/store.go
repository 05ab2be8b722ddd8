// Package store is the path-addressed document store surveys live in.
//
// Documents form a single JSON-like tree. A path such as
// "surveys/42/votes/U123" names a subtree; reads return the whole subtree
// (map[string]any for branches, string/float64/bool for leaves, nil when
// nothing is stored) and writes replace it. Empty branches do not exist: a
// map with no leaves reads back as nil.
//
// Implementations persist the tree as flattened leaf rows keyed by their full
// path, each holding the JSON encoding of a scalar.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UpdateFunc receives the current subtree at a path and returns its
// replacement. Returning an error aborts the update without writing.
type UpdateFunc func(current any) (any, error)

// Store is the document store the survey repository is built on
type Store interface {
	Get(ctx context.Context, path string) (any, error)
	Set(ctx context.Context, path string, value any) error
	// Update is a transactional read-modify-write of the subtree at path.
	Update(ctx context.Context, path string, fn UpdateFunc) error
	Close() error
}

// Join builds a path from segments
func Join(segments ...string) string {
	return Clean(strings.Join(segments, "/"))
}

// Clean trims leading, trailing and duplicate slashes. The root path is "".
func Clean(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Keys returns the keys of a branch in ascending order, which is the order
// children are iterated in.
func Keys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// within reports whether row is path itself or one of its descendants
func within(row, path string) bool {
	return path == "" || row == path || strings.HasPrefix(row, path+"/")
}

// ancestors returns the proper ancestors of path, nearest last
func ancestors(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/"))
	}
	return out
}

// flatten encodes value as leaf rows under path
func flatten(path string, value any) (map[string]string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", path, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	leaves := make(map[string]string)
	var walk func(p string, v any) error
	walk = func(p string, v any) error {
		switch node := v.(type) {
		case nil:
			return nil
		case map[string]any:
			for k, child := range node {
				if k == "" || strings.Contains(k, "/") {
					return fmt.Errorf("invalid key %q under %q", k, p)
				}
				if err := walk(Join(p, k), child); err != nil {
					return err
				}
			}
			return nil
		case []any:
			return fmt.Errorf("arrays are not supported at %q", p)
		default:
			if p == "" {
				return fmt.Errorf("cannot store a scalar at the root")
			}
			enc, err := json.Marshal(node)
			if err != nil {
				return err
			}
			leaves[p] = string(enc)
			return nil
		}
	}
	if err := walk(path, generic); err != nil {
		return nil, err
	}
	return leaves, nil
}

// build reassembles the subtree at path from leaf rows. Rows outside path
// are ignored.
func build(path string, rows map[string]string) (any, error) {
	if raw, ok := rows[path]; ok && path != "" {
		return decodeLeaf(path, raw)
	}

	var root map[string]any
	for row, raw := range rows {
		if !within(row, path) || row == path {
			continue
		}
		rel := row
		if path != "" {
			rel = strings.TrimPrefix(row, path+"/")
		}
		leaf, err := decodeLeaf(row, raw)
		if err != nil {
			return nil, err
		}
		if root == nil {
			root = make(map[string]any)
		}
		segments := strings.Split(rel, "/")
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = leaf
	}
	if root == nil {
		return nil, nil
	}
	return root, nil
}

func decodeLeaf(path, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("corrupt value at %q: %w", path, err)
	}
	return v, nil
}

// replaced lists the existing rows a write at path removes: the subtree
// itself plus any ancestor stored as a leaf.
func replaced(path string, rows []string) []string {
	anc := make(map[string]bool)
	for _, a := range ancestors(path) {
		anc[a] = true
	}
	var out []string
	for _, row := range rows {
		if within(row, path) || anc[row] {
			out = append(out, row)
		}
	}
	return out
}
