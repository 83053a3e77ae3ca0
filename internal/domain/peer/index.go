package peer

import (
	"path/filepath"
	"slices"
	"strings"
)

// Index groups image paths by peer id. Within a peer, paths keep the order
// in which they were indexed.
type Index map[ID][]string

// BuildIndex appends every path, cleaned, to its peer's bucket. Paths are
// not deduplicated; callers pass a set in a deterministic order.
func BuildIndex(paths []string) Index {
	idx := make(Index)
	for _, p := range paths {
		p = CleanPath(p)
		id := IDOf(p)
		idx[id] = append(idx[id], p)
	}
	return idx
}

// IDs returns every peer id in ascending order.
func (idx Index) IDs() []ID {
	ids := make([]ID, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Candidates returns every peer id except exclude, in ascending order.
func (idx Index) Candidates(exclude ID) []ID {
	ids := make([]ID, 0, len(idx))
	for _, id := range idx.IDs() {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

// Images returns the number of indexed paths across all peers.
func (idx Index) Images() int {
	n := 0
	for _, paths := range idx {
		n += len(paths)
	}
	return n
}

// CleanPath returns the lexical shortest form of an image reference, so
// "./a//1.png" and "a/1.png" name the same image. The empty reference stays
// empty.
func CleanPath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

// SortPaths sorts path references component by component, so "a/x" sorts
// before "a-b/x" even though '-' precedes '/' byte-wise.
func SortPaths(paths []string) {
	slices.SortFunc(paths, ComparePaths)
}

// ComparePaths orders two path references by their components.
func ComparePaths(a, b string) int {
	return slices.Compare(components(a), components(b))
}

func components(p string) []string {
	p = filepath.ToSlash(filepath.Clean(p))
	if strings.HasPrefix(p, "/") {
		return append([]string{"/"}, splitNonEmpty(p[1:])...)
	}
	return splitNonEmpty(p)
}

func splitNonEmpty(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
