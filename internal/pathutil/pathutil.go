// Package pathutil resolves caller paths against a configured remote root.
package pathutil

import "strings"

// Separator is the remote path separator. SFTP paths are always slash separated.
const Separator = "/"

// NormalizeRoot returns root with exactly one trailing separator.
// An empty root stays empty so that paths resolve against the login directory.
func NormalizeRoot(root string) string {
	if root == "" {
		return ""
	}
	return strings.TrimRight(collapse(root), Separator) + Separator
}

// Prefix resolves path against root. Leading separators are stripped from path before
// concatenation and separator runs are collapsed, so the result never contains "//".
// Path is always treated as logical: a path that happens to spell the root is still
// placed beneath it.
func Prefix(root, path string) string {
	root = NormalizeRoot(root)
	rel := strings.TrimLeft(collapse(path), Separator)
	return root + rel
}

// Join builds a listing path: name alone when dir is empty, dir/name otherwise.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimRight(dir, Separator) + Separator + name
}

// Dirname returns the parent of path, or "" for top level entries.
func Dirname(path string) string {
	path = strings.TrimRight(path, Separator)
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	if i == 0 {
		return Separator
	}
	return path[:i]
}

// collapse replaces every run of separators with a single one.
func collapse(p string) string {
	if !strings.Contains(p, Separator+Separator) {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSep := false
	for _, r := range p {
		isSep := string(r) == Separator
		if isSep && prevSep {
			continue
		}
		prevSep = isSep
		b.WriteRune(r)
	}
	return b.String()
}
