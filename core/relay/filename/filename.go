// Package filename turns untrusted client filenames into a Sanitized value
// that is the only form ever joined to a directory, plus the confinement
// checks applied at every join site. Downstream packages accept Sanitized,
// never a raw string, so traversal is unrepresentable past this boundary.
package filename

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalid marks a name that failed character, extension, or
	// traversal validation.
	ErrInvalid = errors.New("invalid_filename")
	// ErrPathEscape marks a joined path that resolved outside its root.
	ErrPathEscape = errors.New("path_escape")
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Sanitized is a filename that passed validation. The zero value is invalid
// and rejected by every join helper.
type Sanitized struct {
	name string
}

func (s Sanitized) String() string { return s.name }

// Sanitize validates a raw client filename against the strict token form
// and the extension allow-list. Path components are stripped, not
// reinterpreted: only the base name is ever considered.
func Sanitize(raw string, allowedExtensions []string) (Sanitized, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Sanitized{}, fmt.Errorf("%w: empty filename", ErrInvalid)
	}

	// Clients on any platform may send separator-laden names.
	base := path.Base(strings.ReplaceAll(trimmed, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return Sanitized{}, fmt.Errorf("%w: %q has no usable base name", ErrInvalid, raw)
	}
	if !tokenPattern.MatchString(base) {
		return Sanitized{}, fmt.Errorf("%w: %q contains disallowed characters", ErrInvalid, base)
	}

	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" {
		return Sanitized{}, fmt.Errorf("%w: %q has no extension", ErrInvalid, base)
	}
	if strings.TrimSuffix(base, path.Ext(base)) == "" {
		return Sanitized{}, fmt.Errorf("%w: %q has an empty stem", ErrInvalid, base)
	}
	if !extensionAllowed(ext, allowedExtensions) {
		return Sanitized{}, fmt.Errorf("%w: extension %q is not allowed", ErrInvalid, ext)
	}
	return Sanitized{name: base}, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// rejectUnsafe re-checks a Sanitized value before any join. Sanitize can
// never produce these forms; the joins do not trust that alone.
func rejectUnsafe(name Sanitized) error {
	if name.name == "" {
		return fmt.Errorf("%w: empty sanitized name", ErrPathEscape)
	}
	if strings.ContainsAny(name.name, `/\`) || name.name == "." || name.name == ".." {
		return fmt.Errorf("%w: %q is not a bare file name", ErrPathEscape, name.name)
	}
	return nil
}

// JoinUnder joins a sanitized name to a local root directory and verifies
// the result stays strictly inside the root. The name-level checks are not
// trusted as the sole guard; this runs at every local join site.
func JoinUnder(root string, name Sanitized) (string, error) {
	if err := rejectUnsafe(name); err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: resolve root %q: %v", ErrPathEscape, root, err)
	}
	joined := filepath.Join(absRoot, name.name)
	rel, err := filepath.Rel(absRoot, joined)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q resolves outside %q", ErrPathEscape, name.name, root)
	}
	return joined, nil
}

// JoinRemote joins a sanitized name to a remote directory using slash
// semantics and verifies the remote root remains a strict prefix.
func JoinRemote(dir string, name Sanitized) (string, error) {
	if err := rejectUnsafe(name); err != nil {
		return "", err
	}
	base := path.Clean(dir)
	if base == "" {
		base = "."
	}
	joined := path.Join(base, name.name)

	prefix := base + "/"
	if base == "/" {
		prefix = "/"
	}
	if base == "." {
		if path.IsAbs(joined) || joined != name.name {
			return "", fmt.Errorf("%w: %q resolves outside remote root", ErrPathEscape, name.name)
		}
		return joined, nil
	}
	if !strings.HasPrefix(joined, prefix) || joined == base {
		return "", fmt.Errorf("%w: %q resolves outside %q", ErrPathEscape, name.name, dir)
	}
	return joined, nil
}
