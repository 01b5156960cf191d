// Package sandbox resolves client-supplied path strings against the
// server's home directory and refuses anything that would escape it,
// including via ".." segments, absolute paths, or symlinks whose target
// lies outside the home directory. Paths are canonicalized (every
// existing component's symlinks resolved) before the containment check,
// so the comparison always runs on byte-identical normalized forms.
package sandbox

import (
	"os"
	"path/filepath"

	"github.com/marmos91/cape/internal/capeerr"
)

// VerifiedPath is an absolute path proven to lie inside the server's
// home directory. It is cheap to construct and carries no file handle;
// the operation that created it is responsible for any subsequent I/O.
type VerifiedPath struct {
	abs string
}

// String returns the verified absolute path.
func (p VerifiedPath) String() string {
	return p.abs
}

// Sandbox confines path resolution to a single canonicalized home
// directory.
type Sandbox struct {
	home string
}

// New canonicalizes home and returns a Sandbox rooted there. home must
// already exist.
func New(home string) (*Sandbox, error) {
	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, capeerr.Wrap(capeerr.IOError, err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, capeerr.Wrap(capeerr.IOError, err)
	}
	return &Sandbox{home: canon}, nil
}

// Home returns the canonicalized home directory.
func (s *Sandbox) Home() string {
	return s.home
}

// ResolveExisting returns a VerifiedPath iff the canonical absolute form
// of home/rel exists on disk and has the home directory as a prefix.
// Used for GET, LIST, DELETE.
func (s *Sandbox) ResolveExisting(rel string) (VerifiedPath, error) {
	joined, err := s.join(rel)
	if err != nil {
		return VerifiedPath{}, err
	}

	canon, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
	}
	if !s.contains(canon) {
		return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
	}
	return VerifiedPath{abs: canon}, nil
}

// ResolveForCreate returns a VerifiedPath whose parent directory exists
// inside home and whose canonical form would lie inside home once
// created. The target itself need not exist. Used for PUT and MKDIR.
func (s *Sandbox) ResolveForCreate(rel string) (VerifiedPath, error) {
	joined, err := s.join(rel)
	if err != nil {
		return VerifiedPath{}, err
	}

	parent := filepath.Dir(joined)
	canonParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
	}
	if !s.contains(canonParent) {
		return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
	}

	target := filepath.Join(canonParent, filepath.Base(joined))
	if !s.contains(target) {
		return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
	}

	// If the target itself already exists (e.g. as a symlink), its
	// resolved form must still be contained.
	if canonTarget, err := filepath.EvalSymlinks(target); err == nil {
		if !s.contains(canonTarget) {
			return VerifiedPath{}, capeerr.New(capeerr.ResolveError)
		}
		return VerifiedPath{abs: canonTarget}, nil
	}

	return VerifiedPath{abs: target}, nil
}

// Exists reports whether p currently exists on disk.
func Exists(p VerifiedPath) bool {
	_, err := os.Stat(p.abs)
	return err == nil
}

// IsDir reports whether p exists and is a directory.
func IsDir(p VerifiedPath) bool {
	info, err := os.Stat(p.abs)
	return err == nil && info.IsDir()
}

// join rejects an empty rel and joins it onto home without yet resolving
// symlinks.
func (s *Sandbox) join(rel string) (string, error) {
	if rel == "" {
		return "", capeerr.New(capeerr.ResolveError)
	}
	return filepath.Join(s.home, rel), nil
}

// contains reports whether canon is equal to, or a descendant of, home.
// Both must already be canonicalized absolute paths for this comparison
// to be meaningful.
func (s *Sandbox) contains(canon string) bool {
	if canon == s.home {
		return true
	}
	rel, err := filepath.Rel(s.home, canon)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}
