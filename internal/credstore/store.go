// Package credstore implements Cape's user credential store: an ordered
// in-memory table of user accounts backed by two files under the server's
// home directory, ".cape/.cape.db" and ".cape/.cape.hash", kept consistent
// by an integrity hash checked at boot and rewritten after every mutation.
//
// Passwords are stored as raw SHA-256 hex; the db format is part of the
// wire-visible contract, so the hash function cannot be swapped without
// invalidating every existing deployment's credential files.
package credstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/hashutil"
)

const (
	dirName  = ".cape"
	dbName   = ".cape.db"
	hashName = ".cape.hash"

	// DefaultAdminUsername and DefaultAdminPassword seed the store the
	// first time it boots against a home directory with no existing
	// credential files.
	DefaultAdminUsername = "admin"
	defaultAdminPassword = "password"
)

// UserAccount is one entry in the credential store.
type UserAccount struct {
	Username   string
	Permission Permission
	PassHash   hashutil.Digest
}

// Store is an ordered, mutex-guarded table of user accounts persisted to
// disk under home/.cape/. The zero value is not usable; construct with
// Open.
type Store struct {
	mu       sync.RWMutex
	dbPath   string
	hashPath string
	order    []string
	byName   map[string]*UserAccount
}

// Open boots the credential store rooted at home/.cape/.
//
// If the directory is missing, it is created. If neither .cape.db nor
// .cape.hash exists, the store is seeded with a single default
// administrator account. If both exist, the db's hash is recomputed and
// compared against .cape.hash; a mismatch is a fatal integrity failure.
// One file present without the other is likewise refused.
func Open(home string) (*Store, error) {
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, capeerr.Wrap(capeerr.IOError, err)
	}

	s := &Store{
		dbPath:   filepath.Join(dir, dbName),
		hashPath: filepath.Join(dir, hashName),
		byName:   make(map[string]*UserAccount),
	}

	_, dbErr := os.Stat(s.dbPath)
	_, hashErr := os.Stat(s.hashPath)
	dbExists := dbErr == nil
	hashExists := hashErr == nil

	switch {
	case !dbExists && !hashExists:
		if err := s.seedDefaultAdmin(); err != nil {
			return nil, err
		}
	case dbExists && hashExists:
		if err := s.loadAndVerify(); err != nil {
			return nil, err
		}
	default:
		return nil, capeerr.New(capeerr.IOError)
	}

	return s, nil
}

func (s *Store) seedDefaultAdmin() error {
	admin := &UserAccount{
		Username:   DefaultAdminUsername,
		Permission: Admin,
		PassHash:   hashutil.Sum256([]byte(defaultAdminPassword)),
	}
	s.order = []string{admin.Username}
	s.byName[admin.Username] = admin
	return s.persist()
}

func (s *Store) loadAndVerify() error {
	dbBytes, err := os.ReadFile(s.dbPath)
	if err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}
	hashBytes, err := os.ReadFile(s.hashPath)
	if err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}

	storedDigest, err := decodeHashFile(hashBytes)
	if err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}
	actualDigest := hashutil.Sum256(dbBytes)
	if !hashutil.ConstantTimeEqual(storedDigest, actualDigest) {
		return capeerr.New(capeerr.IOError)
	}

	records, err := decodeDB(dbBytes)
	if err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}

	s.order = s.order[:0]
	s.byName = make(map[string]*UserAccount, len(records))
	for _, r := range records {
		s.order = append(s.order, r.username)
		s.byName[r.username] = &UserAccount{
			Username:   r.username,
			Permission: r.perm,
			PassHash:   r.hash,
		}
	}
	return nil
}

// persist rewrites .cape.db and .cape.hash atomically (temp file + rename)
// under the caller's lock. Must be called with s.mu held for writing.
func (s *Store) persist() error {
	records := make([]record, 0, len(s.order))
	for _, name := range s.order {
		acc := s.byName[name]
		records = append(records, record{username: acc.Username, perm: acc.Permission, hash: acc.PassHash})
	}

	dbBytes := encodeDB(records)
	if err := atomicWrite(s.dbPath, dbBytes); err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}

	digest := hashutil.Sum256(dbBytes)
	hashBytes := encodeHashFile(digest)
	if err := atomicWrite(s.hashPath, hashBytes); err != nil {
		return capeerr.Wrap(capeerr.IOError, err)
	}
	return nil
}

// atomicWrite writes data to a temp file in path's directory, then renames
// it over path, so a crash mid-write never leaves a truncated file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Authenticate validates username/password against the store, returning the
// matching account's permission on success. Every failure mode - unknown
// user or wrong password - returns the same UserAuth code, so a caller
// cannot distinguish which by return value alone.
func (s *Store) Authenticate(username, password string) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byName[username]
	if !ok {
		return 0, capeerr.New(capeerr.UserAuth)
	}
	given := hashutil.Sum256([]byte(password))
	if !hashutil.ConstantTimeEqual(given, acc.PassHash) {
		return 0, capeerr.New(capeerr.UserAuth)
	}
	return acc.Permission, nil
}

// CreateUser adds a new account. callerPerm is the permission of the
// already-authenticated user requesting the creation; it must be at least
// newPerm, or PermissionError is returned.
func (s *Store) CreateUser(callerPerm Permission, username, password string, newPerm Permission) error {
	if len(username) < 3 || len(username) > 20 || !newPerm.Valid() {
		return capeerr.New(capeerr.CredRuleError)
	}
	if len(password) < 6 || len(password) > 32 {
		return capeerr.New(capeerr.CredRuleError)
	}
	if callerPerm < newPerm {
		return capeerr.New(capeerr.PermissionError)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return capeerr.New(capeerr.UserExists)
	}

	acc := &UserAccount{
		Username:   username,
		Permission: newPerm,
		PassHash:   hashutil.Sum256([]byte(password)),
	}
	s.order = append(s.order, username)
	s.byName[username] = acc
	return s.persist()
}

// DeleteUser removes an account. Only callers with Admin permission may
// delete, and the last remaining Admin account can never be deleted.
func (s *Store) DeleteUser(callerPerm Permission, username string) error {
	if callerPerm != Admin {
		return capeerr.New(capeerr.PermissionError)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, exists := s.byName[username]
	if !exists {
		return capeerr.New(capeerr.UserNoExist)
	}
	if acc.Permission == Admin && s.countAdminsLocked() <= 1 {
		return capeerr.New(capeerr.Failure)
	}

	delete(s.byName, username)
	for i, name := range s.order {
		if name == username {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persist()
}

func (s *Store) countAdminsLocked() int {
	n := 0
	for _, acc := range s.byName {
		if acc.Permission == Admin {
			n++
		}
	}
	return n
}
