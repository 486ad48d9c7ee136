package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// DefaultStorageDir is the default directory for durable credential state,
// relative to the user's home directory.
const DefaultStorageDir = ".config/authsession/store"

// ErrInvalidKey is returned for keys that cannot be used as a file name.
var ErrInvalidKey = errors.New("invalid storage key")

// DiskBacking is a durable Backing that keeps one file per key in a flat
// directory. Several processes may share the same directory; each of them
// sees the others' writes on the next read.
//
// SECURITY: files are created with 0600 and the directory with 0700.
type DiskBacking struct {
	dir string
	dv  *diskv.Diskv

	mu  sync.Mutex
	own map[string]ownState // last state this process wrote per key
}

type ownState struct {
	value   string
	present bool
}

// DiskBackingConfig configures a DiskBacking.
type DiskBackingConfig struct {
	// Dir is the storage directory. Defaults to ~/.config/authsession/store.
	Dir string
}

// NewDiskBacking creates the storage directory if needed and returns a
// backing rooted at it.
func NewDiskBacking(cfg DiskBackingConfig) (*DiskBacking, error) {
	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStorageDir)
	}

	tempDir := filepath.Clean(dir) + ".tmp"
	for _, d := range []string{dir, tempDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:  dir,
		Transform: flatTransform,
		// No read cache: other processes write the same files.
		CacheSizeMax: 0,
		// Writes land through a rename so watchers never observe partial files.
		TempDir:  tempDir,
		PathPerm: 0700,
		FilePerm: 0600,
	})

	return &DiskBacking{
		dir: dir,
		dv:  dv,
		own: make(map[string]ownState),
	}, nil
}

// Dir returns the storage directory.
func (b *DiskBacking) Dir() string {
	return b.dir
}

// Read implements Backing. Unreadable keys are reported as absent.
func (b *DiskBacking) Read(key string) (string, bool) {
	if validateKey(key) != nil || !b.dv.Has(key) {
		return "", false
	}
	data, err := b.dv.Read(key)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Write implements Backing.
func (b *DiskBacking) Write(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.dv.Write(key, []byte(value)); err != nil {
		return err
	}
	b.own[key] = ownState{value: value, present: true}
	return nil
}

// Erase implements Backing.
func (b *DiskBacking) Erase(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.own[key] = ownState{}
	if !b.dv.Has(key) {
		return nil
	}
	if err := b.dv.Erase(key); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys implements Backing.
func (b *DiskBacking) Keys(prefix string) ([]string, error) {
	cancel := make(chan struct{})
	defer close(cancel)

	var keys []string
	for key := range b.dv.KeysPrefix(prefix, cancel) {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// IsOwnState reports whether the given state of key is exactly what this
// process last wrote (or removed). Change observers use it to skip events
// caused by their own writes.
func (b *DiskBacking) IsOwnState(key, value string, present bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.own[key]
	if !ok {
		return false
	}
	if state.present != present {
		return false
	}
	return !present || state.value == value
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
