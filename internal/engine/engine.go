package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/kv"
	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

// tempName is the scratch store a snapshot is loaded into before merging.
const tempName = ".temp"

// Options configure a Manager. UserID is the identity of this device; it is
// passed in rather than looked up so backups and merges stay deterministic.
type Options struct {
	UserID      string
	UserDataDir string
	SyncDir     string
	TrashDir    string // defaults to <UserDataDir>/trash
	Driver      kv.Driver
	Decay       store.DecayFunc
	Version     string // creator version stamped on new stores
}

// Manager orchestrates the user dictionaries of one device: listing,
// backup, snapshot merge, text import/export, upgrade and synchronization.
// A Manager is not safe for concurrent use; callers serialize access.
type Manager struct {
	opts Options
}

// New creates a Manager, filling defaults for unset options.
func New(opts Options) *Manager {
	if opts.TrashDir == "" {
		opts.TrashDir = filepath.Join(opts.UserDataDir, "trash")
	}
	if opts.Decay == nil {
		opts.Decay = store.ExponentialDecay(store.DefaultDecayScale)
	}
	if opts.Driver == nil {
		opts.Driver, _ = kv.Lookup(kv.DefaultBackend)
	}
	if opts.Version == "" {
		opts.Version = store.CurrentVersion
	}
	return &Manager{opts: opts}
}

// UserID returns the local identity.
func (m *Manager) UserID() string { return m.opts.UserID }

// UserSyncDir is where this device publishes its snapshots.
func (m *Manager) UserSyncDir() string {
	return filepath.Join(m.opts.SyncDir, m.opts.UserID)
}

func (m *Manager) userDB(name string) *store.DB {
	return store.New(name, store.Options{
		Dir:     m.opts.UserDataDir,
		Driver:  m.opts.Driver,
		UserID:  m.opts.UserID,
		Version: m.opts.Version,
	})
}

// ListDictionaries returns the names of the user dictionaries in the user
// data directory. A missing directory yields an empty list.
func (m *Manager) ListDictionaries() ([]string, error) {
	entries, err := os.ReadDir(m.opts.UserDataDir)
	if os.IsNotExist(err) {
		logger.Log.Info("user_data_dir_missing", zap.String("dir", m.opts.UserDataDir))
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list user dicts: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), store.Extension)
		if !ok || name == "" || name == tempName {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Backup publishes a snapshot of the named dictionary to this device's sync
// directory. A store owned by another identity is claimed first, so every
// snapshot is published under the identity of the device producing it.
func (m *Manager) Backup(name string) bool {
	ok := m.backup(name)
	backups.WithLabelValues(resultLabel(ok)).Inc()
	return ok
}

func (m *Manager) backup(name string) bool {
	db := m.userDB(name)
	if err := db.Open(store.ReadOnly); err != nil {
		logger.Log.Error("backup_open_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	defer db.Close()

	if owner := db.UserID(); owner != m.opts.UserID {
		logger.Log.Info("backup_claim_ownership",
			zap.String("db", name),
			zap.String("owner", owner),
			zap.String("user_id", m.opts.UserID),
		)
		err := db.Close()
		if err == nil {
			err = db.Open(store.ReadWrite)
		}
		if err == nil {
			err = db.CreateMetadata()
		}
		if err != nil {
			logger.Log.Error("backup_recreate_metadata_failed", zap.String("db", name), zap.Error(err))
			return false
		}
	}

	dir := m.UserSyncDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Log.Error("backup_create_dir_failed", zap.String("dir", dir), zap.Error(err))
		return false
	}
	if err := db.Backup(filepath.Join(dir, store.SnapshotName(name))); err != nil {
		logger.Log.Error("backup_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	return true
}

// Restore merges a snapshot file into the local dictionary it was taken
// from. The snapshot is loaded into a scratch store that is removed on every
// exit path.
func (m *Manager) Restore(snapshot string) bool {
	_, err := m.restore(snapshot)
	if err != nil {
		logger.Log.Error("restore_failed", zap.String("snapshot", snapshot), zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) restore(snapshot string) (MergeResult, error) {
	temp := m.userDB(tempName)
	if temp.Exists() {
		if err := temp.Remove(); err != nil {
			return MergeResult{}, err
		}
	}
	if err := temp.Open(store.ReadWrite); err != nil {
		return MergeResult{}, err
	}
	defer func() {
		temp.Close()
		if err := temp.Remove(); err != nil {
			logger.Log.Warn("restore_temp_cleanup_failed", zap.Error(err))
		}
	}()

	if err := temp.Restore(snapshot); err != nil {
		return MergeResult{}, err
	}
	if !temp.IsUserDb() {
		return MergeResult{}, store.ErrNotUserDb
	}
	name := temp.DbName()
	if err := validName(name); err != nil {
		return MergeResult{}, err
	}

	dest := m.userDB(name)
	if err := dest.Open(store.ReadWrite); err != nil {
		return MergeResult{}, err
	}
	defer dest.Close()
	if !dest.IsUserDb() {
		return MergeResult{}, fmt.Errorf("restore into %s: %w", name, store.ErrNotUserDb)
	}

	logger.Log.Info("restore_merging",
		zap.String("snapshot", snapshot),
		zap.String("from", temp.UserID()),
		zap.String("db", name),
	)
	return Merge(dest, temp, m.opts.UserID, m.opts.Decay)
}

var errBadName = errors.New("invalid dictionary name")

// validName rejects names that would escape the user data directory or
// collide with the scratch store.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || name == tempName ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", errBadName, name)
	}
	return nil
}

// DictInfo summarizes one dictionary.
type DictInfo struct {
	Name           string   `json:"name"`
	UserID         string   `json:"user_id"`
	CreatorVersion string   `json:"creator_version"`
	Tick           uint64   `json:"tick"`
	Entries        int      `json:"entries"`
	Deleted        int      `json:"deleted"`
	Pending        []string `json:"pending_migrations,omitempty"`
}

// Info opens the named dictionary read-only and summarizes it.
func (m *Manager) Info(name string) (*DictInfo, error) {
	db := m.userDB(name)
	if err := db.Open(store.ReadOnly); err != nil {
		return nil, err
	}
	defer db.Close()
	if !db.IsUserDb() {
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotUserDb)
	}

	info := &DictInfo{
		Name:           name,
		UserID:         db.UserID(),
		CreatorVersion: db.CreatorVersion(),
		Tick:           db.Tick(),
		Pending:        store.PendingMigrations(db.CreatorVersion()),
	}

	c, err := db.Query("")
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if err := c.Jump(" "); err != nil {
		return nil, err
	}
	for c.Next() {
		info.Entries++
		if decodeValue(name, c.Key(), c.Value()).Deleted() {
			info.Deleted++
		}
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	return info, nil
}
