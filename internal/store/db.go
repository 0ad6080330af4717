package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/kv"
	"github.com/lazypower/lexisync/internal/logger"
)

const (
	// Extension is appended to a dictionary name to form its store path.
	Extension = ".userdb"
	// SnapshotExtension is appended to name+Extension for backup files.
	SnapshotExtension = ".snapshot"
)

// Metadata keys. They are stored behind metaPrefix, which sorts before the
// space character, so a scan starting at " " never sees them.
const (
	MetaDbName  = "/db_name"
	MetaDbType  = "/db_type"
	MetaUserID  = "/user_id"
	MetaVersion = "/rime_version"
	MetaTick    = "/tick"

	metaPrefix = "\x01"
	userDbType = "userdb"
)

var metaKeys = []string{MetaDbName, MetaDbType, MetaUserID, MetaVersion, MetaTick}

var (
	// ErrNotFound is returned when a store or snapshot file does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrNotUserDb is returned for a store without user dictionary metadata.
	ErrNotUserDb = errors.New("store: not a user dictionary")
	// ErrClosed is returned by operations on a DB that is not open.
	ErrClosed = errors.New("store: not open")
)

// Mode selects how Open treats the store.
type Mode int

const (
	// ReadWrite opens the store, creating it if absent.
	ReadWrite Mode = iota
	// ReadOnly opens an existing store without write access.
	ReadOnly
)

// Options describe where stores live and whom new stores belong to.
type Options struct {
	Dir     string
	Driver  kv.Driver
	UserID  string
	Version string // creator version for new stores; CurrentVersion if empty
}

// SnapshotName returns the snapshot file name for dictionary name.
func SnapshotName(name string) string {
	return name + Extension + SnapshotExtension
}

// DB is one named user dictionary. A DB is created closed; Open and Close
// may be called repeatedly on the same value.
type DB struct {
	Name string
	Path string

	opts     Options
	backend  kv.Backend
	readOnly bool
}

// New returns a closed handle for dictionary name.
func New(name string, opts Options) *DB {
	if opts.Version == "" {
		opts.Version = CurrentVersion
	}
	return &DB{
		Name: name,
		Path: filepath.Join(opts.Dir, name+Extension),
		opts: opts,
	}
}

// Open is New followed by DB.Open.
func Open(name string, mode Mode, opts Options) (*DB, error) {
	db := New(name, opts)
	if err := db.Open(mode); err != nil {
		return nil, err
	}
	return db, nil
}

// Open opens the backing store. In ReadWrite mode a store created by this
// call gets fresh metadata and tick 0; an existing store keeps whatever
// metadata it has.
func (db *DB) Open(mode Mode) error {
	if db.backend != nil {
		return fmt.Errorf("open %s: already open", db.Name)
	}
	readOnly := mode == ReadOnly
	created := !readOnly && !db.Exists()

	b, err := db.opts.Driver.Open(db.Path, readOnly)
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("open %s: %w", db.Name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", db.Name, err)
	}
	db.backend = b
	db.readOnly = readOnly

	if created {
		err := db.CreateMetadata()
		if err == nil {
			err = db.MetaUpdate(MetaTick, "0")
		}
		if err != nil {
			db.Close()
			return fmt.Errorf("open %s: %w", db.Name, err)
		}
	}

	logger.Log.Debug("userdb_opened",
		zap.String("db", db.Name),
		zap.String("path", db.Path),
		zap.Bool("read_only", readOnly),
		zap.Bool("created", created),
	)
	return nil
}

// Close releases the backing store. Closing a closed DB is a no-op.
func (db *DB) Close() error {
	if db.backend == nil {
		return nil
	}
	err := db.backend.Close()
	db.backend = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", db.Name, err)
	}
	return nil
}

// Loaded reports whether the DB is open.
func (db *DB) Loaded() bool { return db.backend != nil }

// ReadOnly reports whether the DB is open read-only.
func (db *DB) ReadOnly() bool { return db.readOnly }

// Exists reports whether the backing files exist.
func (db *DB) Exists() bool {
	return db.opts.Driver.Exists(db.Path)
}

// Remove deletes every file backing the store. The DB must be closed.
func (db *DB) Remove() error {
	if db.backend != nil {
		return fmt.Errorf("remove %s: store is open", db.Name)
	}
	if err := db.opts.Driver.Remove(db.Path); err != nil {
		return fmt.Errorf("remove %s: %w", db.Name, err)
	}
	logger.Log.Info("userdb_removed", zap.String("db", db.Name), zap.String("path", db.Path))
	return nil
}

// CreateMetadata stamps the store with its name, type, creator version and
// the configured owner. The tick is left alone.
func (db *DB) CreateMetadata() error {
	meta := [][2]string{
		{MetaDbName, db.Name},
		{MetaDbType, userDbType},
		{MetaVersion, db.opts.Version},
		{MetaUserID, db.opts.UserID},
	}
	for _, m := range meta {
		if err := db.MetaUpdate(m[0], m[1]); err != nil {
			return fmt.Errorf("create metadata: %w", err)
		}
	}
	return nil
}

// IsUserDb reports whether the store carries user dictionary metadata.
func (db *DB) IsUserDb() bool {
	t, _ := db.MetaFetch(MetaDbType)
	return t == userDbType
}

// DbName returns the dictionary name recorded in the store, which for a
// restored snapshot is the name of the dictionary it was taken from.
func (db *DB) DbName() string {
	name, _ := db.MetaFetch(MetaDbName)
	return strings.TrimSuffix(name, Extension)
}

// UserID returns the recorded owner.
func (db *DB) UserID() string {
	id, _ := db.MetaFetch(MetaUserID)
	return id
}

// CreatorVersion returns the version of the build that created the store.
func (db *DB) CreatorVersion() string {
	v, _ := db.MetaFetch(MetaVersion)
	return v
}

// Tick returns the store's logical clock; 0 if absent or unreadable.
func (db *DB) Tick() uint64 {
	s, ok := db.MetaFetch(MetaTick)
	if !ok {
		return 0
	}
	t, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		logger.Log.Warn("userdb_bad_tick", zap.String("db", db.Name), zap.String("tick", s))
		return 0
	}
	return t
}

// MetaFetch reads a metadata value.
func (db *DB) MetaFetch(key string) (string, bool) {
	return db.get(metaPrefix + key)
}

// MetaUpdate writes a metadata value.
func (db *DB) MetaUpdate(key, value string) error {
	if db.backend == nil {
		return ErrClosed
	}
	if err := db.backend.Put([]byte(metaPrefix+key), []byte(value)); err != nil {
		return fmt.Errorf("update metadata %s: %w", key, err)
	}
	return nil
}

// Fetch reads the packed value stored under an entry key.
func (db *DB) Fetch(key string) (string, bool) {
	return db.get(key)
}

// Update writes a packed value under an entry key. Keys without a tab are
// rejected so entries can never shadow metadata.
func (db *DB) Update(key, value string) error {
	if db.backend == nil {
		return ErrClosed
	}
	if strings.IndexByte(key, '\t') <= 0 {
		return fmt.Errorf("update: %w: %q", ErrMalformedKey, key)
	}
	if err := db.backend.Put([]byte(key), []byte(value)); err != nil {
		return fmt.Errorf("update %q: %w", key, err)
	}
	return nil
}

func (db *DB) get(key string) (string, bool) {
	if db.backend == nil {
		return "", false
	}
	v, err := db.backend.Get([]byte(key))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false
	}
	if err != nil {
		logger.Log.Error("userdb_fetch_failed", zap.String("db", db.Name), zap.String("key", key), zap.Error(err))
		return "", false
	}
	return string(v), true
}

// Backup writes the whole store to a snapshot file at path, creating parent
// directories as needed. The file is replaced atomically.
func (db *DB) Backup(path string) error {
	if db.backend == nil {
		return ErrClosed
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	tmp := f.Name()

	n, err := kv.Dump(db.backend, f)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("backup %s: %w", db.Name, err)
	}

	logger.Log.Info("userdb_backup",
		zap.String("db", db.Name),
		zap.String("path", path),
		zap.Int("records", n),
	)
	return nil
}

// Restore loads a snapshot file into the open store. Metadata already in the
// store is dropped first so the snapshot's metadata is authoritative.
func (db *DB) Restore(path string) error {
	if db.backend == nil {
		return ErrClosed
	}
	if db.readOnly {
		return fmt.Errorf("restore %s: %w", db.Name, kv.ErrReadOnly)
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("restore %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	defer f.Close()

	for _, k := range metaKeys {
		if err := db.backend.Delete([]byte(metaPrefix + k)); err != nil {
			return fmt.Errorf("restore %s: reset metadata: %w", db.Name, err)
		}
	}

	n, err := kv.Load(db.backend, f)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	logger.Log.Info("userdb_restored",
		zap.String("db", db.Name),
		zap.String("snapshot", path),
		zap.Int("records", n),
	)
	return nil
}
