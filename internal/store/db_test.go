package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lazypower/lexisync/internal/kv"
)

func testOptions(t *testing.T, backend string) Options {
	t.Helper()
	d, err := kv.Lookup(backend)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return Options{Dir: t.TempDir(), Driver: d, UserID: "device-a"}
}

func testDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := Open(name, ReadWrite, testOptions(t, "leveldb"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesMetadata(t *testing.T) {
	for _, backend := range kv.Backends() {
		t.Run(backend, func(t *testing.T) {
			db, err := Open("luna", ReadWrite, testOptions(t, backend))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer db.Close()

			if !db.IsUserDb() {
				t.Error("IsUserDb = false on a new store")
			}
			if got := db.DbName(); got != "luna" {
				t.Errorf("DbName = %q, want luna", got)
			}
			if got := db.UserID(); got != "device-a" {
				t.Errorf("UserID = %q, want device-a", got)
			}
			if got := db.CreatorVersion(); got != CurrentVersion {
				t.Errorf("CreatorVersion = %q, want %q", got, CurrentVersion)
			}
			if got := db.Tick(); got != 0 {
				t.Errorf("Tick = %d, want 0", got)
			}
			if filepath.Base(db.Path) != "luna"+Extension {
				t.Errorf("Path = %q", db.Path)
			}
		})
	}
}

func TestReopenKeepsMetadata(t *testing.T) {
	opts := testOptions(t, "leveldb")
	db, err := Open("luna", ReadWrite, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.MetaUpdate(MetaTick, "12"); err != nil {
		t.Fatalf("MetaUpdate: %v", err)
	}
	db.Close()

	opts.UserID = "device-b"
	db, err = Open("luna", ReadWrite, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if got := db.Tick(); got != 12 {
		t.Errorf("Tick after reopen = %d, want 12", got)
	}
	if got := db.UserID(); got != "device-a" {
		t.Errorf("UserID after reopen = %q, want device-a (metadata is written once)", got)
	}
}

func TestOpenExistingStoreLeavesMetadata(t *testing.T) {
	for _, backend := range kv.Backends() {
		t.Run(backend, func(t *testing.T) {
			opts := testOptions(t, backend)
			raw, err := opts.Driver.Open(filepath.Join(opts.Dir, "table"+Extension), false)
			if err != nil {
				t.Fatalf("open raw: %v", err)
			}
			raw.Put([]byte(metaPrefix+MetaDbType), []byte("tabledb"))
			raw.Put([]byte("k 	v"), []byte("c=1 d=1 t=1"))
			raw.Close()

			db, err := Open("table", ReadWrite, opts)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer db.Close()
			if db.IsUserDb() {
				t.Error("read-write open stamped user dictionary metadata on an existing store")
			}
			if got := db.DbName(); got != "" {
				t.Errorf("DbName = %q, want empty", got)
			}
		})
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	opts := testOptions(t, "leveldb")
	db := New("ghost", opts)
	err := db.Open(ReadOnly)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open(ReadOnly) err = %v, want ErrNotFound", err)
	}
	if db.Exists() {
		t.Error("read-only open created the store")
	}
}

func TestCloseIdempotent(t *testing.T) {
	db := testDB(t, "luna")
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if db.Loaded() {
		t.Error("Loaded after Close")
	}
}

func TestFetchUpdate(t *testing.T) {
	db := testDB(t, "luna")
	key := MakeKey("ha lo", "hello")

	if _, ok := db.Fetch(key); ok {
		t.Fatal("Fetch found a key in an empty store")
	}
	if err := db.Update(key, Value{Commits: 2}.Pack()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, ok := db.Fetch(key)
	if !ok {
		t.Fatal("Fetch missed an updated key")
	}
	v, err := Unpack(got)
	if err != nil || v.Commits != 2 {
		t.Errorf("Fetch = %q (%+v, %v)", got, v, err)
	}

	if err := db.Update("no-tab", "c=1 d=0 t=0"); !errors.Is(err, ErrMalformedKey) {
		t.Errorf("Update without tab err = %v, want ErrMalformedKey", err)
	}
}

func TestReadOnlyRejectsUpdate(t *testing.T) {
	opts := testOptions(t, "leveldb")
	db, err := Open("luna", ReadWrite, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	ro, err := Open("luna", ReadOnly, opts)
	if err != nil {
		t.Fatalf("Open(ReadOnly): %v", err)
	}
	defer ro.Close()
	if err := ro.Update(MakeKey("a", "b"), "c=1 d=0 t=0"); err == nil {
		t.Error("Update succeeded on a read-only store")
	}
	if !ro.ReadOnly() {
		t.Error("ReadOnly() = false")
	}
}

func TestQuerySkipsMetadata(t *testing.T) {
	db := testDB(t, "luna")
	keys := []string{
		MakeKey("ni hao", "你好"),
		MakeKey("ni", "你"),
		MakeKey("a", "啊"),
	}
	for _, k := range keys {
		if err := db.Update(k, Value{Commits: 1}.Pack()); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	c, err := db.Query("")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer c.Close()

	all := 0
	for c.Next() {
		all++
	}
	if all != len(keys)+len(metaKeys) {
		t.Errorf("full scan = %d records, want %d", all, len(keys)+len(metaKeys))
	}

	if err := c.Jump(" "); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	var got []string
	for c.Next() {
		got = append(got, c.Key())
	}
	if err := c.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	want := []string{MakeKey("a", "啊"), MakeKey("ni", "你"), MakeKey("ni hao", "你好")}
	if len(got) != len(want) {
		t.Fatalf("entries = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQueryPrefix(t *testing.T) {
	db := testDB(t, "luna")
	for _, k := range []string{MakeKey("ni", "你"), MakeKey("ni hao", "你好"), MakeKey("wo", "我")} {
		db.Update(k, Value{}.Pack())
	}
	c, err := db.Query("ni")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer c.Close()
	n := 0
	for c.Next() {
		n++
	}
	if n != 2 {
		t.Errorf("Query(ni) = %d records, want 2", n)
	}
}

func TestBackupRestore(t *testing.T) {
	src := testDB(t, "luna")
	src.Update(MakeKey("mo untain", "mountain"), Value{Commits: 2, Dee: 0.5, Tick: 3}.Pack())
	src.MetaUpdate(MetaTick, "3")

	snapshot := filepath.Join(t.TempDir(), "nested", "dir", SnapshotName("luna"))
	if err := src.Backup(snapshot); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	opts := testOptions(t, "sqlite")
	opts.UserID = "device-b"
	dst, err := Open(".temp", ReadWrite, opts)
	if err != nil {
		t.Fatalf("Open temp: %v", err)
	}
	defer dst.Close()
	if err := dst.Restore(snapshot); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if got := dst.DbName(); got != "luna" {
		t.Errorf("restored DbName = %q, want luna", got)
	}
	if got := dst.UserID(); got != "device-a" {
		t.Errorf("restored UserID = %q, want device-a", got)
	}
	if got := dst.Tick(); got != 3 {
		t.Errorf("restored Tick = %d, want 3", got)
	}
	raw, ok := dst.Fetch(MakeKey("mo untain", "mountain"))
	if !ok {
		t.Fatal("restored entry missing")
	}
	if v, _ := Unpack(raw); v != (Value{Commits: 2, Dee: 0.5, Tick: 3}) {
		t.Errorf("restored value = %+v", v)
	}
}

func TestRestoreDropsLocalMetadata(t *testing.T) {
	// A snapshot of a store that never was a user dictionary must not
	// inherit the user dictionary type from the store it is loaded into.
	opts := testOptions(t, "leveldb")
	raw, err := opts.Driver.Open(filepath.Join(opts.Dir, "plain"+Extension), false)
	if err != nil {
		t.Fatalf("open plain: %v", err)
	}
	raw.Put([]byte("some key"), []byte("some value"))
	raw.Close()

	plain, err := Open("plain", ReadOnly, opts)
	if err != nil {
		t.Fatalf("Open plain: %v", err)
	}
	if plain.IsUserDb() {
		t.Fatal("plain store reports IsUserDb")
	}
	snapshot := filepath.Join(t.TempDir(), "plain.snapshot")
	if err := plain.Backup(snapshot); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	plain.Close()

	temp := testDB(t, ".temp")
	if err := temp.Restore(snapshot); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if temp.IsUserDb() {
		t.Error("restored plain snapshot reports IsUserDb")
	}
	if temp.DbName() != "" {
		t.Errorf("restored plain snapshot DbName = %q, want empty", temp.DbName())
	}
}

func TestRestoreMissingSnapshot(t *testing.T) {
	db := testDB(t, ".temp")
	err := db.Restore(filepath.Join(t.TempDir(), "nope.snapshot"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Restore err = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	db := testDB(t, "luna")
	if err := db.Remove(); err == nil {
		t.Error("Remove succeeded on an open store")
	}
	db.Close()
	if err := db.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if db.Exists() {
		t.Error("store exists after Remove")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	db := New("luna", testOptions(t, "leveldb"))
	if _, err := db.Query(""); !errors.Is(err, ErrClosed) {
		t.Errorf("Query err = %v, want ErrClosed", err)
	}
	if err := db.Backup(filepath.Join(t.TempDir(), "x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Backup err = %v, want ErrClosed", err)
	}
	if _, ok := db.Fetch("a \tb"); ok {
		t.Error("Fetch on closed DB returned a value")
	}
}
