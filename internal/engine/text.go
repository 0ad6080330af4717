package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

// Export writes every entry of the named dictionary to a tab-separated text
// file as text, code and commit count, and returns the number of entries
// written. Tombstones are exported with their negative count. The file is
// replaced only when the whole dictionary was written.
func (m *Manager) Export(name, path string) (int, error) {
	db := m.userDB(name)
	if err := db.Open(store.ReadOnly); err != nil {
		return 0, err
	}
	defer db.Close()
	if !db.IsUserDb() {
		return 0, fmt.Errorf("export %s: %w", name, store.ErrNotUserDb)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", name, err)
	}
	tmp := f.Name()

	n, err := writeEntries(db, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("export %s: %w", name, err)
	}

	logger.Log.Info("export_done", zap.String("db", name), zap.String("path", path), zap.Int("entries", n))
	return n, nil
}

func writeEntries(db *store.DB, out io.Writer) (int, error) {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "# lexisync user dictionary export\n")
	fmt.Fprintf(w, "# name: %s\n", db.Name)
	fmt.Fprintf(w, "# user_id: %s\n", db.UserID())
	fmt.Fprintf(w, "# exported: %s\n", time.Now().UTC().Format(time.RFC3339))

	c, err := db.Query("")
	if err != nil {
		return 0, err
	}
	defer c.Close()
	if err := c.Jump(" "); err != nil {
		return 0, err
	}

	n := 0
	for c.Next() {
		code, text, ok := store.SplitKey(c.Key())
		if !ok || text == "" {
			logger.Log.Warn("export_skip_key", zap.String("db", db.Name), zap.String("key", c.Key()))
			continue
		}
		v := decodeValue(db.Name, c.Key(), c.Value())
		fmt.Fprintf(w, "%s\t%s\t%d\n", text, code, v.Commits)
		n++
	}
	if err := c.Err(); err != nil {
		return n, err
	}
	return n, w.Flush()
}

// commitCount is the optional third column of an import line. ok is false
// when the column is absent or unparseable, which leaves commits unchanged.
type commitCount struct {
	n  int
	ok bool
}

func parseCommitCount(fields []string) commitCount {
	if len(fields) < 3 {
		return commitCount{}
	}
	s := strings.TrimSpace(fields[2])
	if s == "" {
		return commitCount{}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return commitCount{}
	}
	return commitCount{n: n, ok: true}
}

// apply folds an imported count into an existing commit count: a positive
// count raises it, a negative one marks the entry deleted, zero leaves it.
func (cc commitCount) apply(commits int) int {
	switch {
	case !cc.ok || cc.n == 0:
		return commits
	case cc.n < 0:
		return cc.n
	default:
		return max(cc.n, commits)
	}
}

// Import reads a tab-separated text file of text, code and optional commit
// count into the named dictionary, creating it if needed. It returns the
// number of lines applied.
func (m *Manager) Import(name, path string) (int, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	db := m.userDB(name)
	if err := db.Open(store.ReadWrite); err != nil {
		return 0, err
	}
	defer db.Close()
	if !db.IsUserDb() {
		return 0, fmt.Errorf("import %s: %w", name, store.ErrNotUserDb)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			logger.Log.Warn("import_invalid_line", zap.String("db", name), zap.Int("line", lineNo))
			continue
		}
		code := store.NormalizeCode(fields[1])
		if code == "" {
			logger.Log.Warn("import_empty_code", zap.String("db", name), zap.Int("line", lineNo))
			continue
		}
		key := store.MakeKey(code, fields[0])

		var v store.Value
		if raw, ok := db.Fetch(key); ok {
			v = decodeValue(name, key, raw)
		}
		v.Commits = parseCommitCount(fields).apply(v.Commits)

		if err := db.Update(key, v.Pack()); err != nil {
			logger.Log.Warn("import_update_failed", zap.String("db", name), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("import %s: %w", name, err)
	}

	logger.Log.Info("import_done", zap.String("db", name), zap.String("path", path), zap.Int("entries", n))
	return n, nil
}
