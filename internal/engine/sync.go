package engine

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

// Synchronize merges the named dictionary's snapshot from every peer
// directory under the sync root, then publishes the merged result. Every
// peer is attempted; the result is false if any merge or the final backup
// failed.
func (m *Manager) Synchronize(name string) bool {
	ok := m.synchronize(name)
	syncRuns.WithLabelValues(resultLabel(ok)).Inc()
	return ok
}

func (m *Manager) synchronize(name string) bool {
	logger.Log.Info("sync_start", zap.String("db", name))
	if err := os.MkdirAll(m.opts.SyncDir, 0755); err != nil {
		logger.Log.Error("sync_dir_failed", zap.String("dir", m.opts.SyncDir), zap.Error(err))
		return false
	}
	peers, err := os.ReadDir(m.opts.SyncDir)
	if err != nil {
		logger.Log.Error("sync_dir_failed", zap.String("dir", m.opts.SyncDir), zap.Error(err))
		return false
	}

	ok := true
	file := store.SnapshotName(name)
	for _, peer := range peers {
		if !peer.IsDir() {
			continue
		}
		path := filepath.Join(m.opts.SyncDir, peer.Name(), file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		logger.Log.Info("sync_merge_peer", zap.String("db", name), zap.String("peer", peer.Name()))
		if !m.Restore(path) {
			logger.Log.Error("sync_merge_failed", zap.String("db", name), zap.String("snapshot", path))
			ok = false
		}
	}

	if !m.Backup(name) {
		logger.Log.Error("sync_backup_failed", zap.String("db", name))
		ok = false
	}
	return ok
}

// SynchronizeAll synchronizes every local dictionary, stopping at the first
// one that fails.
func (m *Manager) SynchronizeAll() bool {
	names, err := m.ListDictionaries()
	if err != nil {
		logger.Log.Error("sync_list_failed", zap.Error(err))
		return false
	}
	logger.Log.Info("sync_all", zap.Int("dicts", len(names)))
	for _, name := range names {
		if !m.Synchronize(name) {
			return false
		}
	}
	return true
}
