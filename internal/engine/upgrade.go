package engine

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

// UpgradeUserDict rebuilds a dictionary created before the key format fix.
// The store is snapshotted into the trash directory, removed, and recreated
// by merging that snapshot back, which repairs its keys. Current stores are
// left alone.
func (m *Manager) UpgradeUserDict(name string) bool {
	db := m.userDB(name)
	if err := db.Open(store.ReadOnly); err != nil {
		logger.Log.Error("upgrade_open_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	defer db.Close()
	if !db.IsUserDb() {
		logger.Log.Error("upgrade_not_userdb", zap.String("db", name))
		return false
	}

	version := db.CreatorVersion()
	if store.CompareVersions(version, store.KeyRepairVersion) >= 0 {
		return true
	}
	logger.Log.Info("upgrade_start",
		zap.String("db", name),
		zap.String("creator_version", version),
		zap.Strings("migrations", store.PendingMigrations(version)),
	)

	if err := os.MkdirAll(m.opts.TrashDir, 0755); err != nil {
		logger.Log.Error("upgrade_trash_dir_failed", zap.String("dir", m.opts.TrashDir), zap.Error(err))
		return false
	}
	snapshot := filepath.Join(m.opts.TrashDir, store.SnapshotName(name))
	if err := db.Backup(snapshot); err != nil {
		logger.Log.Error("upgrade_backup_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	if err := db.Close(); err != nil {
		logger.Log.Error("upgrade_close_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	if err := db.Remove(); err != nil {
		logger.Log.Error("upgrade_remove_failed", zap.String("db", name), zap.Error(err))
		return false
	}
	if !m.Restore(snapshot) {
		logger.Log.Error("upgrade_restore_failed", zap.String("db", name), zap.String("snapshot", snapshot))
		return false
	}
	logger.Log.Info("upgrade_done", zap.String("db", name), zap.String("trash", snapshot))
	return true
}

// UpgradeAll upgrades every local dictionary, continuing past failures. It
// returns the names that failed.
func (m *Manager) UpgradeAll() ([]string, error) {
	names, err := m.ListDictionaries()
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, name := range names {
		if !m.UpgradeUserDict(name) {
			failed = append(failed, name)
		}
	}
	return failed, nil
}
