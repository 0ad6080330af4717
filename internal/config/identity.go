package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// InstallationFile holds the generated device identity inside the user data
// directory.
const InstallationFile = "installation.yaml"

type installation struct {
	InstallationID string `yaml:"installation_id"`
	SyncDir        string `yaml:"sync_dir,omitempty"`
	CreatedAt      string `yaml:"created_at,omitempty"`
}

// EnsureUserID fills cfg.UserID when unset, from the installation file or
// by generating and persisting a new id. A sync_dir in the installation file
// applies unless the environment already chose one.
func EnsureUserID(cfg *Config) error {
	path := filepath.Join(cfg.Paths.UserDataDir, InstallationFile)

	inst, err := readInstallation(path)
	if err != nil {
		return err
	}
	if inst.SyncDir != "" && os.Getenv("LEXISYNC_SYNC_DIR") == "" {
		cfg.Paths.SyncDir = expandHome(inst.SyncDir)
	}
	if cfg.UserID != "" {
		return nil
	}
	if inst.InstallationID != "" {
		cfg.UserID = inst.InstallationID
		return nil
	}

	inst.InstallationID = uuid.NewString()
	inst.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := writeInstallation(path, inst); err != nil {
		return err
	}
	cfg.UserID = inst.InstallationID
	return nil
}

func readInstallation(path string) (installation, error) {
	var inst installation
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return inst, nil
	}
	if err != nil {
		return inst, fmt.Errorf("read installation: %w", err)
	}
	if err := yaml.Unmarshal(data, &inst); err != nil {
		return inst, fmt.Errorf("parse %s: %w", path, err)
	}
	return inst, nil
}

func writeInstallation(path string, inst installation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create user data dir: %w", err)
	}
	data, err := yaml.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode installation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write installation: %w", err)
	}
	return nil
}
