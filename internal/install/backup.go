// SPDX-License-Identifier: MPL-2.0

package install

import (
	"fmt"
	"os"
	"path/filepath"
)

// backup moves every entry currently under destDir into backupDir,
// preserving each entry's base name, so the destination starts empty and
// the pre-install tree is recoverable by moving backupDir back over
// destDir (§8 property 4). destDir is recreated empty afterward so
// later writes never have to special-case "does destDir exist yet".
func backup(destDir, backupDir string) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(destDir, 0o755)
		}
		return fmt.Errorf("reading destination directory: %w", err)
	}

	for _, entry := range entries {
		from := filepath.Join(destDir, entry.Name())
		to := filepath.Join(backupDir, entry.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("backing up %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// restore moves every entry in backupDir back over destDir, undoing
// backup. Called from InstallFailRestore after any failure past the
// backupStarted phase.
func restore(destDir, backupDir string) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading backup directory: %w", err)
	}

	for _, entry := range entries {
		from := filepath.Join(backupDir, entry.Name())
		to := filepath.Join(destDir, entry.Name())
		_ = os.RemoveAll(to)
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("restoring %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// restoreModule moves a single named entry from backupDir back into
// destDir, used when only one module's backed-up directory needs to be
// put back (the base was unchanged, or a later module failed and only
// the modules applied so far need undoing).
func restoreModule(destDir, backupDir, name string) error {
	from := filepath.Join(backupDir, name)
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("statting backed-up module %s: %w", name, err)
	}
	to := filepath.Join(destDir, name)
	_ = os.RemoveAll(to)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("restoring module %s: %w", name, err)
	}
	return nil
}
