// SPDX-License-Identifier: MPL-2.0

package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/flybywiresim/fragmenter/internal/sink"
)

// moveTree moves every regular file under src into dst, preserving
// relative paths and overwriting anything already there, emitting a
// CopyProgress event per file (file count, not byte count, per the fixed
// design note). src is removed once empty.
func moveTree(sk sink.Sink, moduleName, src, dst string) error {
	rels, err := listFiles(src)
	if err != nil {
		return err
	}

	sk.OnCopyStarted(moduleName)

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	for i, rel := range rels {
		from := filepath.Join(src, rel)
		to := filepath.Join(dst, rel)

		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return fmt.Errorf("creating parent of %s: %w", to, err)
		}
		_ = os.RemoveAll(to)
		if err := os.Rename(from, to); err != nil {
			if copyErr := copyFile(from, to); copyErr != nil {
				return fmt.Errorf("moving %s: %w", rel, copyErr)
			}
		}

		sk.OnCopyProgress(sink.CopyProgress{Module: moduleName, Moved: i + 1, Total: len(rels)})
	}

	sk.OnCopyFinished(moduleName)

	return os.RemoveAll(src)
}

// listFiles returns every regular file under root, relative to root,
// sorted so move order is deterministic.
func listFiles(root string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(rels)
	return rels, nil
}

// copyFile is the cross-filesystem fallback for moveTree's rename, used
// when src and dst straddle different devices (the temp directory is not
// guaranteed to share a filesystem with destDir).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("statting %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return os.Remove(src)
}
