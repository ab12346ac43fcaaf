package playground

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SkippedDirs are never copied into the temp tree. Test sources stay with
// the suite; only the project files are needed at run time.
var SkippedDirs = map[string]bool{
	"node_modules": true,
	"__tests__":    true,
	"tests":        true,
	".git":         true,
}

// CopyFixtures copies every playground under src into dst, replacing
// whatever dst held before.
func CopyFixtures(fs afero.Fs, src, dst string) error {
	if ok, err := afero.DirExists(fs, src); err != nil || !ok {
		return fmt.Errorf("playground directory %s does not exist", src)
	}
	if err := fs.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dst, err)
	}

	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := relSlash(src, p)
		target := filepath.Join(dst, filepath.FromSlash(rel))

		if info.IsDir() {
			if p != src && SkippedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		// Go sources belong to the suites, and a copy of them would be
		// picked up as another package.
		if !info.Mode().IsRegular() || strings.HasSuffix(info.Name(), ".go") {
			return nil
		}
		return copyFile(fs, p, target, info.Mode().Perm())
	})
}

func copyFile(fs afero.Fs, from, to string, perm os.FileMode) error {
	in, err := fs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return out.Close()
}
