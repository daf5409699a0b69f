package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/skiffworks/skiff/internal/plugin"
)

// extractZip unpacks the archive at src into dest. Archives that wrap
// the plugin in a single top-level directory, the shape GitHub release
// zips have, are unwrapped so that the descriptor lands at the root of
// dest. Entries that would escape dest are rejected.
func extractZip(src, dest string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	prefix := archivePrefix(&reader.Reader)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	cleanDest := filepath.Clean(dest)
	for _, file := range reader.File {
		rel := strings.TrimPrefix(path.Clean(file.Name), prefix)
		if rel == "" || rel == "." || rel == "/" {
			continue
		}
		if prefix != "" && rel+"/" == prefix {
			// The wrapping directory itself.
			continue
		}

		target := filepath.Join(cleanDest, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the install directory", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("reading archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return dst.Close()
}

// archivePrefix returns the shared top-level directory to strip, with
// trailing slash, or "" when entries already sit at the archive root.
// The prefix is only stripped when the descriptor lives under it.
func archivePrefix(reader *zip.Reader) string {
	tops := make(map[string]bool)
	for _, file := range reader.File {
		name := path.Clean(file.Name)
		if name == plugin.DescriptorFile {
			return ""
		}
		top, _, nested := strings.Cut(name, "/")
		if !nested {
			// A loose file at the root rules out unwrapping.
			if !file.FileInfo().IsDir() {
				return ""
			}
			top = name
		}
		tops[top] = true
	}

	if len(tops) != 1 {
		return ""
	}
	for top := range tops {
		for _, file := range reader.File {
			if path.Clean(file.Name) == top+"/"+plugin.DescriptorFile {
				return top + "/"
			}
		}
	}
	return ""
}

// copyDir copies the plugin tree at src into dest with the semantics
// of os.CopyFS(dest, os.DirFS(src)): directories are created with mode
// 0o777 before umask, files are created with 0o666 plus the source's
// execute bits and are never overwritten, symlinks are recreated with
// their original targets, and any other entry type is rejected with
// fs.ErrInvalid. The walk is inlined because os.CopyFS requires a
// newer Go toolchain than this module builds with.
func copyDir(src, dest string) error {
	fsys := os.DirFS(src)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		newPath := filepath.Join(dest, filepath.FromSlash(p))

		switch d.Type() {
		case fs.ModeDir:
			return os.MkdirAll(newPath, 0o777)
		case fs.ModeSymlink:
			target, err := os.Readlink(filepath.Join(src, filepath.FromSlash(p)))
			if err != nil {
				return err
			}
			return os.Symlink(target, newPath)
		case fs.ModeDevice, fs.ModeNamedPipe, fs.ModeSocket, fs.ModeCharDevice, fs.ModeIrregular:
			return &fs.PathError{Op: "CopyFS", Path: p, Err: fs.ErrInvalid}
		}

		r, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer r.Close()

		info, err := r.Stat()
		if err != nil {
			return err
		}
		w, err := os.OpenFile(newPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666|info.Mode()&0o777)
		if err != nil {
			return err
		}

		if _, err := io.Copy(w, r); err != nil {
			w.Close()
			return &fs.PathError{Op: "Copy", Path: newPath, Err: err}
		}
		return w.Close()
	})
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}
