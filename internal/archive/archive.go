// Package archive builds the tar streams the docker package needs for
// CopyToContainer uploads and image build contexts. Both operations walk a
// host directory tree the same way, so they share one walker producing a
// tar.Writer stream instead of copying files to a second directory on
// disk.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FromHostPath builds a tar stream from a single file or directory tree on
// the host, rooted so that the top-level entry name matches what the
// target (a container's filesystem, or a build context) should see.
//
// Symlinks are followed rather than rejected: a host path handed to
// CopyToContainer is operator input, not an untrusted build artifact, so
// the stricter rejection a build-context scanner would apply does not
// carry over. Each symlink is archived with its target's mode and content;
// a symlink to a directory inside the tree becomes an empty directory
// entry, since the walk does not descend into it.
func FromHostPath(srcPath string) (io.Reader, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("archive: stat %q: %w", srcPath, err)
	}

	reader, writer := io.Pipe()
	go func() {
		tw := tar.NewWriter(writer)
		err := func() error {
			if info.IsDir() {
				return walkDir(tw, srcPath)
			}
			return writeFile(tw, srcPath, filepath.Base(srcPath), info)
		}()
		closeErr := tw.Close()
		if err == nil {
			err = closeErr
		}
		writer.CloseWithError(err)
	}()
	return reader, nil
}

func walkDir(tw *tar.Writer, srcDir string) error {
	return filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("archive: relative path for %q: %w", path, err)
		}
		if relPath == "." {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("archive: stat %q: %w", path, err)
		}

		if info.IsDir() {
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(relPath) + "/"
			return tw.WriteHeader(hdr)
		}

		return writeFile(tw, path, relPath, info)
	})
}

func writeFile(tw *tar.Writer, hostPath, archiveName string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("archive: header for %q: %w", hostPath, err)
	}
	hdr.Name = filepath.ToSlash(archiveName)

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: write header for %q: %w", hostPath, err)
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return fmt.Errorf("archive: open %q: %w", hostPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive: write content for %q: %w", hostPath, err)
	}
	return nil
}
