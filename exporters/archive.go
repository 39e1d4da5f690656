package exporters

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/bibin-skaria/stackgen/internal/errors"
)

// ArchiveSuffix is the conventional extension of recipe bundles.
const ArchiveSuffix = ".tar.zst"

// Archive bundles the recipes in srcDir into a zstd compressed tarball at dest,
// with entries rooted at the base name of srcDir. Symlinks are stored as links.
func Archive(srcDir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return errors.NewFilesystemError("create_archive", dest, err)
	}
	defer out.Close()

	encoder, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %v", err)
	}

	tarWriter := tar.NewWriter(encoder)

	skip, _ := filepath.Abs(dest)
	if err := addDirectoryToTar(tarWriter, srcDir, filepath.Base(srcDir), skip); err != nil {
		encoder.Close()
		return errors.NewFilesystemError("create_archive", srcDir, err)
	}
	if err := tarWriter.Close(); err != nil {
		encoder.Close()
		return errors.NewFilesystemError("create_archive", dest, err)
	}
	if err := encoder.Close(); err != nil {
		return errors.NewFilesystemError("create_archive", dest, err)
	}
	return out.Close()
}

func addDirectoryToTar(tarWriter *tar.Writer, srcDir, prefix, skip string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if abs, _ := filepath.Abs(path); abs == skip {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		tarPath := filepath.ToSlash(filepath.Join(prefix, relPath))

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = tarPath

		if info.IsDir() {
			header.Name += "/"
			return tarWriter.WriteHeader(header)
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tarWriter, file)
		return err
	})
}

// ListArchive returns the entry names of a bundle written by Archive.
func ListArchive(path string) ([]string, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFilesystemError("read_archive", path, err)
	}
	defer in.Close()

	decoder, err := zstd.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %v", err)
	}
	defer decoder.Close()

	var names []string
	tarReader := tar.NewReader(decoder)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewFilesystemError("read_archive", path, err)
		}
		names = append(names, header.Name)
	}
	return names, nil
}
