package exporters

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bibin-skaria/stackgen/internal/logging"
	"github.com/bibin-skaria/stackgen/internal/types"
)

func TestArchive(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "build")
	c := createTestChain("base_image", "cmake_image")

	if _, err := WriteChain(c.Entries(), WriteOptions{
		OutputDir:      outDir,
		Format:         types.FormatDocker,
		Emitter:        baseImageEmitter{},
		BuildScript:    createBuildScript(t),
		FinalStageName: "01_cmake_image",
		Logger:         logging.Discard(),
	}); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(root, "recipes"+ArchiveSuffix)
	if err := Archive(outDir, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	names, err := ListArchive(dest)
	if err != nil {
		t.Fatalf("ListArchive() error = %v", err)
	}
	sort.Strings(names)
	want := []string{
		"build/",
		"build/00_base_image.Dockerfile",
		"build/01_cmake_image.Dockerfile",
		"build/build.sh",
		"build/final_stage_name.txt",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("archive entries mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveInsideSourceDirectory(t *testing.T) {
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "00_base_image.def"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(outDir, "bundle"+ArchiveSuffix)
	if err := Archive(outDir, dest); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	names, err := ListArchive(dest)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Base(outDir)
	want := []string{base + "/", base + "/00_base_image.def"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("archive entries mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveMissingSource(t *testing.T) {
	root := t.TempDir()
	if err := Archive(filepath.Join(root, "missing"), filepath.Join(root, "out"+ArchiveSuffix)); err == nil {
		t.Error("expected an error for a missing source directory")
	}
}
