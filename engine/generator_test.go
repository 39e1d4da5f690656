package engine

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	_ "github.com/bibin-skaria/stackgen/emitters/docker"
	_ "github.com/bibin-skaria/stackgen/emitters/singularity"
	"github.com/bibin-skaria/stackgen/exporters"
	_ "github.com/bibin-skaria/stackgen/frontends/dockerfile"
	_ "github.com/bibin-skaria/stackgen/frontends/singularity"
	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/logging"
	"github.com/bibin-skaria/stackgen/internal/types"
)

func testConfig(t *testing.T, format types.ContainerFormat) *types.GeneratorConfig {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "build.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &types.GeneratorConfig{
		Format:      format,
		Image:       "ubuntu18.04",
		OutputDir:   filepath.Join(dir, "out"),
		BuildScript: script,
		Packages: []types.PackageSpec{
			{StageName: "cmake_image", PackageName: "cmake", Versions: []string{"3.16.5"}},
			{StageName: "gcc_image", PackageName: "gcc", Versions: []string{"", "9.1.0"}},
		},
		FinalStage: true,
	}
}

func TestGenerate(t *testing.T) {
	for _, format := range types.SupportedFormats() {
		t.Run(format.String(), func(t *testing.T) {
			cfg := testConfig(t, format)
			gen, err := NewGenerator(cfg, logging.Discard())
			if err != nil {
				t.Fatalf("NewGenerator() error = %v", err)
			}
			var progress bytes.Buffer
			gen.SetProgressOutput(&progress)

			result, err := gen.Generate()
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			wantStages := []string{"00_base_image", "01_cmake_image", "02_gcc_image", "03_final_image"}
			if diff := cmp.Diff(wantStages, result.Stages); diff != "" {
				t.Errorf("stages mismatch (-want +got):\n%s", diff)
			}
			if result.FinalStage != "03_final_image" {
				t.Errorf("FinalStage = %q", result.FinalStage)
			}
			for _, id := range wantStages {
				if _, err := os.Stat(filepath.Join(cfg.OutputDir, id+format.RecipeSuffix())); err != nil {
					t.Errorf("recipe %s missing: %v", id, err)
				}
			}

			final, err := exporters.ReadFinalStage(cfg.OutputDir)
			if err != nil || final != "03_final_image" {
				t.Errorf("ReadFinalStage() = %q, %v", final, err)
			}

			link, err := os.Readlink(filepath.Join(cfg.OutputDir, "build.sh"))
			if err != nil || link != cfg.BuildScript {
				t.Errorf("build script link = %q, %v", link, err)
			}

			if !strings.Contains(progress.String(), "Generated 4 stages") {
				t.Errorf("unexpected progress output %q", progress.String())
			}

			report, err := Inspect(cfg.OutputDir, format)
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if len(report.Stages) != 4 || report.FinalStage != "03_final_image" {
				t.Errorf("unexpected report %+v", report)
			}
			if report.Stages[2].BaseImage != "01_cmake_image"+format.ImageSuffix() {
				t.Errorf("stage 2 base image = %q", report.Stages[2].BaseImage)
			}
		})
	}
}

func TestGenerateWithoutFinalStage(t *testing.T) {
	cfg := testConfig(t, types.FormatDocker)
	cfg.FinalStage = false

	gen, err := NewGenerator(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	result, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(result.Stages) != 3 || result.FinalStage != "" {
		t.Errorf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, exporters.FinalStageFile)); !os.IsNotExist(err) {
		t.Errorf("final stage file should not exist, stat error = %v", err)
	}
}

func TestGenerateExistingDirectoryKeepsScript(t *testing.T) {
	cfg := testConfig(t, types.FormatSingularity)
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		t.Fatal(err)
	}

	gen, err := NewGenerator(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Generate(); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.OutputDir, "build.sh")); !os.IsNotExist(err) {
		t.Errorf("build script should only be linked into a new directory, lstat error = %v", err)
	}
}

func TestGenerateArchive(t *testing.T) {
	cfg := testConfig(t, types.FormatSingularity)
	cfg.Archive = filepath.Join(t.TempDir(), "recipes"+exporters.ArchiveSuffix)

	gen, err := NewGenerator(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	result, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Archive != cfg.Archive {
		t.Errorf("Archive = %q", result.Archive)
	}

	names, err := exporters.ListArchive(cfg.Archive)
	if err != nil {
		t.Fatalf("ListArchive() error = %v", err)
	}
	if !contains(names, "out/00_base_image.def") || !contains(names, "out/"+exporters.FinalStageFile) {
		t.Errorf("archive entries = %v", names)
	}
}

func TestNewGeneratorRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, types.FormatDocker)
	cfg.Image = "centos7"

	_, err := NewGenerator(cfg, logging.Discard())
	if !stderrors.Is(err, errors.ErrUnsupportedImage) {
		t.Errorf("NewGenerator() error = %v, want ErrUnsupportedImage", err)
	}
	if _, err := os.Stat(cfg.OutputDir); !os.IsNotExist(err) {
		t.Errorf("output directory should not be created")
	}
}

func TestInspectDetectsBrokenChain(t *testing.T) {
	cfg := testConfig(t, types.FormatDocker)
	gen, err := NewGenerator(cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Generate(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(cfg.OutputDir, "02_gcc_image"+types.FormatDocker.RecipeSuffix())
	if err := os.WriteFile(path, []byte("FROM 00_base_image\nRUN true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err = Inspect(cfg.OutputDir, types.FormatDocker)
	if !stderrors.Is(err, errors.ErrMalformedSpec) {
		t.Errorf("Inspect() error = %v, want ErrMalformedSpec", err)
	}
}

func TestInspectEmptyDirectory(t *testing.T) {
	_, err := Inspect(t.TempDir(), types.FormatSingularity)
	if !stderrors.Is(err, errors.ErrEmptyChain) {
		t.Errorf("Inspect() error = %v, want ErrEmptyChain", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewGeneratorLogsWarnings(t *testing.T) {
	cfg := testConfig(t, types.FormatDocker)
	cfg.Packages[0].Versions = []string{"3.16.5", "3.16.5"}

	var logs bytes.Buffer
	logger := logging.New(logging.Options{Level: "warn", Output: &logs})
	if _, err := NewGenerator(cfg, logging.Component(logger, "test")); err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	if !strings.Contains(logs.String(), "installed twice") {
		t.Errorf("warning not logged: %q", logs.String())
	}
}
