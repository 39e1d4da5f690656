package engine

import (
	"fmt"
	"os"

	"github.com/bibin-skaria/stackgen/exporters"
	"github.com/bibin-skaria/stackgen/frontends"
	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
)

// StageReport is the parsed summary of one recipe on disk.
type StageReport struct {
	Identifier string
	Path       string
	BaseImage  string
	Commands   int
}

type InspectReport struct {
	Format     types.ContainerFormat
	Stages     []StageReport
	FinalStage string
}

// Inspect re-reads a generated directory and checks that every stage after
// the first is built from the image of the stage before it, and that the
// final stage marker names a recipe of the chain.
func Inspect(dir string, format types.ContainerFormat) (*InspectReport, error) {
	frontend, err := frontends.GetFrontend(format)
	if err != nil {
		return nil, fmt.Errorf("failed to get frontend: %v", err)
	}

	files, err := exporters.ReadChain(dir, format)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewEmptyChainError("inspect", dir)
	}

	report := &InspectReport{Format: format}
	ids := make(map[string]bool, len(files))
	for i, f := range files {
		if f.Index != i {
			return nil, brokenChain(f.Identifier, "expected stage index %d, found %d", i, f.Index)
		}

		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, errors.NewFilesystemError("read_recipe", f.Path, err)
		}
		desc, err := frontend.Parse(string(content))
		if err != nil {
			return nil, brokenChain(f.Identifier, "cannot parse %s: %v", f.Path, err)
		}

		base := desc.BaseImage()
		if i > 0 {
			want := files[i-1].Identifier + format.ImageSuffix()
			if base != want {
				return nil, brokenChain(f.Identifier, "built from %q, expected %q", base, want)
			}
		}

		ids[f.Identifier] = true
		report.Stages = append(report.Stages, StageReport{
			Identifier: f.Identifier,
			Path:       f.Path,
			BaseImage:  base,
			Commands:   len(desc.Commands()),
		})
	}

	final, err := exporters.ReadFinalStage(dir)
	if err != nil {
		return nil, err
	}
	if final != "" && !ids[final] {
		return nil, brokenChain(final, "%s names a stage that has no recipe", exporters.FinalStageFile)
	}
	report.FinalStage = final

	return report, nil
}

func brokenChain(stage, format string, args ...interface{}) error {
	return errors.NewErrorBuilder().
		Category(errors.ErrorCategoryChain).
		Code(errors.CodeMalformedSpec).
		Operation("inspect").
		Stage(stage).
		Messagef(format, args...).
		Build()
}
