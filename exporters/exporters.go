package exporters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/bibin-skaria/stackgen/chain"
	"github.com/bibin-skaria/stackgen/emitters"
	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
)

// FinalStageFile holds the identifier of the runnable image of the chain.
const FinalStageFile = "final_stage_name.txt"

type WriteOptions struct {
	OutputDir string
	Format    types.ContainerFormat
	Emitter   emitters.Emitter
	// BuildScript is linked into OutputDir when the directory is created.
	BuildScript string
	// FinalStageName is written to FinalStageFile when not empty.
	FinalStageName string
	Logger         *logrus.Entry
}

type WriteResult struct {
	OutputDir      string
	Files          []string
	BytesWritten   int64
	CreatedDir     bool
	BuildScript    string
	FinalStageFile string
}

// WriteChain renders every entry into OutputDir in chain order. Files written
// before a failure are left in place.
func WriteChain(entries []chain.Entry, opts WriteOptions) (*WriteResult, error) {
	if opts.Emitter == nil {
		return nil, fmt.Errorf("no emitter configured for format %s", opts.Format)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	result := &WriteResult{OutputDir: opts.OutputDir}

	created, err := ensureDir(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	result.CreatedDir = created

	if created && opts.BuildScript != "" {
		link, err := linkBuildScript(opts.OutputDir, opts.BuildScript)
		if err != nil {
			return result, err
		}
		result.BuildScript = link
		log.WithField("link", link).Debug("build script linked")
	}

	for _, entry := range entries {
		path := filepath.Join(opts.OutputDir, entry.Identifier+opts.Format.RecipeSuffix())
		content := opts.Emitter.Render(entry.Description)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return result, errors.NewFilesystemError("write_recipe", path, err)
		}
		result.Files = append(result.Files, path)
		result.BytesWritten += int64(len(content))
		log.WithFields(logrus.Fields{
			"stage": entry.Identifier,
			"path":  path,
		}).Debug("recipe written")
	}

	if opts.FinalStageName != "" {
		path := filepath.Join(opts.OutputDir, FinalStageFile)
		if err := os.WriteFile(path, []byte(opts.FinalStageName), 0644); err != nil {
			return result, errors.NewFilesystemError("write_final_stage", path, err)
		}
		result.FinalStageFile = path
	}

	log.WithFields(logrus.Fields{
		"recipes": len(result.Files),
		"size":    humanize.Bytes(uint64(result.BytesWritten)),
		"dir":     opts.OutputDir,
	}).Info("recipes written")

	return result, nil
}

func ensureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, errors.NewFilesystemError("create_output_dir", dir, fmt.Errorf("not a directory"))
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, errors.NewFilesystemError("create_output_dir", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errors.NewFilesystemError("create_output_dir", dir, err)
	}
	return true, nil
}

func linkBuildScript(dir, script string) (string, error) {
	target, err := filepath.Abs(script)
	if err != nil {
		return "", errors.NewFilesystemError("link_build_script", script, err)
	}
	link := filepath.Join(dir, filepath.Base(script))
	if err := os.Symlink(target, link); err != nil {
		return "", errors.NewFilesystemError("link_build_script", link, err)
	}
	return link, nil
}

// RecipeFile is a recipe found on disk by ReadChain.
type RecipeFile struct {
	Index      int
	Label      string
	Identifier string
	Path       string
}

// ReadChain lists the recipes of format in dir ordered by stage index.
func ReadChain(dir string, format types.ContainerFormat) ([]RecipeFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFilesystemError("read_output_dir", dir, err)
	}

	suffix := format.RecipeSuffix()
	var files []RecipeFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), suffix)
		index, label, err := chain.ParseIdentifier(id)
		if err != nil {
			continue
		}
		files = append(files, RecipeFile{
			Index:      index,
			Label:      label,
			Identifier: id,
			Path:       filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Index < files[j].Index
	})
	return files, nil
}

// ReadFinalStage returns the content of FinalStageFile, or "" if it does not exist.
func ReadFinalStage(dir string) (string, error) {
	path := filepath.Join(dir, FinalStageFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewFilesystemError("read_final_stage", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
