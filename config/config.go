// Package config loads the descriptor of a recipe chain from JSON, YAML or
// TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
	"github.com/bibin-skaria/stackgen/layers"
)

const (
	DefaultOutputDir   = "build"
	DefaultBuildScript = "build.sh"
)

// file is the on-disk shape. Versions are pointers so that a null entry can
// be told apart from "" (install the default version).
type file struct {
	Container   string        `json:"container" yaml:"container" toml:"container"`
	Image       string        `json:"image" yaml:"image" toml:"image"`
	OutputDir   string        `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	BuildScript string        `json:"build_script" yaml:"build_script" toml:"build_script"`
	FinalStage  *bool         `json:"final_stage" yaml:"final_stage" toml:"final_stage"`
	Archive     string        `json:"archive" yaml:"archive" toml:"archive"`
	Packages    []filePackage `json:"packages" yaml:"packages" toml:"packages"`
}

type filePackage struct {
	StageName   string    `json:"stage_name" yaml:"stage_name" toml:"stage_name"`
	PackageName string    `json:"package_name" yaml:"package_name" toml:"package_name"`
	Versions    []*string `json:"versions" yaml:"versions" toml:"versions"`
}

// Load reads and validates the descriptor at path.
func Load(path string) (*types.GeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("cannot read config file %s", path), err)
	}
	return Parse(data, formatOf(path))
}

// Parse decodes data in the given syntax ("yaml", "json" or "toml").
func Parse(data []byte, syntax string) (*types.GeneratorConfig, error) {
	var f file
	switch syntax {
	case "toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, errors.NewConfigurationError("invalid TOML config", err)
		}
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, errors.NewConfigurationError("invalid JSON config", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.NewConfigurationError("invalid YAML config", err)
		}
	default:
		return nil, errors.NewConfigurationError(fmt.Sprintf("unsupported config syntax %q", syntax), nil)
	}

	return f.toConfig()
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func (f *file) toConfig() (*types.GeneratorConfig, error) {
	collector := errors.NewErrorCollector()

	cfg := &types.GeneratorConfig{
		Image:       f.Image,
		OutputDir:   f.OutputDir,
		BuildScript: f.BuildScript,
		FinalStage:  true,
		Archive:     f.Archive,
	}
	if f.FinalStage != nil {
		cfg.FinalStage = *f.FinalStage
	}

	if f.Container == "" {
		cfg.Format = types.FormatSingularity
	} else if format, err := types.ParseContainerFormat(f.Container); err != nil {
		collector.AddError(errors.NewConfigurationError("invalid container", err))
	} else {
		cfg.Format = format
	}

	for i, p := range f.Packages {
		versions := make([]string, 0, len(p.Versions))
		for j, v := range p.Versions {
			if v == nil {
				collector.AddError(errors.NewMalformedSpecError(p.StageName,
					fmt.Sprintf("packages[%d] (%s): versions[%d] is null", i, p.PackageName, j)))
				continue
			}
			versions = append(versions, *v)
		}
		cfg.Packages = append(cfg.Packages, types.PackageSpec{
			StageName:   p.StageName,
			PackageName: p.PackageName,
			Versions:    versions,
		})
	}

	applyDefaults(cfg)
	validate(cfg, collector)

	if err := collector.ToError(); err != nil {
		return nil, err
	}
	cfg.Warnings = collector.GetWarnings()
	return cfg, nil
}

func applyDefaults(cfg *types.GeneratorConfig) {
	if cfg.Image == "" {
		cfg.Image = layers.DefaultImage
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.BuildScript == "" {
		cfg.BuildScript = DefaultBuildScript
	}
}

// Validate checks a configuration built in code, e.g. from flags, and
// replaces cfg.Warnings with the non fatal findings.
func Validate(cfg *types.GeneratorConfig) error {
	collector := errors.NewErrorCollector()
	validate(cfg, collector)
	if err := collector.ToError(); err != nil {
		return err
	}
	cfg.Warnings = collector.GetWarnings()
	return nil
}

func validate(cfg *types.GeneratorConfig, collector *errors.ErrorCollector) {
	if _, ok := layers.Images[cfg.Image]; !ok {
		collector.AddError(errors.NewUnsupportedImageError(cfg.Image, layers.SupportedImages()))
	}
	stages := make(map[string]bool, len(cfg.Packages))
	for _, p := range cfg.Packages {
		if err := layers.ValidatePackage(p); err != nil {
			if buildErr, ok := err.(*errors.BuildError); ok {
				collector.AddError(buildErr)
			}
			continue
		}
		if stages[p.StageName] {
			collector.AddWarning(fmt.Sprintf("stage name %q is used more than once", p.StageName))
		}
		stages[p.StageName] = true

		seen := make(map[string]bool, len(p.Versions))
		for _, v := range p.Versions {
			if seen[v] {
				collector.AddWarning(fmt.Sprintf("%s: version %q of %s is installed twice", p.StageName, v, p.PackageName))
			}
			seen[v] = true
		}
	}
}
