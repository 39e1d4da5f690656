package types

import (
	"fmt"
	"strings"
)

type ContainerFormat string

const (
	FormatDocker      ContainerFormat = "docker"
	FormatSingularity ContainerFormat = "singularity"
)

// DefaultSingularityVersion is the Singularity release the definition files target.
const DefaultSingularityVersion = "3.3"

func ParseContainerFormat(s string) (ContainerFormat, error) {
	switch ContainerFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDocker:
		return FormatDocker, nil
	case FormatSingularity:
		return FormatSingularity, nil
	}
	return "", fmt.Errorf("unknown container format %q (supported: %s, %s)", s, FormatDocker, FormatSingularity)
}

func SupportedFormats() []ContainerFormat {
	return []ContainerFormat{FormatDocker, FormatSingularity}
}

// RecipeSuffix is appended to a stage identifier to form its recipe file name.
func (f ContainerFormat) RecipeSuffix() string {
	if f == FormatSingularity {
		return ".def"
	}
	return ".Dockerfile"
}

// ImageSuffix is appended to a stage identifier when a later stage uses it as
// its base image. Singularity stages reference the built .sif archive of the
// previous stage, Docker stages reference the tagged image directly.
func (f ContainerFormat) ImageSuffix() string {
	if f == FormatSingularity {
		return ".sif"
	}
	return ""
}

func (f ContainerFormat) String() string {
	return string(f)
}

type OperationType string

const (
	OperationTypeBaseImage   OperationType = "baseimage"
	OperationTypePackages    OperationType = "packages"
	OperationTypeShell       OperationType = "shell"
	OperationTypeEnvironment OperationType = "environment"
)

type Bootstrap string

const (
	BootstrapDocker     Bootstrap = "docker"
	BootstrapLocalImage Bootstrap = "localimage"
	BootstrapLibrary    Bootstrap = "library"
)

type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type Operation struct {
	Type        OperationType `json:"type"`
	Image       string        `json:"image,omitempty"`
	Bootstrap   Bootstrap     `json:"bootstrap,omitempty"`
	Packages    []string      `json:"packages,omitempty"`
	Commands    []string      `json:"commands,omitempty"`
	Environment []EnvVar      `json:"environment,omitempty"`
}

func BaseImage(image string, bootstrap Bootstrap) *Operation {
	return &Operation{Type: OperationTypeBaseImage, Image: image, Bootstrap: bootstrap}
}

func Packages(pkgs ...string) *Operation {
	return &Operation{Type: OperationTypePackages, Packages: pkgs}
}

func Shell(commands ...string) *Operation {
	return &Operation{Type: OperationTypeShell, Commands: commands}
}

func Environment(vars ...EnvVar) *Operation {
	return &Operation{Type: OperationTypeEnvironment, Environment: vars}
}

// Description is the ordered list of build operations making up one stage.
// Operations can only be appended.
type Description struct {
	operations []*Operation
}

func NewDescription() *Description {
	return &Description{}
}

func (d *Description) Add(ops ...*Operation) *Description {
	for _, op := range ops {
		if op != nil {
			d.operations = append(d.operations, op)
		}
	}
	return d
}

func (d *Description) Operations() []*Operation {
	ops := make([]*Operation, len(d.operations))
	copy(ops, d.operations)
	return ops
}

// Clone returns a deep copy of the description.
func (d *Description) Clone() *Description {
	c := &Description{operations: make([]*Operation, len(d.operations))}
	for i, op := range d.operations {
		cp := *op
		cp.Packages = append([]string(nil), op.Packages...)
		cp.Commands = append([]string(nil), op.Commands...)
		cp.Environment = append([]EnvVar(nil), op.Environment...)
		c.operations[i] = &cp
	}
	return c
}

func (d *Description) Len() int {
	return len(d.operations)
}

// BaseImage returns the image of the first baseimage operation, or "" if the
// description has none.
func (d *Description) BaseImage() string {
	for _, op := range d.operations {
		if op.Type == OperationTypeBaseImage {
			return op.Image
		}
	}
	return ""
}

// Commands flattens the commands of all shell operations in order.
func (d *Description) Commands() []string {
	var commands []string
	for _, op := range d.operations {
		if op.Type == OperationTypeShell {
			commands = append(commands, op.Commands...)
		}
	}
	return commands
}

type PackageSpec struct {
	StageName   string   `json:"stage_name" yaml:"stage_name" toml:"stage_name"`
	PackageName string   `json:"package_name" yaml:"package_name" toml:"package_name"`
	Versions    []string `json:"versions" yaml:"versions" toml:"versions"`
}

type GeneratorConfig struct {
	Format      ContainerFormat `json:"container"`
	Image       string          `json:"image"`
	OutputDir   string          `json:"output_dir"`
	BuildScript string          `json:"build_script"`
	Packages    []PackageSpec   `json:"packages"`
	FinalStage  bool            `json:"final_stage"`
	Archive     string          `json:"archive,omitempty"`
	// Warnings are non fatal findings of config validation.
	Warnings []string `json:"-"`
}

type DockerfileInstruction struct {
	Command string `json:"command"`
	Value   string `json:"value"`
	Line    int    `json:"line"`
	// Lines holds the arguments as written, one entry per physical line with
	// the continuation backslash removed.
	Lines []string `json:"lines,omitempty"`
}
