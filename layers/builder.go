package layers

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bibin-skaria/stackgen/chain"
	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
)

const (
	BaseStageLabel  = "base_image"
	FinalStageLabel = "final_image"

	SpackRoot       = "/opt/spack"
	SpackBinary     = SpackRoot + "/bin/spack"
	SpackTarget     = "x86_64"
	SpackRepository = "https://github.com/spack/spack"
	SpackBranch     = "master"

	// VersionSeparator joins a package name and a pinned version, e.g. gcc@9.1.0.
	VersionSeparator = "@"
)

// CorePackages are installed with apt in every base layer.
var CorePackages = []string{
	"apt-transport-https", "autoconf", "build-essential", "bzip2",
	"ca-certificates", "coreutils", "curl", "environment-modules", "gdb",
	"git", "g++", "gzip", "less", "libc6-dev", "libomp-dev", "libssl-dev",
	"locales", "locales-all", "make", "nano", "patch", "pkg-config",
	"software-properties-common", "tar", "tcl", "unzip", "wget", "zlib1g",
}

// StageEnvironment is set in every stage. Each stage is a standalone recipe,
// so nothing can be assumed to carry over from the previous image.
var StageEnvironment = []types.EnvVar{
	{Name: "PATH", Value: SpackRoot + "/bin:$PATH"},
	{Name: "FORCE_UNSAFE_CONFIGURE", Value: "1"},
}

// Builder appends stages to a chain for one container format.
type Builder struct {
	chain  *chain.Chain
	format types.ContainerFormat
	log    *logrus.Entry
}

func NewBuilder(c *chain.Chain, format types.ContainerFormat, log *logrus.Entry) *Builder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Builder{
		chain:  c,
		format: format,
		log:    log.WithField("format", format),
	}
}

func (b *Builder) Chain() *chain.Chain {
	return b.chain
}

func (b *Builder) Format() types.ContainerFormat {
	return b.format
}

// BaseLayer pulls the external image, installs the OS packages, configures the
// locale and bootstraps spack. The chain is left untouched on error.
func (b *Builder) BaseLayer(imageKey string) (string, error) {
	image, err := LookupImage(imageKey)
	if err != nil {
		return "", err
	}

	pkgs := make([]string, len(CorePackages), len(CorePackages)+1)
	copy(pkgs, CorePackages)
	pkgs = append(pkgs, image.Distribution.AgentPackage())

	desc := types.NewDescription().Add(
		types.BaseImage(image.Image(), types.BootstrapDocker),
		types.Packages(pkgs...),
		types.Shell(
			"locale-gen en_US.UTF-8",
			"update-locale LANG=en_US.UTF-8",
		),
		types.Shell(
			fmt.Sprintf("mkdir -p /opt && cd /opt && git clone --depth=1 --branch %s %s spack && cd -", SpackBranch, SpackRepository),
			SpackBinary+" bootstrap",
			"ln -s "+SpackRoot+"/share/spack/setup-env.sh /etc/profile.d/spack.sh",
			"ln -s "+SpackRoot+"/share/spack/spack-completion.bash /etc/profile.d",
		),
		types.Environment(StageEnvironment...),
	)

	id := b.chain.Append(BaseStageLabel, desc)
	b.log.WithFields(logrus.Fields{
		"stage":        id,
		"image":        image.Image(),
		"distribution": image.Distribution,
	}).Debug("base layer appended")
	return id, nil
}

// InstallCommand returns the spack command installing pkg, pinned to version
// unless version is empty.
func InstallCommand(pkg, version string) string {
	spec := pkg
	if version != "" {
		spec += VersionSeparator + version
	}
	return fmt.Sprintf("%s install -y -n %s target=%s", SpackBinary, spec, SpackTarget)
}

// CleanCommand removes spack's caches.
func CleanCommand() string {
	return SpackBinary + " clean --all"
}

// IncrementalLayer installs every version of pkg on top of the previous stage,
// in order, inside one stage labeled label.
func (b *Builder) IncrementalLayer(label, pkg string, versions []string) (string, error) {
	if err := ValidatePackage(types.PackageSpec{StageName: label, PackageName: pkg, Versions: versions}); err != nil {
		return "", err
	}

	desc, err := b.fromPrevious("incremental_layer", label)
	if err != nil {
		return "", err
	}

	commands := make([]string, 0, len(versions)+1)
	for _, v := range versions {
		commands = append(commands, InstallCommand(pkg, v))
	}
	commands = append(commands, CleanCommand())
	desc.Add(types.Shell(commands...))

	id := b.chain.Append(label, desc)
	b.log.WithFields(logrus.Fields{
		"stage":    id,
		"package":  pkg,
		"versions": len(versions),
	}).Debug("incremental layer appended")
	return id, nil
}

// FinalLayer removes leftovers from the CUDA installation and cleans spack.
func (b *Builder) FinalLayer() (string, error) {
	desc, err := b.fromPrevious("final_layer", FinalStageLabel)
	if err != nil {
		return "", err
	}

	desc.Add(types.Shell(
		"rm -rf /usr/local/cuda",
		CleanCommand(),
	))

	id := b.chain.Append(FinalStageLabel, desc)
	b.log.WithField("stage", id).Debug("final layer appended")
	return id, nil
}

// fromPrevious starts a description whose base image is the last stage.
func (b *Builder) fromPrevious(operation, label string) (*types.Description, error) {
	prev, err := b.chain.LastIdentifier()
	if err != nil {
		return nil, errors.NewEmptyChainError(operation, label)
	}

	return types.NewDescription().Add(
		types.BaseImage(prev+b.format.ImageSuffix(), types.BootstrapLocalImage),
		types.Environment(StageEnvironment...),
	), nil
}

// ValidatePackage rejects specs that would produce an invalid install directive
// or a recipe file outside the output directory.
func ValidatePackage(spec types.PackageSpec) error {
	switch {
	case spec.StageName == "":
		return errors.NewMalformedSpecError(spec.StageName, fmt.Sprintf("package %q has no stage name", spec.PackageName))
	case spec.PackageName == "":
		return errors.NewMalformedSpecError(spec.StageName, "empty package name")
	case strings.ContainsAny(spec.StageName, `/\`) || strings.Contains(spec.StageName, ".."):
		return errors.NewMalformedSpecError(spec.StageName, fmt.Sprintf("stage name %q must not contain path separators or \"..\"", spec.StageName))
	case len(spec.Versions) == 0:
		return errors.NewMalformedSpecError(spec.StageName, fmt.Sprintf("package %q has no versions, use \"\" for the default version", spec.PackageName))
	}
	return nil
}
