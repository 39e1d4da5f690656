// Package alpaka builds a single stage recipe with the dependencies needed to
// build and run the alpaka library: extra compilers, boost, cmake, ninja and,
// for CUDA images, the driver stub paths.
package alpaka

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/types"
	"github.com/bibin-skaria/stackgen/layers"
)

const (
	CMakeVersion = "3.16.0"
	NinjaVersion = "1.9.0"
	BoostPackage = "boost1.67"
	Repository   = "https://github.com/alpaka-group/alpaka.git"
)

var AptPackages = []string{
	"gcc", "g++", "make", "software-properties-common",
	"wget", "libc6-dev", "libomp-dev", "unzip", "git",
}

type CompilerFamily string

const (
	GCC   CompilerFamily = "gcc"
	Clang CompilerFamily = "clang"
)

// Compiler is an extra compiler installed next to the system one.
type Compiler struct {
	Family  CompilerFamily
	Version string
}

func (c Compiler) String() string {
	return string(c.Family) + ":" + c.Version
}

// ParseCompiler parses "gcc:<version>" or "clang:<version>".
func ParseCompiler(s string) (Compiler, error) {
	family, version, ok := strings.Cut(s, ":")
	if !ok || version == "" {
		return Compiler{}, unsupportedCompiler(s)
	}
	switch CompilerFamily(family) {
	case GCC, Clang:
	default:
		return Compiler{}, unsupportedCompiler(s)
	}
	if _, err := semver.NewVersion(version); err != nil {
		return Compiler{}, unsupportedCompiler(s)
	}
	return Compiler{Family: CompilerFamily(family), Version: version}, nil
}

func unsupportedCompiler(s string) error {
	return errors.NewErrorBuilder().
		Category(errors.ErrorCategoryValidation).
		Code(errors.CodeMalformedSpec).
		Operation("parse_compiler").
		Messagef("%q is not a supported compiler", s).
		Suggestion("Use gcc:<version> or clang:<version>, e.g. gcc:8 clang:7.0 clang:8").
		Build()
}

type Options struct {
	Image         string
	Compilers     []string
	InstallAlpaka bool
}

// Recipe returns the description of the alpaka dependency image.
func Recipe(opts Options) (*types.Description, error) {
	if opts.Image == "" {
		opts.Image = layers.DefaultImage
	}
	image, err := layers.LookupImage(opts.Image)
	if err != nil {
		return nil, err
	}

	compilers := make([]Compiler, 0, len(opts.Compilers))
	for _, c := range opts.Compilers {
		compiler, err := ParseCompiler(c)
		if err != nil {
			return nil, err
		}
		compilers = append(compilers, compiler)
	}

	desc := types.NewDescription().Add(types.BaseImage(image.Image(), types.BootstrapDocker))
	if err := addDependencies(desc, image.Distribution, image.CUDA, compilers, opts.InstallAlpaka); err != nil {
		return nil, err
	}
	desc.Add(ninjaInstall(NinjaVersion))
	return desc, nil
}

// addDependencies appends everything needed to build and run alpaka.
func addDependencies(desc *types.Description, dist layers.Distribution, cuda bool, compilers []Compiler, installAlpaka bool) error {
	pkgs := make([]string, len(AptPackages), len(AptPackages)+1)
	copy(pkgs, AptPackages)
	pkgs = append(pkgs, dist.AgentPackage())

	desc.Add(
		types.Packages(pkgs...),
		cmakeInstall(CMakeVersion),
	)

	for _, c := range compilers {
		switch c.Family {
		case GCC:
			desc.Add(
				types.Shell("add-apt-repository -y ppa:ubuntu-toolchain-r/test"),
				types.Packages("gcc-"+c.Version, "g++-"+c.Version),
			)
		case Clang:
			ops, err := clangInstall(dist, c.Version)
			if err != nil {
				return err
			}
			desc.Add(ops...)
		}
	}

	desc.Add(
		types.Shell("add-apt-repository -y ppa:mhier/libboost-latest"),
		types.Packages(BoostPackage),
	)

	if cuda {
		desc.Add(types.Environment(
			types.EnvVar{Name: "LD_LIBRARY_PATH", Value: "$LD_LIBRARY_PATH:/usr/local/cuda/lib64"},
			// libcuda is only mounted at runtime, link against the stubs
			types.EnvVar{Name: "LIBRARY_PATH", Value: "$LIBRARY_PATH:/usr/local/cuda/lib64/stubs"},
			types.EnvVar{Name: "CMAKE_PREFIX_PATH", Value: "/usr/local/cuda/lib64/stubs/"},
		))
	}

	if installAlpaka {
		desc.Add(types.Shell(
			"mkdir -p /opt && cd /opt && git clone --depth=1 "+Repository+" alpaka && cd -",
			"mkdir -p /opt/alpaka/build && cd /opt/alpaka/build && cmake -DCMAKE_INSTALL_PREFIX=/usr/local -Dalpaka_BUILD_EXAMPLES=OFF -DBUILD_TESTING=OFF /opt/alpaka",
			"cmake --build /opt/alpaka/build --target install -- -j$(nproc)",
			"rm -rf /opt/alpaka",
		))
	}
	return nil
}

func cmakeInstall(version string) *types.Operation {
	installer := fmt.Sprintf("cmake-%s-Linux-x86_64.sh", version)
	return types.Shell(
		fmt.Sprintf("mkdir -p /var/tmp && wget -q -nc --no-check-certificate -P /var/tmp https://github.com/Kitware/CMake/releases/download/v%s/%s", version, installer),
		"mkdir -p /usr/local",
		fmt.Sprintf("/bin/sh /var/tmp/%s --prefix=/usr/local --skip-license", installer),
		"rm -rf /var/tmp/"+installer,
	)
}

// clangInstall adds the apt.llvm.org repository and installs clang. From
// clang 8 on the repository name carries the major version.
func clangInstall(dist layers.Distribution, version string) ([]*types.Operation, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, unsupportedCompiler("clang:" + version)
	}
	suffix := ""
	if !v.LessThan(semver.MustParse("8")) {
		suffix = "-" + version
	}

	codename := dist.Codename()
	repo := fmt.Sprintf("http://apt.llvm.org/%s/ llvm-toolchain-%s%s main", codename, codename, suffix)

	return []*types.Operation{
		types.Shell(
			"wget http://llvm.org/apt/llvm-snapshot.gpg.key",
			"apt-key add llvm-snapshot.gpg.key",
			"rm llvm-snapshot.gpg.key",
			`echo "" >> /etc/apt/sources.list`,
			fmt.Sprintf(`echo "deb %s" >> /etc/apt/sources.list`, repo),
			fmt.Sprintf(`echo "deb-src %s" >> /etc/apt/sources.list`, repo),
		),
		types.Packages("clang-"+version, "libomp-dev"),
	}, nil
}

func ninjaInstall(version string) *types.Operation {
	return types.Shell(
		"cd /opt",
		fmt.Sprintf("wget https://github.com/ninja-build/ninja/releases/download/v%s/ninja-linux.zip", version),
		"unzip ninja-linux.zip",
		"mv ninja /usr/local/bin/",
		"rm ninja-linux.zip",
		"cd -",
	)
}
