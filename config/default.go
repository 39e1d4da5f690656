package config

import (
	"github.com/bibin-skaria/stackgen/internal/types"
)

// DefaultPackages is the toolchain stack built when no descriptor is given.
// An empty version installs the latest release known to spack.
var DefaultPackages = []types.PackageSpec{
	{StageName: "cmake_image", PackageName: "cmake", Versions: []string{"3.16.5"}},
	{StageName: "gcc_image", PackageName: "gcc", Versions: []string{"", "5.5.0", "6.4.0", "7.3.0", "8.1.0", "9.1.0"}},
	{StageName: "llvm_image", PackageName: "llvm", Versions: []string{"", "5.0.2", "6.0.1", "7.1.0", "8.0.0", "9.0.1"}},
	{StageName: "cuda_image", PackageName: "cuda", Versions: []string{"", "9.0.176", "9.1.85", "9.2.88", "10.0.130", "10.1.243"}},
	{StageName: "boost_image", PackageName: "boost", Versions: []string{"", "1.67.0", "1.69.0", "1.71.0"}},
}

// Default returns the built-in CI pipeline for format on top of image.
func Default(format types.ContainerFormat, image string) *types.GeneratorConfig {
	pkgs := make([]types.PackageSpec, len(DefaultPackages))
	for i, p := range DefaultPackages {
		pkgs[i] = types.PackageSpec{
			StageName:   p.StageName,
			PackageName: p.PackageName,
			Versions:    append([]string(nil), p.Versions...),
		}
	}

	cfg := &types.GeneratorConfig{
		Format:     format,
		Image:      image,
		Packages:   pkgs,
		FinalStage: true,
	}
	applyDefaults(cfg)
	return cfg
}
