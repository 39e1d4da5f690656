package alpaka

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bibin-skaria/stackgen/internal/types"
	"github.com/bibin-skaria/stackgen/layers"
)

const (
	// ClingImage is a Singularity library image with xeus-cling and CUDA 8 on
	// Ubuntu 16.04.
	ClingImage = "sehrig/default/xeus-cling-cuda-cxx:2.2"

	KernelDir = "/opt/miniconda3/share/jupyter/kernels"
	xcpp      = "/opt/miniconda3/bin/xcpp"
)

// KernelStandards are the C++ standards a Jupyter kernel is registered for.
var KernelStandards = []int{11, 14, 17}

// KernelSpec is the content of a Jupyter kernel.json.
type KernelSpec struct {
	DisplayName string   `json:"display_name"`
	Argv        []string `json:"argv"`
	Language    string   `json:"language"`
}

// Kernel returns the alpaka kernel for std, compiling device code with
// -xcuda when cuda is set.
func Kernel(std int, cuda bool) KernelSpec {
	spec := KernelSpec{
		DisplayName: fmt.Sprintf("Alpaka-C++%d", std),
		Argv: []string{
			xcpp,
			"-f",
			"{connection_file}",
			fmt.Sprintf("-std=c++%d", std),
			"-I/usr/local/include/c++/v1",
			"-fopenmp",
		},
		Language: "C++",
	}
	if cuda {
		spec.DisplayName += "-CUDA"
		spec.Argv = append(spec.Argv, "-xcuda")
	}
	return spec
}

// KernelName is the directory of the kernel below KernelDir.
func KernelName(std int, cuda bool) string {
	name := fmt.Sprintf("alpaka-cpp%d", std)
	if cuda {
		name += "-cuda"
	}
	return name
}

// ClingRecipe returns the description of a xeus-cling image with the alpaka
// dependencies and one Jupyter kernel per C++ standard, with and without CUDA.
// The base image only exists in the Singularity library.
func ClingRecipe() (*types.Description, error) {
	desc := types.NewDescription().Add(types.BaseImage(ClingImage, types.BootstrapLibrary))
	if err := addDependencies(desc, layers.DistributionXenial, true, nil, false); err != nil {
		return nil, err
	}

	commands := []string{
		"mkdir -p " + KernelDir + "/",
		"cd " + KernelDir + "/",
	}
	for _, std := range KernelStandards {
		for _, cuda := range []bool{false, true} {
			data, err := json.Marshal(Kernel(std, cuda))
			if err != nil {
				return nil, fmt.Errorf("failed to encode kernel spec: %v", err)
			}
			if strings.Contains(string(data), "'") {
				return nil, fmt.Errorf("kernel spec %s cannot be quoted", KernelName(std, cuda))
			}
			name := KernelName(std, cuda)
			commands = append(commands,
				"mkdir -p "+name,
				fmt.Sprintf("echo '%s' > %s/kernel.json", data, name),
			)
		}
	}
	commands = append(commands, "cd -")

	return desc.Add(types.Shell(commands...)), nil
}
