package layers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/bibin-skaria/stackgen/internal/errors"
)

// Images maps the supported base image keys to their Docker Hub references.
var Images = map[string]string{
	"ubuntu16.04": "ubuntu:xenial",
	"ubuntu18.04": "ubuntu:bionic",
	"cuda8":       "nvidia/cuda:8.0-devel-ubuntu16.04",
	"cuda9":       "nvidia/cuda:9.0-devel-ubuntu16.04",
	"cuda9.1":     "nvidia/cuda:9.1-devel-ubuntu16.04",
	"cuda9.2":     "nvidia/cuda:9.2-devel-ubuntu16.04",
	"cuda10.0":    "nvidia/cuda:10.0-devel-ubuntu18.04",
	"cuda10.1":    "nvidia/cuda:10.1-devel-ubuntu18.04",
	"cuda10.2":    "nvidia/cuda:10.2-devel-ubuntu18.04",
}

// DefaultImage is used when the caller does not pick a base image.
const DefaultImage = "ubuntu18.04"

// SupportedImages returns the image keys in sorted order.
func SupportedImages() []string {
	keys := make([]string, 0, len(Images))
	for key := range Images {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// BaseImage is a resolved entry of the image registry.
type BaseImage struct {
	Key          string
	Reference    name.Reference
	Distribution Distribution
	CUDA         bool
}

// Image returns the reference as written in recipes, e.g. "ubuntu:bionic".
func (b BaseImage) Image() string {
	return Images[b.Key]
}

// LookupImage resolves key against the registry.
func LookupImage(key string) (BaseImage, error) {
	image, ok := Images[key]
	if !ok {
		return BaseImage{}, errors.NewUnsupportedImageError(key, SupportedImages())
	}

	ref, err := name.ParseReference(image)
	if err != nil {
		return BaseImage{}, fmt.Errorf("invalid reference %q for image %s: %w", image, key, err)
	}

	distro, err := DetectDistribution(key + " " + ref.Identifier())
	if err != nil {
		return BaseImage{}, err
	}

	return BaseImage{
		Key:          key,
		Reference:    ref,
		Distribution: distro,
		CUDA:         strings.Contains(key, "cuda"),
	}, nil
}

type Distribution string

const (
	DistributionXenial Distribution = "16.04"
	DistributionBionic Distribution = "18.04"
)

// DetectDistribution maps an image key or tag onto an Ubuntu release by
// substring, the same way for every caller.
func DetectDistribution(s string) (Distribution, error) {
	switch {
	case strings.Contains(s, "16.04") || strings.Contains(s, "xenial"):
		return DistributionXenial, nil
	case strings.Contains(s, "18.04") || strings.Contains(s, "bionic"):
		return DistributionBionic, nil
	}
	return "", errors.NewUnsupportedDistributionError(s)
}

// Codename is the Ubuntu release name used in apt repositories.
func (d Distribution) Codename() string {
	switch d {
	case DistributionXenial:
		return "xenial"
	case DistributionBionic:
		return "bionic"
	}
	return ""
}

// AgentPackage is the gpg agent package, which was renamed between releases.
func (d Distribution) AgentPackage() string {
	switch d {
	case DistributionXenial:
		return "gnupg-agent"
	case DistributionBionic:
		return "gpg-agent"
	}
	return ""
}
