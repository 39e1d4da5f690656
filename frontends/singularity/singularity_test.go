package singularity

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bibin-skaria/stackgen/emitters/singularity"
	"github.com/bibin-skaria/stackgen/frontends"
	"github.com/bibin-skaria/stackgen/internal/types"
)

func TestParseRoundTrip(t *testing.T) {
	desc := types.NewDescription().Add(
		types.BaseImage("03_llvm_image.sif", types.BootstrapLocalImage),
		types.Environment(
			types.EnvVar{Name: "PATH", Value: "/opt/spack/bin:$PATH"},
			types.EnvVar{Name: "FORCE_UNSAFE_CONFIGURE", Value: "1"},
		),
		types.Shell(
			"/opt/spack/bin/spack install -y -n cuda@10.1.243 target=x86_64",
			"/opt/spack/bin/spack clean --all",
		),
	)

	emitter, err := singularity.NewEmitter(types.DefaultSingularityVersion)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := (&DefinitionFrontend{}).Parse(emitter.Render(desc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff(desc.Operations(), parsed.Operations()); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePackagesAsCommands(t *testing.T) {
	content := `BootStrap: docker
From: ubuntu:xenial
%post
    . /.singularity.d/env/10-docker*.sh

%post
    apt-get update -y
    DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends \
        git \
        wget
    rm -rf /var/lib/apt/lists/*

%runscript
    exec /bin/bash
`
	desc, err := (&DefinitionFrontend{}).Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if desc.BaseImage() != "ubuntu:xenial" || desc.Operations()[0].Bootstrap != types.BootstrapDocker {
		t.Errorf("unexpected base image %+v", desc.Operations()[0])
	}
	want := []string{
		"apt-get update -y",
		"DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends git wget",
		"rm -rf /var/lib/apt/lists/*",
	}
	if diff := cmp.Diff(want, desc.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no from", "BootStrap: docker\n%post\n    true\n"},
		{"no bootstrap", "From: ubuntu:bionic\n"},
		{"bad header", "BootStrap docker\n"},
		{"bad environment", "BootStrap: docker\nFrom: x\n%environment\n    export NOVALUE\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (&DefinitionFrontend{}).Parse(tt.content); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRegistered(t *testing.T) {
	if _, err := frontends.GetFrontend(types.FormatSingularity); err != nil {
		t.Errorf("GetFrontend() error = %v", err)
	}
}
