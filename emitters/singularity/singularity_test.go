package singularity

import (
	"strings"
	"testing"

	"github.com/bibin-skaria/stackgen/emitters"
	"github.com/bibin-skaria/stackgen/internal/types"
)

func stageDescription() *types.Description {
	return types.NewDescription().Add(
		types.BaseImage("00_base_image.sif", types.BootstrapLocalImage),
		types.Environment(types.EnvVar{Name: "FORCE_UNSAFE_CONFIGURE", Value: "1"}),
		types.Shell("/opt/spack/bin/spack install -y -n gcc@9.1.0 target=x86_64"),
	)
}

func TestRender(t *testing.T) {
	e, err := NewEmitter("3.3")
	if err != nil {
		t.Fatal(err)
	}

	want := `BootStrap: localimage
From: 00_base_image.sif
%environment
    export FORCE_UNSAFE_CONFIGURE=1

%post
    export FORCE_UNSAFE_CONFIGURE=1

%post
    cd /
    /opt/spack/bin/spack install -y -n gcc@9.1.0 target=x86_64

`
	if got := e.Render(stageDescription()); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderOldVersionSkipsPostExports(t *testing.T) {
	e, err := NewEmitter("2.6")
	if err != nil {
		t.Fatal(err)
	}
	got := e.Render(stageDescription())
	if strings.Count(got, "export FORCE_UNSAFE_CONFIGURE=1") != 1 {
		t.Errorf("expected a single export for 2.6:\n%s", got)
	}
}

func TestRenderDockerBootstrap(t *testing.T) {
	e, _ := NewEmitter(types.DefaultSingularityVersion)
	desc := types.NewDescription().Add(
		types.BaseImage("ubuntu:bionic", types.BootstrapDocker),
		types.Packages("git"),
	)
	got := e.Render(desc)
	for _, want := range []string{
		"BootStrap: docker\nFrom: ubuntu:bionic\n",
		"%post\n    . /.singularity.d/env/10-docker*.sh\n",
		"    apt-get update -y\n",
		"--no-install-recommends \\\n        git\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q in\n%s", want, got)
		}
	}
}

func TestNewEmitterInvalidVersion(t *testing.T) {
	if _, err := NewEmitter("three"); err == nil {
		t.Error("expected an error for an invalid version")
	}
}

func TestRegistered(t *testing.T) {
	e, err := emitters.GetEmitter(types.FormatSingularity)
	if err != nil {
		t.Fatalf("GetEmitter() error = %v", err)
	}
	s, ok := e.(*SingularityEmitter)
	if !ok {
		t.Fatalf("GetEmitter() returned %T", e)
	}
	if s.Version() != "3.3.0" {
		t.Errorf("Version() = %q, want 3.3.0", s.Version())
	}
}
