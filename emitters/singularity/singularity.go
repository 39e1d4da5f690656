package singularity

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/bibin-skaria/stackgen/emitters"
	"github.com/bibin-skaria/stackgen/internal/types"
)

// Starting with 3.0 %environment is only sourced at runtime, so the build
// time %post sections need their own exports.
var postExportConstraint = mustConstraint(">= 3.0")

type SingularityEmitter struct {
	version *semver.Version
}

func init() {
	e, err := NewEmitter(types.DefaultSingularityVersion)
	if err != nil {
		panic(err)
	}
	emitters.RegisterEmitter(types.FormatSingularity, e)
}

// NewEmitter returns an emitter targeting the given Singularity release.
func NewEmitter(version string) (*SingularityEmitter, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid singularity version %q: %w", version, err)
	}
	return &SingularityEmitter{version: v}, nil
}

func (e *SingularityEmitter) Version() string {
	return e.version.String()
}

func (e *SingularityEmitter) Render(desc *types.Description) string {
	var b strings.Builder
	for _, op := range desc.Operations() {
		switch op.Type {
		case types.OperationTypeBaseImage:
			e.renderHeader(&b, op)
		case types.OperationTypePackages:
			renderSection(&b, "%post", emitters.AptInstall(op.Packages))
		case types.OperationTypeShell:
			renderSection(&b, "%post", append([]string{"cd /"}, op.Commands...))
		case types.OperationTypeEnvironment:
			exports := make([]string, len(op.Environment))
			for i, v := range op.Environment {
				exports[i] = fmt.Sprintf("export %s=%s", v.Name, v.Value)
			}
			renderSection(&b, "%environment", exports)
			if postExportConstraint.Check(e.version) {
				renderSection(&b, "%post", exports)
			}
		}
	}
	return b.String()
}

func (e *SingularityEmitter) renderHeader(b *strings.Builder, op *types.Operation) {
	bootstrap := op.Bootstrap
	if bootstrap == "" {
		bootstrap = types.BootstrapDocker
	}
	fmt.Fprintf(b, "BootStrap: %s\nFrom: %s\n", bootstrap, op.Image)
	if bootstrap == types.BootstrapDocker {
		// import the ENV of the docker image
		renderSection(b, "%post", []string{". /.singularity.d/env/10-docker*.sh"})
	}
}

func renderSection(b *strings.Builder, section string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(section)
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
