package docker

import (
	"fmt"
	"strings"

	"github.com/bibin-skaria/stackgen/emitters"
	"github.com/bibin-skaria/stackgen/internal/types"
)

type DockerEmitter struct{}

func init() {
	emitters.RegisterEmitter(types.FormatDocker, &DockerEmitter{})
}

// Render writes one Dockerfile instruction per operation, separated by blank lines.
func (e *DockerEmitter) Render(desc *types.Description) string {
	var sections []string
	for _, op := range desc.Operations() {
		if s := e.renderOperation(op); s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n") + "\n"
}

func (e *DockerEmitter) renderOperation(op *types.Operation) string {
	switch op.Type {
	case types.OperationTypeBaseImage:
		return "FROM " + op.Image
	case types.OperationTypePackages:
		return renderRun(emitters.AptInstall(op.Packages))
	case types.OperationTypeShell:
		return renderRun(op.Commands)
	case types.OperationTypeEnvironment:
		return renderEnv(op.Environment)
	}
	return ""
}

func renderRun(commands []string) string {
	if len(commands) == 0 {
		return ""
	}
	return "RUN " + strings.Join(commands, " && \\\n    ")
}

func renderEnv(vars []types.EnvVar) string {
	if len(vars) == 0 {
		return ""
	}
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s=%s", v.Name, v.Value)
	}
	return "ENV " + strings.Join(parts, " \\\n    ")
}
