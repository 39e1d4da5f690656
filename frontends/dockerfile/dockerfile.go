package dockerfile

import (
	"fmt"
	"strings"

	"github.com/bibin-skaria/stackgen/frontends"
	"github.com/bibin-skaria/stackgen/internal/types"
)

type DockerfileFrontend struct{}

func init() {
	frontends.RegisterFrontend(types.FormatDocker, &DockerfileFrontend{})
}

func (d *DockerfileFrontend) Parse(content string) (*types.Description, error) {
	instructions, err := ParseInstructions(content)
	if err != nil {
		return nil, err
	}

	desc := types.NewDescription()
	for _, instruction := range instructions {
		op, err := processInstruction(instruction)
		if err != nil {
			return nil, fmt.Errorf("error processing instruction at line %d: %v", instruction.Line, err)
		}
		if desc.Len() == 0 && op.Type != types.OperationTypeBaseImage {
			return nil, fmt.Errorf("line %d: %s before FROM", instruction.Line, instruction.Command)
		}
		desc.Add(op)
	}

	if desc.Len() == 0 {
		return nil, fmt.Errorf("no FROM instruction found")
	}
	return desc, nil
}

// ParseInstructions splits a Dockerfile into instructions, joining continuation lines.
func ParseInstructions(content string) ([]*types.DockerfileInstruction, error) {
	var instructions []*types.DockerfileInstruction
	var currentInstruction *types.DockerfileInstruction

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			body := strings.TrimSpace(line[:len(line)-1])
			if currentInstruction == nil {
				parts := strings.SplitN(body, " ", 2)
				if len(parts) < 2 {
					return nil, fmt.Errorf("line %d: instruction %q has no arguments", i+1, parts[0])
				}
				currentInstruction = &types.DockerfileInstruction{
					Command: strings.ToUpper(parts[0]),
					Value:   strings.TrimSpace(parts[1]),
					Line:    i + 1,
					Lines:   []string{strings.TrimSpace(parts[1])},
				}
			} else {
				currentInstruction.Value += " " + body
				currentInstruction.Lines = append(currentInstruction.Lines, body)
			}
			continue
		}

		if currentInstruction != nil {
			currentInstruction.Value += " " + line
			currentInstruction.Lines = append(currentInstruction.Lines, line)
			instructions = append(instructions, currentInstruction)
			currentInstruction = nil
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: instruction %q has no arguments", i+1, parts[0])
		}

		instructions = append(instructions, &types.DockerfileInstruction{
			Command: strings.ToUpper(parts[0]),
			Value:   strings.TrimSpace(parts[1]),
			Line:    i + 1,
			Lines:   []string{strings.TrimSpace(parts[1])},
		})
	}

	if currentInstruction != nil {
		return nil, fmt.Errorf("line %d: unterminated continuation", currentInstruction.Line)
	}

	return instructions, nil
}

func processInstruction(instruction *types.DockerfileInstruction) (*types.Operation, error) {
	switch instruction.Command {
	case "FROM":
		return processFrom(instruction)
	case "RUN":
		return processRun(instruction), nil
	case "ENV":
		return processEnv(instruction)
	default:
		return nil, fmt.Errorf("unsupported instruction: %s", instruction.Command)
	}
}

func processFrom(instruction *types.DockerfileInstruction) (*types.Operation, error) {
	parts := strings.Fields(instruction.Value)
	if len(parts) == 0 {
		return nil, fmt.Errorf("FROM instruction requires an image")
	}
	return types.BaseImage(parts[0], types.BootstrapDocker), nil
}

// processRun splits a RUN instruction into commands at lines ending with
// "&&". An "&&" inside a line belongs to the command on that line.
func processRun(instruction *types.DockerfileInstruction) *types.Operation {
	lines := instruction.Lines
	if len(lines) == 0 {
		lines = []string{instruction.Value}
	}

	var commands []string
	var current []string
	flush := func() {
		if c := strings.Join(strings.Fields(strings.Join(current, " ")), " "); c != "" {
			commands = append(commands, c)
		}
		current = nil
	}
	for _, line := range lines {
		if body, ok := strings.CutSuffix(strings.TrimSpace(line), "&&"); ok {
			current = append(current, body)
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return types.Shell(commands...)
}

func processEnv(instruction *types.DockerfileInstruction) (*types.Operation, error) {
	parts := strings.Fields(instruction.Value)

	// legacy form: ENV KEY value
	if len(parts) >= 2 && !strings.Contains(parts[0], "=") {
		return types.Environment(types.EnvVar{Name: parts[0], Value: strings.Join(parts[1:], " ")}), nil
	}

	vars := make([]types.EnvVar, 0, len(parts))
	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid ENV assignment %q", part)
		}
		vars = append(vars, types.EnvVar{Name: key, Value: value})
	}
	return types.Environment(vars...), nil
}
