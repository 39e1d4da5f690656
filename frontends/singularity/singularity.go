package singularity

import (
	"fmt"
	"strings"

	"github.com/bibin-skaria/stackgen/frontends"
	"github.com/bibin-skaria/stackgen/internal/types"
)

type DefinitionFrontend struct{}

func init() {
	frontends.RegisterFrontend(types.FormatSingularity, &DefinitionFrontend{})
}

// Parse reads the header and the %post and %environment sections of a
// definition file. Other sections are skipped.
func (d *DefinitionFrontend) Parse(content string) (*types.Description, error) {
	var (
		bootstrap types.Bootstrap
		from      string
		section   string
		body      []string
		ops       []*types.Operation
	)

	flush := func() error {
		defer func() { body = nil }()
		switch section {
		case "%post":
			if cmds := postCommands(body); len(cmds) > 0 {
				ops = append(ops, types.Shell(cmds...))
			}
		case "%environment":
			vars, err := exports(body)
			if err != nil {
				return err
			}
			if len(vars) > 0 {
				ops = append(ops, types.Environment(vars...))
			}
		}
		return nil
	}

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "%") {
			if err := flush(); err != nil {
				return nil, err
			}
			section = strings.Fields(trimmed)[0]
			continue
		}

		if section == "" {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			key, value, ok := strings.Cut(trimmed, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: invalid header %q", i+1, trimmed)
			}
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "bootstrap":
				bootstrap = types.Bootstrap(strings.TrimSpace(value))
			case "from":
				from = strings.TrimSpace(value)
			}
			continue
		}

		body = append(body, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if from == "" {
		return nil, fmt.Errorf("definition file has no From header")
	}
	if bootstrap == "" {
		return nil, fmt.Errorf("definition file has no BootStrap header")
	}

	return types.NewDescription().
		Add(types.BaseImage(from, bootstrap)).
		Add(ops...), nil
}

// postCommands joins continuation lines and drops the boilerplate that the
// emitter adds to every %post section.
func postCommands(lines []string) []string {
	var commands []string
	var current string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && current == "" {
			continue
		}
		if strings.HasSuffix(trimmed, "\\") {
			current += strings.TrimSpace(trimmed[:len(trimmed)-1]) + " "
			continue
		}
		cmd := strings.TrimSpace(current + trimmed)
		current = ""
		if cmd == "" || cmd == "cd /" || strings.HasPrefix(cmd, ". /.singularity.d/env/") || strings.HasPrefix(cmd, "export ") {
			continue
		}
		commands = append(commands, cmd)
	}
	return commands
}

func exports(lines []string) ([]types.EnvVar, error) {
	var vars []types.EnvVar
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(trimmed, "export "), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment line %q", trimmed)
		}
		vars = append(vars, types.EnvVar{Name: strings.TrimSpace(key), Value: value})
	}
	return vars, nil
}
