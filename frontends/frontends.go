package frontends

import (
	"fmt"
	"sort"

	"github.com/bibin-skaria/stackgen/internal/types"
)

// Frontend reads a rendered recipe back into a stage description. Package
// installs come back as plain shell commands.
type Frontend interface {
	Parse(content string) (*types.Description, error)
}

var frontends = make(map[types.ContainerFormat]Frontend)

func RegisterFrontend(format types.ContainerFormat, frontend Frontend) {
	frontends[format] = frontend
}

func GetFrontend(format types.ContainerFormat) (Frontend, error) {
	frontend, exists := frontends[format]
	if !exists {
		return nil, fmt.Errorf("frontend %s not found", format)
	}
	return frontend, nil
}

func ListFrontends() []string {
	names := make([]string, 0, len(frontends))
	for format := range frontends {
		names = append(names, string(format))
	}
	sort.Strings(names)
	return names
}
