package emitters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bibin-skaria/stackgen/internal/types"
)

// Emitter renders a stage description in the syntax of one container format.
type Emitter interface {
	Render(desc *types.Description) string
}

var emitters = make(map[types.ContainerFormat]Emitter)

func RegisterEmitter(format types.ContainerFormat, emitter Emitter) {
	emitters[format] = emitter
}

func GetEmitter(format types.ContainerFormat) (Emitter, error) {
	emitter, exists := emitters[format]
	if !exists {
		return nil, fmt.Errorf("emitter %s not found", format)
	}
	return emitter, nil
}

func ListEmitters() []string {
	names := make([]string, 0, len(emitters))
	for format := range emitters {
		names = append(names, string(format))
	}
	sort.Strings(names)
	return names
}

// AptInstall returns the shell commands installing pkgs non-interactively,
// one package per continuation line.
func AptInstall(pkgs []string) []string {
	if len(pkgs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends")
	for _, p := range pkgs {
		b.WriteString(" \\\n        ")
		b.WriteString(p)
	}
	return []string{
		"apt-get update -y",
		b.String(),
		"rm -rf /var/lib/apt/lists/*",
	}
}
