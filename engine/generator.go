package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bibin-skaria/stackgen/chain"
	"github.com/bibin-skaria/stackgen/config"
	"github.com/bibin-skaria/stackgen/emitters"
	"github.com/bibin-skaria/stackgen/exporters"
	"github.com/bibin-skaria/stackgen/internal/types"
	"github.com/bibin-skaria/stackgen/layers"
)

// Result describes a generated chain.
type Result struct {
	Stages     []string
	FinalStage string
	OutputDir  string
	Files      []string
	Bytes      int64
	Archive    string
	Duration   time.Duration
}

type Generator struct {
	config      *types.GeneratorConfig
	emitter     emitters.Emitter
	log         *logrus.Entry
	progressOut io.Writer
}

func NewGenerator(cfg *types.GeneratorConfig, log *logrus.Entry) (*Generator, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	emitter, err := emitters.GetEmitter(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to get emitter: %v", err)
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	return &Generator{
		config:  cfg,
		emitter: emitter,
		log:     log.WithField("component", "generator"),
	}, nil
}

func (g *Generator) SetProgressOutput(w io.Writer) {
	g.progressOut = w
}

func (g *Generator) progress(format string, args ...interface{}) {
	if g.progressOut != nil {
		fmt.Fprintf(g.progressOut, format+"\n", args...)
	}
}

// Build assembles the chain in memory without touching the filesystem.
func (g *Generator) Build() (*chain.Chain, error) {
	c := chain.New()
	builder := layers.NewBuilder(c, g.config.Format, g.log)

	if _, err := builder.BaseLayer(g.config.Image); err != nil {
		return nil, err
	}
	for _, pkg := range g.config.Packages {
		if _, err := builder.IncrementalLayer(pkg.StageName, pkg.PackageName, pkg.Versions); err != nil {
			return nil, err
		}
	}
	if g.config.FinalStage {
		if _, err := builder.FinalLayer(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Generate builds the chain, writes one recipe per stage and optionally
// archives the output directory. Nothing is written if the chain cannot be
// built.
func (g *Generator) Generate() (*Result, error) {
	start := time.Now()

	g.progress("Building %s chain from %s...", g.config.Format, g.config.Image)
	c, err := g.Build()
	if err != nil {
		return nil, err
	}

	entries := c.Entries()
	result := &Result{OutputDir: g.config.OutputDir}
	for _, e := range entries {
		result.Stages = append(result.Stages, e.Identifier)
	}

	if g.config.FinalStage {
		result.FinalStage, _ = c.LastIdentifier()
	}

	g.progress("Writing %d recipes to %s...", len(entries), g.config.OutputDir)
	written, err := exporters.WriteChain(entries, exporters.WriteOptions{
		OutputDir:      g.config.OutputDir,
		Format:         g.config.Format,
		Emitter:        g.emitter,
		BuildScript:    g.config.BuildScript,
		FinalStageName: result.FinalStage,
		Logger:         g.log,
	})
	if written != nil {
		result.Files = written.Files
		result.Bytes = written.BytesWritten
	}
	if err != nil {
		return result, err
	}

	if g.config.Archive != "" {
		g.progress("Archiving %s...", g.config.OutputDir)
		if err := exporters.Archive(g.config.OutputDir, g.config.Archive); err != nil {
			return result, err
		}
		result.Archive = g.config.Archive
	}

	result.Duration = time.Since(start)
	g.log.WithFields(logrus.Fields{
		"stages":   len(result.Stages),
		"final":    result.FinalStage,
		"duration": result.Duration,
	}).Info("chain generated")
	g.progress("Generated %d stages in %s", len(result.Stages), result.Duration)

	return result, nil
}
