package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bibin-skaria/stackgen/alpaka"
	"github.com/bibin-skaria/stackgen/config"
	"github.com/bibin-skaria/stackgen/emitters"
	_ "github.com/bibin-skaria/stackgen/emitters/docker"
	_ "github.com/bibin-skaria/stackgen/emitters/singularity"
	"github.com/bibin-skaria/stackgen/engine"
	_ "github.com/bibin-skaria/stackgen/frontends/dockerfile"
	_ "github.com/bibin-skaria/stackgen/frontends/singularity"
	"github.com/bibin-skaria/stackgen/internal/errors"
	"github.com/bibin-skaria/stackgen/internal/logging"
	"github.com/bibin-skaria/stackgen/internal/types"
	"github.com/bibin-skaria/stackgen/layers"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	logLevel string
	logJSON  bool
	logger   *logrus.Logger
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "stackgen",
		Short: "Generate chains of staged container recipes",
		Long: `stackgen writes a chain of Singularity definition files or Dockerfiles.
Every stage is built on top of the image of the stage before it, so a tool stack
can be rebuilt from the first stage that changed.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = logging.New(logging.Options{
				Level:  opts.logLevel,
				JSON:   opts.logJSON,
				Output: cmd.ErrOrStderr(),
			})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (default: $LOG_LEVEL or info)")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Log as JSON")

	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newAlpakaCommand(opts))
	cmd.AddCommand(newClingCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newImagesCommand())

	return cmd
}

func containerUsage() string {
	formats := make([]string, 0, len(types.SupportedFormats()))
	for _, f := range types.SupportedFormats() {
		formats = append(formats, f.String())
	}
	return fmt.Sprintf("Recipe format (%s)", strings.Join(formats, ", "))
}

func newGenerateCommand(opts *globalOptions) *cobra.Command {
	var (
		container   string
		image       string
		configPath  string
		outputDir   string
		buildScript string
		archive     string
		noFinal     bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the recipe chain of a tool stack",
		Long: `Write one recipe per stage into the output directory. Without --config the
built-in CI stack (cmake, gcc, llvm, cuda, boost) is generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Component(opts.logger, "generate")

			var cfg *types.GeneratorConfig
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return report(log, err)
				}
				cfg = loaded
			} else {
				format, err := types.ParseContainerFormat(container)
				if err != nil {
					return report(log, errors.NewConfigurationError("invalid --container", err))
				}
				cfg = config.Default(format, image)
			}

			flags := cmd.Flags()
			if flags.Changed("container") && configPath != "" {
				format, err := types.ParseContainerFormat(container)
				if err != nil {
					return report(log, errors.NewConfigurationError("invalid --container", err))
				}
				cfg.Format = format
			}
			if flags.Changed("image") && configPath != "" {
				cfg.Image = image
			}
			if flags.Changed("output") || configPath == "" {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("build-script") || configPath == "" {
				cfg.BuildScript = buildScript
			}
			if flags.Changed("archive") || configPath == "" {
				cfg.Archive = archive
			}
			if noFinal {
				cfg.FinalStage = false
			}

			gen, err := engine.NewGenerator(cfg, log)
			if err != nil {
				return report(log, err)
			}
			gen.SetProgressOutput(cmd.OutOrStdout())

			result, err := gen.Generate()
			if err != nil {
				return report(log, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Output: %s\n", result.OutputDir)
			fmt.Fprintf(out, "Stages: %s\n", strings.Join(result.Stages, " -> "))
			if result.FinalStage != "" {
				fmt.Fprintf(out, "Final stage: %s\n", result.FinalStage)
			}
			fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(result.Bytes)))
			if result.Archive != "" {
				fmt.Fprintf(out, "Archive: %s\n", result.Archive)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&container, "container", types.FormatSingularity.String(), containerUsage())
	cmd.Flags().StringVarP(&image, "image", "i", layers.DefaultImage, "Base image key, see 'stackgen images'")
	cmd.Flags().StringVar(&configPath, "config", "", "Stack descriptor (yaml, json or toml)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", config.DefaultOutputDir, "Output directory")
	cmd.Flags().StringVar(&buildScript, "build-script", config.DefaultBuildScript, "Script linked into a new output directory")
	cmd.Flags().StringVar(&archive, "archive", "", "Also bundle the output directory into this .tar.zst file")
	cmd.Flags().BoolVar(&noFinal, "no-final", false, "Do not add the final cleanup stage")

	return cmd
}

func newAlpakaCommand(opts *globalOptions) *cobra.Command {
	var (
		container     string
		image         string
		compilers     []string
		installAlpaka bool
	)

	cmd := &cobra.Command{
		Use:   "alpaka",
		Short: "Print a single stage recipe with the alpaka dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Component(opts.logger, "alpaka")

			format, err := types.ParseContainerFormat(container)
			if err != nil {
				return report(log, errors.NewConfigurationError("invalid --container", err))
			}
			emitter, err := emitters.GetEmitter(format)
			if err != nil {
				return report(log, err)
			}

			desc, err := alpaka.Recipe(alpaka.Options{
				Image:         image,
				Compilers:     compilers,
				InstallAlpaka: installAlpaka,
			})
			if err != nil {
				return report(log, err)
			}

			fmt.Fprint(cmd.OutOrStdout(), emitter.Render(desc))
			return nil
		},
	}

	cmd.Flags().StringVar(&container, "container", types.FormatSingularity.String(), containerUsage())
	cmd.Flags().StringVarP(&image, "image", "i", layers.DefaultImage, "Base image key, see 'stackgen images'")
	cmd.Flags().StringSliceVarP(&compilers, "compiler", "c", nil, "Extra compilers, e.g. -c gcc:8,clang:7.0,clang:8")
	cmd.Flags().BoolVar(&installAlpaka, "alpaka", false, "Install alpaka to /usr/local")

	return cmd
}

func newClingCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cling",
		Short: "Print a Singularity recipe of a xeus-cling image with alpaka Jupyter kernels",
		Long: `The base image is only published in the Singularity library, so the recipe
is always a Singularity definition file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Component(opts.logger, "cling")

			emitter, err := emitters.GetEmitter(types.FormatSingularity)
			if err != nil {
				return report(log, err)
			}
			desc, err := alpaka.ClingRecipe()
			if err != nil {
				return report(log, err)
			}

			fmt.Fprint(cmd.OutOrStdout(), emitter.Render(desc))
			return nil
		},
	}
}

func newInspectCommand(opts *globalOptions) *cobra.Command {
	var container string

	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Check the stage linkage of a generated directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Component(opts.logger, "inspect")

			format, err := types.ParseContainerFormat(container)
			if err != nil {
				return report(log, errors.NewConfigurationError("invalid --container", err))
			}

			rep, err := engine.Inspect(args[0], format)
			if err != nil {
				return report(log, err)
			}

			out := cmd.OutOrStdout()
			for _, s := range rep.Stages {
				marker := ""
				if s.Identifier == rep.FinalStage {
					marker = " (final)"
				}
				fmt.Fprintf(out, "%s%s\n  from: %s\n  commands: %d\n", s.Identifier, marker, s.BaseImage, s.Commands)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&container, "container", types.FormatSingularity.String(), containerUsage())

	return cmd
}

func newImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List the supported base images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, key := range layers.SupportedImages() {
				image, err := layers.LookupImage(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-12s %-36s %s\n", key, image.Image(), image.Distribution.Codename())
			}
			return nil
		},
	}
}

// report logs err with its suggestion and hands it back to cobra.
func report(log *logrus.Entry, err error) error {
	if buildErr, ok := err.(*errors.BuildError); ok {
		fields := logrus.Fields{
			"category": buildErr.Category,
			"code":     buildErr.Code,
		}
		if buildErr.Stage != "" {
			fields["stage"] = buildErr.Stage
		}
		log.WithFields(fields).Error(buildErr.GetUserFriendlyMessage())
		return err
	}
	log.Error(err)
	return err
}
