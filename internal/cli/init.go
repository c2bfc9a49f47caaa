package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/eyriegen/internal/sink"
)

const defaultConfigName = "eyriegen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample eyriegen configuration file",
		Long:  "Scaffold a commented eyriegen configuration file that documents the available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force})
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	fsys := sink.NewFilesystem(filepath.Dir(absPath))
	content := []byte(strings.TrimSpace(sampleConfigYAML) + "\n")
	if err := fsys.Write(ctx, filepath.Base(absPath), content, cfg.Force); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
		return newUsageError(fmt.Sprintf("init: cannot write %s: %v\nHint: choose a different --out or check directory permissions.", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key the config file accepts.
const sampleConfigYAML = `# eyriegen configuration (YAML or JSON)
# All fields are optional. Precedence: defaults < EYRIEGEN_* env < this file < flags.

# Path or URL to the Swagger/OpenAPI document (http/https or local file).
# input: ./openapi.yaml

# Project root; files are written under <out>/lib. Defaults to the current directory.
# out: .

# Print the planned writes without touching the filesystem.
# dryRun: false

# Overwrite service files instead of reconciling them with the document.
# force: false

# Load the document even when OpenAPI validation fails.
# skipValidation: false

# Maximum files emitted in parallel (0 means unbounded).
# concurrency: 0

# Log level (debug|info|warn|error) and format (console|json).
# logLevel: info
# logFormat: console

# Shorthand for logLevel: debug.
# verbose: false
`
