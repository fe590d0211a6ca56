package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/multipage"
	"github.com/aretw0/multipage/internal/cli"
	"github.com/aretw0/multipage/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [graph]",
	Short: "Run the wizard in the terminal",
	Long: `Starts the wizard interactively. Each page is rendered, then every editable
element is prompted for; an empty answer keeps the current value.

With --session the run is saved after every step and resumed on the next run.
With --auto the wizard advances without prompting, using --set values.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		auto, _ := cmd.Flags().GetBool("auto")
		watch, _ := cmd.Flags().GetBool("watch")
		plain, _ := cmd.Flags().GetBool("plain")
		pairs, _ := cmd.Flags().GetStringArray("set")

		if watch && auto {
			return errors.New("--watch and --auto cannot be used together")
		}
		values, err := cli.ParseAssignments(pairs)
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		out := cmd.OutOrStdout()
		opts := cli.RunOptions{
			SessionID: sessionID,
			Values:    values,
			Auto:      auto,
			Lines:     cli.Lines(cmd.InOrStdin()),
			Out:       out,
			Host:      newRenderer(out, plain),
			Logger:    logger,
		}
		if sessionID != "" {
			backend, err := openBackend(cmd, flagOrEnv(cmd, "store", "store"))
			if err != nil {
				return err
			}
			defer backend.Close()
			opts.Store = backend.Store
		}

		if isTerminal(out) && !auto {
			tui.PrintBanner(out)
		}

		if watch {
			return cli.RunWatch(sigCtx, func(ctx context.Context) (*multipage.Engine, error) {
				return newEngine(cmd, args, logger)
			}, opts)
		}

		eng, err := newEngine(cmd, args, logger)
		if err != nil {
			return err
		}
		_, err = cli.RunSession(sigCtx, eng, opts)
		if sig := sigCtx.Signal(); sig != nil {
			logger.Info("run interrupted", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session id to save and resume")
	runCmd.Flags().String("store", "", "Session store: memory, file:<dir>, sqlite:<path> or redis://... (env MULTIPAGE_STORE)")
	runCmd.Flags().StringArray("set", nil, "Preset a value as key=value (repeatable)")
	runCmd.Flags().Bool("auto", false, "Advance without prompting")
	runCmd.Flags().BoolP("watch", "w", false, "Reload page definitions on change")
	runCmd.Flags().Bool("plain", false, "Print raw markdown instead of styled pages")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newRenderer styles pages on terminals and falls back to raw markdown
// for pipes and files.
func newRenderer(out io.Writer, plain bool) *tui.Renderer {
	if plain || !isTerminal(out) {
		return tui.NewRenderer(out, tui.WithPlainText())
	}
	if width, _, err := term.GetSize(int(out.(*os.File).Fd())); err == nil && width > 0 {
		return tui.NewRenderer(out, tui.WithWordWrap(min(width, 120)))
	}
	return tui.NewRenderer(out)
}
