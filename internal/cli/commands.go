package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"maxpower/internal/config"
	"maxpower/internal/epoch"
)

// NewRootCommand builds the maxpower command tree. onResult receives the
// result of `run` so callers can recover the exit code after cobra returns.
func NewRootCommand(stdout, stderr io.Writer, onResult func(CLIResult)) *cobra.Command {
	root := &cobra.Command{
		Use:           "maxpower",
		Short:         "Drive every subsystem of the chip at once and verify the results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	root.AddCommand(newRunCommand(stdout, onResult), newPlanCommand(stdout))
	return root
}

func newRunCommand(stdout io.Writer, onResult func(CLIResult)) *cobra.Command {
	var inv RunInvocation
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stage, trigger and verify one maximum power epoch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			canon, err := inv.canonicalize()
			if err != nil {
				return err
			}
			res, err := Execute(cmd.Context(), canon, stdout)
			if onResult != nil {
				onResult(res)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&inv.ConfigPath, "config", "", "YAML config overlaid on the built-in profile")
	f.StringVar(&inv.OutDir, "out", "", "directory that receives runs/<run-id>/")
	f.StringVar(&inv.RunID, "run-id", "", "run identifier (default: random)")
	f.StringVar(&inv.LogLevel, "log-level", "info", "debug, info, warn, error or off")
	f.StringSliceVar(&inv.Stuck, "stuck", nil, "subsystems that never complete")
	f.StringSliceVar(&inv.Busy, "busy", nil, "subsystems left busy before the epoch")
	f.StringSliceVar(&inv.Corrupt, "corrupt", nil, "subsystems whose expected result is altered")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newPlanCommand(stdout io.Writer) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the trigger order and marker position",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			plan, err := epoch.NewPlan(cfg.Subsystems)
			if err != nil {
				return configErrorf("%v", err)
			}
			return printPlan(stdout, plan, cfg)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "YAML config overlaid on the built-in profile")
	return cmd
}

func printPlan(w io.Writer, plan epoch.Plan, cfg config.Config) error {
	hash, err := plan.Hash()
	if err != nil {
		return err
	}
	for i, s := range plan.Steps {
		if i == plan.MarkerIndex {
			fmt.Fprintf(w, "   -  marker high (pin %d)\n", cfg.MarkerPin)
		}
		fmt.Fprintf(w, "%4d  %-9s latency=%s onset=%s\n", i, s.Subsystem, s.Latency, s.Onset)
	}
	if target := plan.PollTarget(); target != "" {
		fmt.Fprintf(w, "poll: %s\n", target)
	}
	fmt.Fprintf(w, "plan: %s\n", hash)
	return nil
}
