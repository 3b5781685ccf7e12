package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"maxpower/internal/config"
	"maxpower/internal/epoch"
	"maxpower/internal/report"
	"maxpower/internal/sim"
	"maxpower/internal/taskrt"
	"maxpower/internal/trace"
)

// faultTaskName runs between staging and the epoch.
const faultTaskName = "fault-injection"

// CLIResult is what a command reports back to main.
type CLIResult struct {
	ExitCode int
	RunID    string
	Outcome  *epoch.Outcome
}

// Execute runs one epoch on the simulated chip and writes the run artifacts.
//
// Responsibilities:
//   - Load and validate the configuration, folding in fault flags.
//   - Record run.json before the epoch and every artifact after it, pass or fail.
//   - Translate the outcome to a semantic exit code.
func Execute(ctx context.Context, inv RunInvocation, stdout io.Writer) (res CLIResult, err error) {
	res.ExitCode = ExitInternalError

	cfg, err := loadConfig(inv.ConfigPath)
	if err != nil {
		res.ExitCode = ExitCode(err)
		return res, err
	}
	cfg.Faults.Stuck = append(cfg.Faults.Stuck, inv.Stuck...)
	cfg.Faults.BusyBeforeEpoch = append(cfg.Faults.BusyBeforeEpoch, inv.Busy...)
	if err := cfg.Validate(); err != nil {
		res.ExitCode = ExitConfigError
		return res, configErrorf("invalid config: %v", err)
	}

	logger, err := newLogger(inv.LogLevel)
	if err != nil {
		res.ExitCode = ExitInvalidInvocation
		return res, invalidInvocationf("--log-level: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	rec := trace.NewRecorder()
	sink := eventSink(rec, logger)
	chip, err := sim.NewChip(sim.Options{Period: cfg.ClockPeriod, Latency: latencies(cfg), Sink: sink})
	if err != nil {
		return res, fmt.Errorf("build chip: %w", err)
	}
	board, err := epoch.NewBoard(chip, cfg)
	if err != nil {
		return res, fmt.Errorf("build board: %w", err)
	}
	golden := epoch.DefaultGolden()
	for _, id := range inv.Corrupt {
		golden.Expected[id][0] ^= 0x01
	}
	orch, err := epoch.New(board, cfg, epoch.Options{
		Logger: logger,
		Sink:   sink,
		Golden: &golden,
		Tasks:  faultTasks(chip, cfg.Faults),
	})
	if err != nil {
		return res, fmt.Errorf("build orchestrator: %w", err)
	}

	store, err := report.NewStore(inv.OutDir)
	if err != nil {
		return res, err
	}
	recorder := &report.Recorder{Store: store}
	runID := inv.RunID
	if runID == "" {
		if runID, err = recorder.NewRunID(); err != nil {
			return res, fmt.Errorf("new run id: %w", err)
		}
	}
	res.RunID = runID
	run, err := recorder.StartRun(runID, orch.PlanHash(), cfg.Cores)
	if errors.Is(err, report.ErrRunExists) {
		res.ExitCode = ExitInvalidInvocation
		return res, invalidInvocationf("--run-id %q: %v", runID, err)
	}
	if err != nil {
		return res, fmt.Errorf("start run: %w", err)
	}
	logger.Info("Run started", zap.String("runID", runID), zap.String("plan", orch.Plan().String()))

	out, runErr := orch.Run(ctx)
	res.Outcome = out
	run, err = recorder.FinishRun(run, out, runErr, rec.Trace(orch.PlanHash()))
	if err != nil {
		return res, fmt.Errorf("record run: %w", err)
	}
	printOutcome(stdout, run, out, store.RunDir(runID))

	if runErr != nil {
		if _, ok := epoch.AsFailure(runErr); ok {
			res.ExitCode = ExitEpochFailure
		}
		return res, runErr
	}
	res.ExitCode = ExitSuccess
	return res, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, configErrorf("%v", err)
	}
	return cfg, nil
}

func latencies(cfg config.Config) map[string]time.Duration {
	out := make(map[string]time.Duration, len(cfg.Subsystems))
	for id, t := range cfg.Subsystems {
		out[id] = t.Latency
	}
	return out
}

// faultTasks injects the configured faults once staging has joined, so that
// configuration and staging see healthy hardware.
func faultTasks(chip *sim.Chip, faults config.Faults) []taskrt.Task {
	if len(faults.Stuck) == 0 && len(faults.BusyBeforeEpoch) == 0 {
		return nil
	}
	return []taskrt.Task{{
		Name:     faultTaskName,
		Priority: epoch.PriorityStaging - 1,
		Fn: func(context.Context) error {
			for _, id := range faults.Stuck {
				if err := chip.InjectFault(id, sim.FaultStuck); err != nil {
					return err
				}
			}
			for _, id := range faults.BusyBeforeEpoch {
				if err := chip.InjectFault(id, sim.FaultBusy); err != nil {
					return err
				}
			}
			return nil
		},
	}}
}

func printOutcome(w io.Writer, run report.Run, out *epoch.Outcome, dir string) {
	if out == nil {
		return
	}
	status := "PASS"
	if !out.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s run=%s plan=%s\n", status, run.RunID, out.PlanHash)
	if out.Window != nil {
		fmt.Fprintf(w, "epoch: marker high %s, timed out: %t\n", out.Window.Duration(), out.Window.TimedOut)
	}
	for _, c := range out.Checks {
		mark := "ok"
		if !c.Passed {
			mark = "MISMATCH"
		}
		fmt.Fprintf(w, "  %-9s %s\n", c.Subsystem, mark)
	}
	if !out.Passed {
		fmt.Fprintf(w, "failed in %s", out.FailedPhase)
		if out.FailedSubsystem != "" {
			fmt.Fprintf(w, " (%s)", out.FailedSubsystem)
		}
		fmt.Fprintf(w, ": %s\n", out.Message)
	}
	fmt.Fprintf(w, "artifacts: %s\n", dir)
}
