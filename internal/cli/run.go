package cli

import (
	"context"
	"fmt"
	"io"
)

// Run parses args and executes the selected command. The returned result
// always carries the exit code the process should use.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (CLIResult, error) {
	var (
		res     CLIResult
		started bool
	)
	root := NewRootCommand(stdout, stderr, func(r CLIResult) {
		res = r
		started = true
	})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !started {
			res.ExitCode = ExitCode(err)
			if res.ExitCode == ExitInternalError {
				// cobra reports unknown commands and missing flags as plain errors.
				res.ExitCode = ExitInvalidInvocation
			}
		}
		fmt.Fprintf(stderr, "maxpower: %v\n", err)
		return res, err
	}
	res.ExitCode = ExitSuccess
	return res, nil
}
