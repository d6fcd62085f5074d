package main

import (
	"github.com/cloudposse/link-install/cmd"
	errUtils "github.com/cloudposse/link-install/errors"
	log "github.com/cloudposse/link-install/pkg/logger"
)

func main() {
	// Disable timestamp in logs so output is stable.
	log.Default().SetReportTimestamp(false)

	// Use errUtils.OsExit to allow test interception (Go 1.25+ panics on os.Exit in tests).
	errUtils.OsExit(run())
}

// run executes the main application logic and returns an exit code.
// This separation allows proper cleanup via defer before os.Exit in main().
func run() int {
	// Ensure cleanup happens on normal exit.
	defer cmd.Cleanup()

	err := cmd.Execute()
	if err != nil {
		// Format and print error using centralized formatter.
		errUtils.PrintError(err, cmd.Verbose())

		// Extract and use the correct exit code.
		exitCode := errUtils.GetExitCode(err)
		log.Debug("Exiting with exit code", "code", exitCode)
		return exitCode
	}

	return 0
}
