package errors

import (
	"os"

	log "github.com/cloudposse/link-install/pkg/logger"
)

// OsExit is a variable for testing, so we can mock os.Exit.
var OsExit = os.Exit

// PrintError formats err and writes it to stderr.
func PrintError(err error, verbose bool) {
	if err == nil {
		return
	}
	config := DefaultFormatterConfig()
	config.Verbose = verbose
	if _, printErr := os.Stderr.WriteString(Format(err, config) + "\n"); printErr != nil {
		log.Error(printErr)
		log.Error(err)
	}
}

// Exit exits the program with the specified exit code.
func Exit(exitCode int) {
	OsExit(exitCode)
}
