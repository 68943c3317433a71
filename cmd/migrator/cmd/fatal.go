package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Exit codes
const (
	exitOK            = 0
	exitConfiguration = 1
	exitPartial       = 2
)

var (
	// globals used to patch over calls to os.Exit() during test
	osExit = os.Exit

	// infoLogger wraps informative messages to os.Stdout without cluttering expected output in tests.
	// To be used instead on fmt.Printf(os.Stdout, ...)
	infoLogger = log.New(os.Stdout, "", 0)
	logStdOut  = fmt.Printf

	stderr io.Writer = os.Stderr
)

// failWithCodef reports a diagnostic on stderr and returns the exit code to use
func failWithCodef(code int, format string, args ...interface{}) int {
	_, _ = fmt.Fprintf(stderr, format+"\n", args...)
	return code
}
