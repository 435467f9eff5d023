package infrastructure

import "github.com/alessio/shellescape"

// CommandLine renders an extractor invocation as a copy-pasteable shell line.
// It is for logs only; commands are never run through a shell.
func CommandLine(binary string, args ...string) string {
	return shellescape.QuoteCommand(append([]string{binary}, args...))
}
