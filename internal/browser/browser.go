// Package browser opens pull request URLs in the system browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// execCommand holds the command executor. Overridden in tests to avoid
// actually opening browsers.
var execCommand = func(name string, args ...string) cmdRunner {
	return exec.Command(name, args...)
}

// cmdRunner is an interface for command execution.
type cmdRunner interface {
	Start() error
}

// Open opens the specified URL in the default browser. Only http(s) URLs are
// accepted; everything the watcher hands over comes from the GitHub API, but
// a PR fetched before the API populated html_url would otherwise run an
// empty command.
func Open(url string) error {
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return fmt.Errorf("refusing to open non-http URL: %q", url)
	}

	var name string

	var args []string

	switch runtime.GOOS {
	case "darwin":
		name = "open"
		args = []string{url}
	case "windows":
		name = "cmd"
		args = []string{"/c", "start", url}
	default:
		name = "xdg-open"
		args = []string{url}
	}

	cmd := execCommand(name, args...)

	return cmd.Start()
}
