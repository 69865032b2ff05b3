package support

import (
	"os/exec"
	"runtime"
)

// OpenBrowser launches the system browser at url. Best effort: callers print
// the URL as well, so a failure here is never fatal.
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
