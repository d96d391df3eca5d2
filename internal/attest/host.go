package attest

import (
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/term"
)

// automationEnv lists environment variables set by common browser
// automation drivers.
var automationEnv = []string{
	"SELENIUM_REMOTE_URL",
	"PLAYWRIGHT_BROWSERS_PATH",
	"PUPPETEER_EXECUTABLE_PATH",
	"CHROME_HEADLESS",
}

// LookupEnv is the environment reader used by HostDescriptor. Override for testing.
var LookupEnv = os.LookupEnv

// TerminalSize reports the terminal geometry. Override for testing.
var TerminalSize = func() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// HostDescriptor describes the local process: CPU count, local timezone,
// terminal geometry as the screen, and automation driver markers. Without a
// terminal the geometry is marked unknown rather than reported as zero.
func HostDescriptor(userAgent string) Descriptor {
	d := Descriptor{
		UserAgent:  userAgent,
		Cores:      runtime.NumCPU(),
		Timezone:   time.Local.String(),
		ColorDepth: colorDepth(),
	}

	if w, h, err := TerminalSize(); err == nil {
		d.ScreenWidth, d.ScreenHeight = w, h
	} else {
		d.GeometryUnknown = true
	}

	if v, ok := LookupEnv("WEBDRIVER"); ok && v != "" && v != "0" && !strings.EqualFold(v, "false") {
		d.Webdriver = true
	}
	for _, name := range automationEnv {
		if v, ok := LookupEnv(name); ok && v != "" {
			d.AutomationMarkers = append(d.AutomationMarkers, name)
		}
	}
	return d
}

func colorDepth() int {
	if ct, _ := LookupEnv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
		return 24
	}
	t, _ := LookupEnv("TERM")
	switch {
	case strings.Contains(t, "256color"):
		return 8
	case t == "" || t == "dumb":
		return 0
	default:
		return 4
	}
}
