// Package attest inspects host-provided environment descriptors for signs
// of automation. Detection is a pure read of local descriptors: it has no
// failure mode and never removes flags.
package attest

import (
	"fmt"
	"strings"

	"github.com/ppiankov/authguard/internal/telemetry"
)

// Flag tokens reported to the decision service in bot_flags.
const (
	FlagAutomationTool  = "AUTOMATION_TOOL_DETECTED"
	FlagInvalidScreen   = "INVALID_SCREEN_DIMENSIONS"
	FlagWebdriver       = "WEBDRIVER_DETECTED"
	FlagHeadlessBrowser = "HEADLESS_BROWSER_DETECTED"
)

// Descriptor is what the host knows about its own environment.
type Descriptor struct {
	UserAgent         string   `yaml:"user_agent" json:"user_agent"`
	ScreenWidth       int      `yaml:"screen_width" json:"screen_width"`
	ScreenHeight      int      `yaml:"screen_height" json:"screen_height"`
	ColorDepth        int      `yaml:"color_depth" json:"color_depth"`
	Cores             int      `yaml:"cores" json:"cores"`
	Timezone          string   `yaml:"timezone" json:"timezone"`
	Webdriver         bool     `yaml:"webdriver" json:"webdriver"`
	AutomationMarkers []string `yaml:"automation_markers" json:"automation_markers"`
	// GeometryUnknown means the host could not measure its screen. The
	// dimensions are then not checked.
	GeometryUnknown   bool     `yaml:"geometry_unknown" json:"geometry_unknown,omitempty"`
}

// FlagSink receives detected flags.
type FlagSink interface {
	AddFlag(flag string)
}

// Detect returns one flag per anomaly in d, in a fixed order.
func Detect(d Descriptor) []string {
	var flags []string
	if len(d.AutomationMarkers) > 0 {
		flags = append(flags, FlagAutomationTool)
	}
	if !d.GeometryUnknown && (d.ScreenWidth <= 0 || d.ScreenHeight <= 0) {
		flags = append(flags, FlagInvalidScreen)
	}
	if d.Webdriver {
		flags = append(flags, FlagWebdriver)
	}
	if strings.Contains(strings.ToLower(d.UserAgent), "headless") {
		flags = append(flags, FlagHeadlessBrowser)
	}
	return flags
}

// Run detects flags for d and feeds them into sink. Returns the flags.
func Run(d Descriptor, sink FlagSink) []string {
	flags := Detect(d)
	if sink != nil {
		for _, f := range flags {
			sink.AddFlag(f)
		}
	}
	return flags
}

// Fingerprint builds the device descriptor bundle sent with the first payload.
func Fingerprint(d Descriptor) *telemetry.Fingerprint {
	return &telemetry.Fingerprint{
		UserAgent:  d.UserAgent,
		ScreenRes:  fmt.Sprintf("%dx%d", d.ScreenWidth, d.ScreenHeight),
		ColorDepth: d.ColorDepth,
		Cores:      d.Cores,
		Timezone:   d.Timezone,
	}
}
