package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/authguard/internal/attest"
	"github.com/ppiankov/authguard/internal/config"
)

var attestJSON bool

func init() {
	attestCmd.Flags().BoolVar(&attestJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(attestCmd)
}

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Show the environment descriptor and automation flags",
	Long: "Runs the same environment checks the agent runs at session start and\n" +
		"prints the descriptor and any flags that would be sent with telemetry.",
	RunE: runAttest,
}

type attestReport struct {
	Descriptor attest.Descriptor `json:"descriptor"`
	Flags      []string          `json:"flags"`
}

func runAttest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	desc := attest.HostDescriptor(cfg.UserAgent)
	if cfg.Environment != nil {
		desc = *cfg.Environment
	}
	report := attestReport{Descriptor: desc, Flags: attest.Detect(desc)}
	if report.Flags == nil {
		report.Flags = []string{}
	}

	out := cmd.OutOrStdout()
	if attestJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "User agent:  %s\n", desc.UserAgent)
	if desc.GeometryUnknown {
		fmt.Fprintf(out, "Screen:      unknown (%d-bit)\n", desc.ColorDepth)
	} else {
		fmt.Fprintf(out, "Screen:      %dx%d (%d-bit)\n", desc.ScreenWidth, desc.ScreenHeight, desc.ColorDepth)
	}
	fmt.Fprintf(out, "Cores:       %d\n", desc.Cores)
	fmt.Fprintf(out, "Timezone:    %s\n", desc.Timezone)
	if len(report.Flags) == 0 {
		fmt.Fprintln(out, "Flags:       none")
		return nil
	}
	fmt.Fprintln(out, "Flags:")
	for _, f := range report.Flags {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
