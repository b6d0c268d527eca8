package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("campusbot %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Println()

		// Report key presence without printing the keys themselves.
		fmt.Println("Environment:")
		printKeyStatus("GEMINI_API_KEY")
		printKeyStatus("OPENAI_API_KEY")
		printKeyStatus("ELEVENLABS_API_KEY")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printKeyStatus(name string) {
	if os.Getenv(name) != "" {
		fmt.Printf("  %s: configured\n", name)
	} else {
		fmt.Printf("  %s: not set\n", name)
	}
}
