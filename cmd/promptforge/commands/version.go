package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/internal/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show PromptForge version information",
	Long:  `Display version, build time, commit hash, and platform information for the promptforge binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		shortOutput, _ := cmd.Flags().GetBool("short")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := version.Get()

		switch {
		case shortOutput:
			fmt.Println(info.Short())
		case jsonOutput:
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Println(string(output))
		default:
			fmt.Println(info.String())
			fmt.Printf("Platform: %s\n", info.Platform)
			fmt.Printf("Go: %s\n", info.GoVersion)
		}
	},
}

func init() {
	VersionCmd.Flags().BoolP("short", "s", false, "Print only the short commit hash")
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
