package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/smazurov/loopcam/internal/version"
	"github.com/spf13/cobra"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()

			if asJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(1)
				}
				fmt.Println(string(out))
				return
			}

			fmt.Printf("loopcam %s (commit %s, built %s)\n", info.Version, info.GitCommit, info.BuildDate)
			fmt.Printf("%s %s %s\n", info.GoVersion, info.Compiler, info.Platform)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version as JSON")

	return cmd
}
