package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adclip/internal/deps"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Check external dependencies",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			missingRequired := 0
			for _, status := range deps.CheckBinaries(deps.Default()) {
				mark := "ok"
				if !status.Available {
					if status.Optional {
						mark = "missing (optional)"
					} else {
						mark = "missing"
						missingRequired++
					}
				}
				fmt.Fprintf(out, "%-10s %-20s %s\n", status.Name, mark, status.Description)
				if status.Detail != "" {
					fmt.Fprintf(out, "           %s\n", status.Detail)
				}
			}
			if missingRequired > 0 {
				return fmt.Errorf("%d required dependencies missing", missingRequired)
			}
			return nil
		},
	}
}
