// Command hubgen generates the Methods registration of the hub types in a go file.
//
//	//go:generate go run github.com/philippseith/wsmanager/cmd/hubgen --file chat.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/philippseith/wsmanager/internal/hubgen"
	"github.com/spf13/cobra"
)

func main() {
	var file, output string
	cmd := &cobra.Command{
		Use:   "hubgen",
		Short: "Generate wsmanager.MethodTable registrations for hubs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = strings.TrimSuffix(file, ".go") + "_methods.go"
			}
			result, err := hubgen.Generate(file, nil)
			if err != nil {
				return err
			}
			for _, skipped := range result.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", skipped)
			}
			if len(result.Hubs) == 0 {
				return fmt.Errorf("no hub with supported methods found in %v", file)
			}
			return result.File.Save(output)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", os.Getenv("GOFILE"), "go file containing the hub types")
	cmd.Flags().StringVarP(&output, "output", "o", "", "generated file (default <file>_methods.go)")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
