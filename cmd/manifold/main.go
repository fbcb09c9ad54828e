// Command manifold inspects parameter archives and run configurations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/manifold-ml/manifold/internal/config"
	"github.com/manifold-ml/manifold/internal/weights"
)

const version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "manifold",
		Short:         "Normalization layer toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("manifold %s\n", version)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(newVersionCmd(), newInspectCmd(), newCheckCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("manifold %s\n", version)
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect ARCHIVE",
		Short: "List the tensors stored in a parameter archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := weights.Open(args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"NAME", "SHAPE", "ELEMENTS"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			for _, name := range archive.Names() {
				t, err := archive.Tensor(name)
				if err != nil {
					return err
				}
				table.Append([]string{
					name,
					fmt.Sprintf("%v", t.Shape()),
					fmt.Sprintf("%d", t.NumElements()),
				})
			}
			table.Render()

			if meta := archive.Checkpoint(); meta != nil {
				fmt.Printf("\nCheckpoint: epoch %d, step %d, loss %.6f\n", meta.Epoch, meta.Step, meta.Loss)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check CONFIG",
		Short: "Validate a run configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d epochs, batch size %d, %d cached batches)\n",
				args[0], c.Training.NumEpochs, c.Training.BatchSize, c.Data.NumCached)
			return nil
		},
	}
}
