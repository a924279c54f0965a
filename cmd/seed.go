package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Import questions from a JSON seed file",
	Long: `seed imports every question of a {"questions": [...]} file into the bank.
Without an argument the quiz.seed_file setting is used. The import is
all-or-nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		path := application.Config.Quiz.SeedFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no seed file given and quiz.seed_file is empty")
		}

		n, err := application.Seed(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions from %s\n", n, path)
		return nil
	},
}
