package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Bootstrap(cmd.Context()); err != nil {
		return err
	}
	return application.Run()
}
