package cmd

import (
	"adaptive_quiz/internal/app"
	"adaptive_quiz/internal/config"
	"adaptive_quiz/pkg/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adaptive-quiz",
	Short: "Adaptive multiple-choice quiz server",
	Long: `adaptive-quiz serves an HTTP API where learners take quizzes whose
difficulty follows their answers, and administrators manage the question bank.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs", "Directory containing config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig reads the configuration and initializes the logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	logger.InitLogger(cfg)
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewApp(cfg)
}
