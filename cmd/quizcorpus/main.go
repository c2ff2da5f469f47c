// Command quizcorpus serves the personalized lesson corpus: retrieval,
// learner feedback, corrections and the moderation queue.
package main

// @title           Quiz Corpus API
// @version         1.0
// @description     Versioned lesson corpus with semantic retrieval, feedback-driven corrections and human moderation.

// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quizcorpus",
		Short: "Personalized lesson corpus service",
		Long: `quizcorpus keeps a versioned corpus of lessons indexed by concept,
difficulty and age band. It answers semantic retrieval queries, turns
learner feedback into rewritten lessons, and routes doubtful content to
human reviewers.

Configuration is read from config.yaml (see --config), a .env file and
the environment. RUN_MODE selects api, worker or all when no command
is given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := os.Getenv("RUN_MODE")
			if mode == "" {
				mode = modeAll
			}
			return runMode(cmd, mode)
		},
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-format", "", "Override the log format (json or text)")

	rootCmd.AddCommand(
		newModeCmd(modeAPI, "Run the HTTP API only"),
		newModeCmd(modeWorker, "Run the correction worker only"),
		newModeCmd(modeAll, "Run the HTTP API and the correction worker"),
		newSeedCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
