package main

import (
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simulator",
		Short: "Development tool for court rotation schedules",
		Long: heredoc.Doc(`
			simulator builds court rotation schedules without the web UI.

			"generate" runs the scheduler locally against a roster file or a
			synthetic roster. "full" drives a running server through the
			HTTP API.
		`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Flag("trace").Changed {
				log.SetLevel(log.TraceLevel)
			} else if cmd.Flag("verbose").Changed {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}

	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	// global flags
	root.PersistentFlags().String("api", apiURL, "Backend base URL (env API_URL)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Show debug logging")
	root.PersistentFlags().BoolP("trace", "t", false, "Show trace logging")

	root.AddCommand(generateCmd())
	root.AddCommand(fullCmd())

	return root
}
