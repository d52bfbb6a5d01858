package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/tavern-relay/internal/config"
	"github.com/zhouzirui/tavern-relay/internal/logging"
)

type app struct {
	cfg *config.Config
}

func main() {
	cobra.CheckErr(newRootCommand().Execute())
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "relay",
		Short:         "Telegram to LLM chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envErr := godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log)
			reportEnvFile(envErr)

			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(newServeCommand(a), newWebhookCommand(a))
	return root
}

func reportEnvFile(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}
}
