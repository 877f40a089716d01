package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nebulium/authcore/config"
	"github.com/nebulium/authcore/data"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/logging/logger"
)

// NewSweepCommand deletes expired sessions, SMS codes, and verification
// tokens. Run it from cron; the request path never depends on it.
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions, SMS codes, and verification tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(file)
			if err != nil {
				return err
			}

			cleanup, err := logger.New(cfg.Logger)
			if err != nil {
				return err
			}
			defer cleanup()
			log := logger.StdLogger()

			d, err := data.New(cfg.Data, log)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			ctx, cancel := d.WithTimeout(cmd.Context())
			defer cancel()

			repos, err := repository.NewSQL(ctx, d.DB())
			if err != nil {
				return err
			}

			now := time.Now()
			sessions, err := repos.Sessions.DeleteExpired(ctx, now)
			if err != nil {
				return err
			}
			smsCodes, err := repos.SmsCodes.DeleteExpired(ctx, now)
			if err != nil {
				return err
			}
			tokens, err := repos.VerificationTokens.DeleteExpired(ctx, now)
			if err != nil {
				return err
			}

			log.Info(ctx, "sweep completed",
				"sessions", sessions,
				"sms_codes", smsCodes,
				"verification_tokens", tokens,
			)
			return nil
		},
	}
}
