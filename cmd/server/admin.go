package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/RichardoC/blinky/internal/config"
	"github.com/RichardoC/blinky/internal/db"
	"github.com/RichardoC/blinky/internal/personality"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// withDatabase runs fn against the configured database without starting
// the model client.
func withDatabase(v *viper.Viper, cmd *cobra.Command, fn func(*config.Config, *zap.Logger, *db.Database) error) (err error) {
	cfg, err := loadConfig(v, cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database %s: %w", cfg.DB.Path, err)
	}
	defer func() { err = multierr.Append(err, database.Close()) }()
	return fn(cfg, logger, database)
}

func newPersonalitiesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personalities",
		Short: "Manage personalities",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed <file>",
			Short: "Upsert personalities from a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(v, cmd, func(_ *config.Config, logger *zap.Logger, database *db.Database) error {
					n, err := personality.SeedFile(cmd.Context(), args[0], database)
					if err != nil {
						return err
					}
					logger.Info("Seeded personalities", zap.String("file", args[0]), zap.Int("count", n))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print stored personalities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(v, cmd, func(_ *config.Config, _ *zap.Logger, database *db.Database) error {
					list, err := database.ListPersonalities(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
					for _, p := range list {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Name, p.Description)
					}
					return tw.Flush()
				})
			},
		},
	)
	return cmd
}

func newUsersCmd(v *viper.Viper) *cobra.Command {
	var email, username string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(v, cmd, func(_ *config.Config, _ *zap.Logger, database *db.Database) error {
				user, err := database.CreateUser(cmd.Context(), email, username)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Email)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "user email")
	create.Flags().StringVar(&username, "username", "", "display name")
	_ = create.MarkFlagRequired("email")

	cmd := &cobra.Command{Use: "users", Short: "Manage users"}
	cmd.AddCommand(create)
	return cmd
}
