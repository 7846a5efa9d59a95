package main

import (
	"fmt"
	"os"

	"github.com/RichardoC/blinky/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:           "blinky",
		Short:         "Conversation backend for the Blinky companion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := config.BindFlags(v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(
		newServeCmd(v),
		newAskCmd(v),
		newPersonalitiesCmd(v),
		newUsersCmd(v),
	)
	return root
}

// loadConfig resolves the settings for cmd once its flags are parsed.
func loadConfig(v *viper.Viper, cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(v, configFile)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
