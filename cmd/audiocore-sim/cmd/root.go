// root.go viper root command code
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sparkmicro/audiocore/internal/config"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *config.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audiocore-sim",
		Short: "audiocore pipeline simulator",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(runCommand(settings))

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *config.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
