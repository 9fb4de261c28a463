package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"review-sentiment/internal/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("REVIEWCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "reviewctl",
		Short: "Classify product reviews and map them to business actions",
		Long: `reviewctl runs the review sentiment decision engine from the terminal.
It can evaluate a single label and score, or classify a review dataset
offline and print the action chosen for every review.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if v.GetBool("debug") {
				level = "debug"
			}
			return config.LoggingConfig{Level: level, Format: "text"}.Apply()
		},
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().String("locale", "", "locale for decision messages (en, ru)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("locale", root.PersistentFlags().Lookup("locale"))

	root.AddCommand(newDecideCmd(v), newAnalyzeCmd(v))
	return root
}

// loadSettings reads the config file and environment, then layers CLI overrides on top.
func loadSettings(v *viper.Viper) (*config.Config, error) {
	settings, err := config.LoadFromEnv(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if locale := strings.TrimSpace(v.GetString("locale")); locale != "" {
		settings.Locale = locale
	}
	return settings, nil
}
