package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateKeyCmd = &cobra.Command{
	Use:   "validate-key [api-key]",
	Short: "Check a Gemini API key",
	Long: `Check a Gemini API key with a single minimal generation request.
Without an argument the configured gemini.api_key is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := viper.GetString("gemini.api_key")
		if len(args) == 1 {
			key = args[0]
		}
		res := newKeyValidator().Validate(cmd.Context(), key)
		if !res.Valid {
			return errors.New(res.Error)
		}
		ui.Success("Gemini API key is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateKeyCmd)
}
