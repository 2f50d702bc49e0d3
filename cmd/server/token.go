package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiremeet/internal/app"
	"github.com/vovakirdan/wiremeet/internal/auth"
)

var (
	flagUserID   int64
	flagUsername string
	flagGuest    bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token for development",
	Long: `Mint a session token signed with the configured secret.

The user is not created; the token only authenticates if the id exists in the database.

Example:
  wiremeet token --user-id 1 --username alice`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagUserID <= 0 {
			return errors.New("--user-id is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.GenerateToken(app.JWTConfig(cfg), flagUserID, flagUsername, flagGuest)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&flagUserID, "user-id", 0, "user id to put in the token")
	tokenCmd.Flags().StringVar(&flagUsername, "username", "", "username claim")
	tokenCmd.Flags().BoolVar(&flagGuest, "guest", false, "mark the token as a guest session")
}
