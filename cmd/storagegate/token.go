package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/auth"
	"github.com/agdev/storagegate/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a client",
	Long: `Mint an HS256 bearer token signed with auth.jwt_secret.

The client id must match a domain's folder for the token to be allowed
to write to that domain.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("user", "", "user id (sub claim)")
	tokenCmd.Flags().String("client", "", "client id (client_id claim)")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("client")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret must be set: %w", err)
	}

	user, _ := cmd.Flags().GetString("user")
	client, _ := cmd.Flags().GetString("client")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl == 0 {
		ttl = time.Duration(cfg.Auth.TokenTTL) * time.Second
	}

	token, err := verifier.Issue(storagegate.Caller{UserID: user, ClientID: client}, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
