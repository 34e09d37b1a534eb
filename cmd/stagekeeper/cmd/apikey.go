package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/core/auth"
	"github.com/solatis/stagekeeper/internal/core/config"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage rule API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key for a tenant (printed once)",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke API_KEY_ID",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)

	apikeyCreateCmd.Flags().String("tenant", "", "tenant id (required)")
	apikeyCreateCmd.Flags().String("name", "", "key description")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret id to sign with (default: newest)")
	apikeyCreateCmd.MarkFlagRequired("tenant")
}

func newAuthenticator() (*auth.Authenticator, func(), error) {
	database, queries, err := openCurrentDatabase()
	if err != nil {
		return nil, nil, err
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries), func() { database.Close() }, nil
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	secretID, _ := cmd.Flags().GetString("secret-id")

	authenticator, closeDB, err := newAuthenticator()
	if err != nil {
		return err
	}
	defer closeDB()

	issued, err := authenticator.IssueKey(cmd.Context(), tenantID, name, secretID)
	if err != nil {
		return err
	}

	logger.Info("api key created", "api_key_id", issued.APIKeyID, "tenant_id", issued.TenantID, "secret_id", issued.SecretID)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "api_key_id: %s\n", issued.APIKeyID)
	fmt.Fprintf(out, "api_key:    %s\n", issued.Key)
	fmt.Fprintln(cmd.ErrOrStderr(), "store this key now, it cannot be shown again")
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	authenticator, closeDB, err := newAuthenticator()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := authenticator.RevokeKey(cmd.Context(), args[0]); err != nil {
		return err
	}
	logger.Info("api key revoked", "api_key_id", args[0])
	return nil
}
