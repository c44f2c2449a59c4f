package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/repository"
	"github.com/turtacn/tenantjwt/internal/infrastructure/crypto"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/memory"
	"github.com/turtacn/tenantjwt/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/tenantjwt/pkg/constants"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func newClientCommand() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Manage tenant client configurations",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the clients declared in the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			clients, err := memory.ClientsFromSeeds(cfg.Clients)
			if err != nil {
				return err
			}
			printClients(cmd, clients)
			return nil
		},
	}

	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Insert or update a client configuration in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFromFlags(cmd)
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := postgres.NewClientConfigurationRepository(db.Gorm(), logger.NewNoopLogger())
			if err := putClient(cmd.Context(), repo, client); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %s saved\n", client.ClientID)
			return nil
		},
	}
	putCmd.Flags().String("client-id", "", "tenant client id")
	putCmd.Flags().String("secret", "", "signing secret")
	putCmd.Flags().String("alg", string(constants.DefaultSignatureAlgorithm), "signature algorithm")
	putCmd.Flags().String("token-type", constants.TokenTypeBearer, "token type reported to clients")
	putCmd.Flags().Bool("encrypt", false, "wrap issued tokens in a JWE envelope")
	putCmd.Flags().Int64("access-ttl", 3600, "access token lifetime in seconds")
	putCmd.Flags().Int64("refresh-ttl", 86400, "refresh token lifetime in seconds")
	_ = putCmd.MarkFlagRequired("client-id")
	_ = putCmd.MarkFlagRequired("secret")

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Insert or update a user of a database-backed tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, _ := cmd.Flags().GetString("client-id")
			password, _ := cmd.Flags().GetString("password")
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := crypto.HashPassword(password, cost)
			if err != nil {
				return err
			}

			user := &models.UserRecord{PasswordHash: hash}
			user.Username, _ = cmd.Flags().GetString("username")
			user.Name, _ = cmd.Flags().GetString("name")
			user.Roles, _ = cmd.Flags().GetStringSlice("role")
			disabled, _ := cmd.Flags().GetBool("disabled")
			user.Enabled = !disabled

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewUserRepository(db.Gorm(), clientID, logger.NewNoopLogger()).Save(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s/%s saved\n", clientID, user.Username)
			return nil
		},
	}
	userCmd.Flags().String("client-id", "", "tenant client id")
	userCmd.Flags().String("username", "", "login name")
	userCmd.Flags().String("name", "", "display name")
	userCmd.Flags().String("password", "", "plain-text password, stored as a bcrypt hash")
	userCmd.Flags().Int("cost", 0, "bcrypt cost")
	userCmd.Flags().StringSlice("role", nil, "role granted to the user, repeatable")
	userCmd.Flags().Bool("disabled", false, "store the user as disabled")
	for _, f := range []string{"client-id", "username", "password"} {
		_ = userCmd.MarkFlagRequired(f)
	}

	clientCmd.AddCommand(checkCmd, putCmd, userCmd)
	return clientCmd
}

func clientFromFlags(cmd *cobra.Command) *models.ClientConfiguration {
	c := &models.ClientConfiguration{}
	c.ClientID, _ = cmd.Flags().GetString("client-id")
	c.SigningSecret, _ = cmd.Flags().GetString("secret")
	alg, _ := cmd.Flags().GetString("alg")
	c.SignatureAlgorithm = constants.SignatureAlgorithm(alg)
	c.TokenType, _ = cmd.Flags().GetString("token-type")
	c.UseEncryption, _ = cmd.Flags().GetBool("encrypt")
	c.AccessTokenValiditySeconds, _ = cmd.Flags().GetInt64("access-ttl")
	c.RefreshTokenValiditySeconds, _ = cmd.Flags().GetInt64("refresh-ttl")
	return c
}

// putClient validates c before storing it.
func putClient(ctx context.Context, repo repository.ClientConfigurationRepository, c *models.ClientConfiguration) error {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	return repo.Save(ctx, c)
}

func printClients(cmd *cobra.Command, clients []*models.ClientConfiguration) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tALG\tTYPE\tENCRYPTED\tACCESS\tREFRESH")
	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%ds\t%ds\n", c.ClientID, c.SignatureAlgorithm, c.TokenType,
			c.UseEncryption, c.AccessTokenValiditySeconds, c.RefreshTokenValiditySeconds)
	}
	_ = w.Flush()
}

// openDB connects to the database section of the configuration.
func openDB(cmd *cobra.Command) (*postgres.DBConnection, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.Database.Enabled {
		return nil, fmt.Errorf("database is disabled in the configuration")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return postgres.NewDBConnection(ctx, cfg.Database, logger.NewNoopLogger())
}
