package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/tenantjwt/pkg/constants"
)

func newSecretCommand() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage signing secrets",
	}

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random signing secret long enough for an algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, _ := cmd.Flags().GetString("alg")
			secret, err := generateSecret(constants.SignatureAlgorithm(strings.ToUpper(alg)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	genCmd.Flags().String("alg", string(constants.DefaultSignatureAlgorithm), "signature algorithm: HS256, HS384 or HS512")

	secretCmd.AddCommand(genCmd)
	return secretCmd
}

// generateSecret returns a URL-safe secret carrying at least as many random
// bytes as the algorithm's digest.
func generateSecret(alg constants.SignatureAlgorithm) (string, error) {
	n := alg.MinSecretLength()
	if n == 0 {
		return "", fmt.Errorf("unsupported algorithm %q", alg)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
