package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/tenantjwt/internal/infrastructure/crypto"
)

func newPasswordCommand() *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Manage user password hashes",
	}

	hashCmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print the bcrypt hash of a password, read from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")

			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}

			hash, err := crypto.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	hashCmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")

	passwordCmd.AddCommand(hashCmd)
	return passwordCmd
}
