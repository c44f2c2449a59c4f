package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// NewRootCommand builds the `tenantjwt-admin` command tree.
// NewRootCommand 构建 `tenantjwt-admin` 命令树。
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tenantjwt-admin",
		Short: "A CLI tool for administering the tenantjwt token service.",
		Long: `tenantjwt-admin performs offline administrative tasks for the tenantjwt
service: generating signing secrets, hashing passwords, checking and
storing client configurations and reading the audit trail.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to the service configuration file")

	root.AddCommand(
		newSecretCommand(),
		newPasswordCommand(),
		newClientCommand(),
		newAuditCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
// Execute 运行命令行工具，失败时以非零状态退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the service configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.NewLoader(logger.NewNoopLogger(), file).Load()
}
