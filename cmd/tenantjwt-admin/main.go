package main

import (
	"github.com/turtacn/tenantjwt/cmd/cli"
)

// main is the entry point for the tenantjwt-admin command-line tool.
// main 是 tenantjwt-admin 命令行工具的入口点。
func main() {
	cli.Execute()
}
