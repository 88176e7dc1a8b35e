// discovery 命令行：启动注册中心或管理静态公告
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "discovery",
		Short: "Service discovery registry",
		Long: `discovery 维护动态与静态服务公告，并按环境、类型、池提供查询。

serve 启动服务端，static 子命令通过 HTTP 管理静态公告。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:4111", "Discovery server base URL")

	root.AddCommand(serveCmd())
	root.AddCommand(staticCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
