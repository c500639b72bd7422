package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "vpsdash",
	Short:         "VPS 账号管理面板服务",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
