package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/rogeecn/vpsdash/internal/auth"
	"github.com/spf13/cobra"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "生成 VPSDASH_LOGIN_PASSWORD_HASH 所需的 bcrypt 哈希",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if scanner.Scan() {
			password = strings.TrimRight(scanner.Text(), "\r")
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if password == "" {
		return errors.New("password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
