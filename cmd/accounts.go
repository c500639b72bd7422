package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rogeecn/vpsdash/internal/account"
	"github.com/spf13/cobra"
)

var (
	listType   string
	listReveal bool

	addDraft  account.Account
	addType   string
	addStatus string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "VPS 账号管理",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出账号",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "新增账号",
	Args:  cobra.NoArgs,
	RunE:  runAccountsAdd,
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除账号",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsDelete,
}

var accountsSealCmd = &cobra.Command{
	Use:   "seal",
	Short: "加密历史明文记录",
	Args:  cobra.NoArgs,
	RunE:  runAccountsSeal,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsDeleteCmd, accountsSealCmd)

	accountsListCmd.Flags().StringVar(&listType, "type", "*", "协议类型 (SSH, VLESS, TROJAN, SOCKS, SHADOWSOCKS, * 为全部)")
	accountsListCmd.Flags().BoolVar(&listReveal, "reveal", false, "显示密码与配置明文")

	flags := accountsAddCmd.Flags()
	flags.StringVar(&addType, "type", "", "协议类型")
	flags.StringVar(&addDraft.ServerName, "server-name", "", "服务器名称")
	flags.StringVar(&addDraft.IPAddress, "ip", "", "IP 地址 (SSH)")
	flags.StringVar(&addDraft.Username, "username", "", "用户名 (SSH)")
	flags.StringVar(&addDraft.Password, "password", "", "密码 (SSH)")
	flags.StringVar(&addDraft.ExpiryDate, "expiry", "", "到期日期 YYYY-MM-DD (SSH)")
	flags.StringVar(&addDraft.Config, "config", "", "连接配置 (非 SSH)")
	flags.StringVar(&addStatus, "status", string(account.StatusActive), "状态 (active, inactive)")
	flags.StringVar(&addDraft.UserID, "user-id", "", "所属用户 (默认: anonymous)")
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	gateway, err := newAccountGateway(ctx)
	if err != nil {
		return err
	}

	accounts, err := gateway.ListByType(ctx, strings.TrimSpace(listType))
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSERVER\tADDRESS\tSTATUS\tSECRET\tUPDATED_AT")
	for _, acct := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			acct.ID,
			acct.Type,
			dashIfEmpty(acct.ServerName),
			dashIfEmpty(address(acct)),
			acct.Status,
			secret(acct, listReveal),
			time.UnixMilli(acct.UpdatedAt).UTC().Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func runAccountsAdd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	gateway, err := newAccountGateway(ctx)
	if err != nil {
		return err
	}

	draft := addDraft
	draft.Type = account.Protocol(addType)
	draft.Status = account.Status(addStatus)

	id, err := gateway.Create(ctx, draft)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account created: %s\n", id)
	return nil
}

func runAccountsDelete(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])

	ctx := context.Background()
	gateway, err := newAccountGateway(ctx)
	if err != nil {
		return err
	}

	if err := gateway.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account deleted: %s\n", id)
	return nil
}

func runAccountsSeal(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	gateway, err := newAccountGateway(ctx)
	if err != nil {
		return err
	}

	result, err := gateway.SealLegacy(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned: %d, sealed: %d, skipped: %d\n", result.Scanned, result.Sealed, result.Skipped)
	if err != nil {
		return fmt.Errorf("seal accounts: %w", err)
	}
	return nil
}

func address(acct account.Account) string {
	if acct.Type.Is(account.ProtocolSSH) && acct.Username != "" {
		return acct.Username + "@" + acct.IPAddress
	}
	return acct.IPAddress
}

func secret(acct account.Account, reveal bool) string {
	value := acct.Config
	if acct.Type.Is(account.ProtocolSSH) {
		value = acct.Password
	}
	if value == "" {
		return "-"
	}
	if !reveal {
		return "******"
	}
	return value
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
