package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/solfeed/pkg/service"
)

var (
	loginToken    string
	loginWallet   string
	loginUsername string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the access token used for the watchlist feed and post actions",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().Login(loginToken, loginWallet, loginUsername)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().Logout()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current login",
	RunE: func(cmd *cobra.Command, args []string) error {
		return service.NewAuthService().Status()
	},
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token (prompted for when omitted)")
	loginCmd.Flags().StringVar(&loginWallet, "wallet", "", "Wallet address of the account")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username of the account")
}
