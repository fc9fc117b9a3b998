package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/solfeed/pkg/service"
)

var tipTx string

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Act on a single post",
	Long:  "Vote on, receipt or tip a post by its signature",
}

var postVoteCmd = &cobra.Command{
	Use:   "vote <signature> up|down|none",
	Short: "Vote on a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := service.ParseVote(args[1])
		if err != nil {
			return err
		}
		ctx, cancel := actionContext(cmd)
		defer cancel()
		return service.NewPostActionsService().Vote(ctx, args[0], dir)
	},
}

var postReceiptCmd = &cobra.Command{
	Use:   "receipt <signature>",
	Short: "Toggle the receipt (bookmark) on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := actionContext(cmd)
		defer cancel()
		return service.NewPostActionsService().ToggleReceipt(ctx, args[0])
	},
}

var postTipCmd = &cobra.Command{
	Use:   "tip <signature> <lamports>",
	Short: "Record a tip sent to a post's author",
	Long: `Record a tip transfer with the server. Send the transfer from your
wallet first and pass its transaction signature with --tx.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lamports, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid lamports %q: %w", args[1], err)
		}
		ctx, cancel := actionContext(cmd)
		defer cancel()
		return service.NewPostActionsService().Tip(ctx, args[0], lamports, tipTx)
	},
}

func actionContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func init() {
	postTipCmd.Flags().StringVar(&tipTx, "tx", "", "Transaction signature of the tip transfer")

	postCmd.AddCommand(postVoteCmd)
	postCmd.AddCommand(postReceiptCmd)
	postCmd.AddCommand(postTipCmd)
}
