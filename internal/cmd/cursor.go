package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/output"
	"github.com/zfogg/solfeed/pkg/service"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or clear stored feed cursors",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show [recent|watchlist]",
	Short: "Show the stored cursor for each channel",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, closeFn, err := cursorService(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return cs.Show(cmd.Context(), firstArg(args))
	},
}

var cursorClearCmd = &cobra.Command{
	Use:   "clear [recent|watchlist]",
	Short: "Clear stored cursors so the next watch starts from a new baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, closeFn, err := cursorService(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := cs.Clear(cmd.Context(), firstArg(args)); err != nil {
			return err
		}
		output.PrintSuccess("Cursor cleared")
		return nil
	},
}

func cursorService(cmd *cobra.Command) (*service.CursorService, func(), error) {
	store, closeFn, err := service.OpenCursorStore(cmd.Context(), config.Load())
	if err != nil {
		return nil, nil, err
	}
	return service.NewCursorService(store), closeFn, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	cursorCmd.AddCommand(cursorShowCmd)
	cursorCmd.AddCommand(cursorClearCmd)
}
