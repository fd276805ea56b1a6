package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	syncpkg "github.com/atlasfleet/dispatch-cli/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync cursor, processed-message count, and stored orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pos, ok, err := syncpkg.NewCursorStore(cursorPath()).Load()
		if err != nil {
			return eris.Wrap(err, "status: load cursor")
		}
		if !ok {
			fmt.Println("cursor: none (next run performs an initial scan)")
		} else {
			fmt.Printf("cursor: history_id=%d watermark=%d\n", pos.HistoryID, pos.Watermark)
		}

		seen, err := syncpkg.OpenSeenSet(seenPath())
		if err != nil {
			return eris.Wrap(err, "status: open seen set")
		}
		defer seen.Close()
		fmt.Printf("processed messages: %d\n", seen.Len())

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "status: open store")
		}
		defer st.Close()

		n, err := st.CountOrders(ctx)
		if err != nil {
			return eris.Wrap(err, "status: count orders")
		}
		fmt.Printf("stored orders: %d\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
