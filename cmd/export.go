package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasfleet/dispatch-cli/internal/export"
	"github.com/atlasfleet/dispatch-cli/internal/store"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all stored orders to the XLSX workbook",
	Long:  "Rebuilds the workbook from the order store. Rows already present are left in place; missing orders are appended.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path := cfg.Export.Path
		if exportPath != "" {
			path = exportPath
		}
		if path == "" {
			return eris.New("export: no workbook path configured")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "export: open store")
		}
		defer st.Close()

		orders, err := st.ListOrders(ctx, store.OrderFilter{})
		if err != nil {
			return eris.Wrap(err, "export: list orders")
		}

		wb := export.NewWorkbook(path, cfg.Export.SheetName)
		for i := range orders {
			if err := wb.Persist(ctx, &orders[i].Draft); err != nil {
				return eris.Wrapf(err, "export: order %s", orders[i].ID)
			}
		}

		fmt.Printf("exported %d orders to %s\n", len(orders), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "path", "", "override the workbook path")
	rootCmd.AddCommand(exportCmd)
}
