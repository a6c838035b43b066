package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgvault/internal/batch"
)

func newInventoryCommand(ctx *commandContext) *cobra.Command {
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Classify every image asset by conversion state",
		Long: `Report how many assets are pending, converted, missing their file, or past
the failure ceiling. Assets already stored in the target format are recorded
as converted without an original.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(func(b backend) error {
				inv, err := b.Inventory(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.structured() {
					return ctx.writeStructured(cmd, inv)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderInventory(inv, showIDs))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showIDs, "ids", false, "List asset IDs for each class")
	return cmd
}

func renderInventory(inv batch.Inventory, showIDs bool) string {
	type class struct {
		name string
		ids  []int64
	}
	classes := []class{
		{"Pending", inv.Pending},
		{"Converted", inv.Managed},
		{"Restorable", inv.Restorable},
		{"Missing file", inv.Missing},
		{"Failed", inv.Failed},
	}

	headers := []string{"Class", "Assets"}
	aligns := []columnAlignment{alignLeft, alignRight}
	if showIDs {
		headers = append(headers, "IDs")
		aligns = append(aligns, alignLeft)
	}
	rows := make([][]string, 0, len(classes)+2)
	for _, c := range classes {
		row := []string{c.name, formatCount(len(c.ids))}
		if showIDs {
			row = append(row, joinIDs(c.ids))
		}
		rows = append(rows, row)
	}
	rows = append(rows,
		[]string{"Adopted this pass", formatCount(inv.Adopted)},
		[]string{"Total saved", formatBytes(inv.Savings)},
	)
	return renderTable(headers, rows, aligns)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = formatID(id)
	}
	return strings.Join(parts, " ")
}
