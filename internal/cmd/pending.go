package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/spf13/cobra"
)

var pendingJSON bool

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List orders queued for the authority",
	RunE:  runPending,
}

var pendingDropCmd = &cobra.Command{
	Use:   "drop <temp-id>",
	Short: "Discard a queued order the authority will not accept",
	Long: `drop removes an order from the local queue for good. Use it for orders
the authority rejected, which otherwise stall the queue behind them.`,
	Args: cobra.ExactArgs(1),
	RunE: runPendingDrop,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "print the queue as JSON")
	pendingCmd.AddCommand(pendingDropCmd)
}

func runPending(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	orders := a.store.GetPendingOrders(cmd.Context())
	return printPending(cmd.OutOrStdout(), orders, pendingJSON)
}

func runPendingDrop(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.DropPending(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pending order %s dropped\n", args[0])
	return nil
}

func printPending(out io.Writer, orders []domain.PendingOrder, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(orders)
	}
	if len(orders) == 0 {
		fmt.Fprintln(out, "no pending orders")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEMP ID\tCREATED\tITEMS\tTOTAL\tSYNCED")
	for _, o := range orders {
		items := 0
		for _, it := range o.Payload.Items {
			items += it.Quantity
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s %s\t%t\n",
			o.TempID,
			o.CreatedAt.Local().Format(time.DateTime),
			items,
			o.Payload.Total.StringFixed(2),
			o.Payload.Currency,
			o.Synced,
		)
	}
	return w.Flush()
}
