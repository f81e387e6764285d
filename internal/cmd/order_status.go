package cmd

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/spf13/cobra"
)

var orderStatusCmd = &cobra.Command{
	Use:   "order-status ORDER_ID STATUS",
	Short: "Move an order at the authority to a new status",
	Long: `order-status asks the authority to move an accepted order along its
lifecycle: pending, confirmed, processing, shipped, delivered or cancelled.`,
	Args: cobra.ExactArgs(2),
	RunE: runOrderStatus,
}

func init() {
	rootCmd.AddCommand(orderStatusCmd)
}

func runOrderStatus(cmd *cobra.Command, args []string) error {
	status := domain.OrderStatus(args[1])
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", args[1])
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.remote.UpdateOrderStatus(cmd.Context(), args[0], status); err != nil {
		return fmt.Errorf("failed to update order %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "order %s is now %s\n", args[0], status)
	return nil
}
