package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mezonai/starledger/jsonx"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/service"
)

// Offline chain inspection. These open the store directly, so stop the node
// first when it uses a backend that takes a file lock.
var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect the local chain",
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute every block digest and link",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStarService(cmd.Context(), func(svc *service.StarServiceImpl) error {
			report, err := svc.ValidateChain(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("chain has %d faulty blocks", len(report.Faults))
			}
			return nil
		})
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <height>",
	Short: "Print the block at height",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", args[0], err)
		}
		return withStarService(cmd.Context(), func(svc *service.StarServiceImpl) error {
			blk, err := svc.GetBlock(cmd.Context(), height)
			if err != nil {
				return err
			}
			return printJSON(blk)
		})
	},
}

var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Print the current chain height",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStarService(cmd.Context(), func(svc *service.StarServiceImpl) error {
			h, err := svc.GetChainHeight(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		})
	},
}

func init() {
	chainCmd.AddCommand(verifyCmd, blockCmd, heightCmd)
	rootCmd.AddCommand(chainCmd)
}

func withStarService(ctx context.Context, fn func(svc *service.StarServiceImpl) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfiguration()
	if err != nil {
		return err
	}
	bc, closeStore, err := openChain(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := mempool.NewMempool(mempool.WithWindow(cfg.ValidationWindow()))
	defer registry.Close()
	return fn(service.NewStarService(bc, registry))
}

func printJSON(v interface{}) error {
	out, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
