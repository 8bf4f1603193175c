package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cityresilience/scenario-engine/pkg/dependency"
)

func chainCmd() *cobra.Command {
	var assetID, direction string
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Walk the dependency chain from an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			facade := buildFacade(cfg, s, slog.Default())

			dir := dependency.Downstream
			if direction == "upstream" {
				dir = dependency.Upstream
			}

			chain, err := facade.Chain(ctx, assetID, dir, maxDepth)
			if err != nil {
				return fmt.Errorf("dependency chain: %w", err)
			}

			switch outputFormat {
			case "json":
				return outputChainJSON(chain)
			default:
				return outputChainTable(chain)
			}
		},
	}

	cmd.Flags().StringVar(&assetID, "asset-id", "", "root asset to walk the dependency chain from")
	cmd.Flags().StringVar(&direction, "direction", "downstream", "traversal direction: upstream or downstream")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 6, "maximum traversal depth")
	cmd.MarkFlagRequired("asset-id")

	return cmd
}

func outputChainJSON(chain *dependency.Chain) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(chain)
}

func outputChainTable(chain *dependency.Chain) error {
	fmt.Printf("Root: %s\n", chain.Root)

	nodeTable := tablewriter.NewWriter(os.Stdout)
	nodeTable.Append([]string{"Asset ID", "Name", "Sector", "Depth"})
	for _, n := range chain.Nodes {
		nodeTable.Append([]string{n.Asset.ID, n.Asset.Name, string(n.Asset.Sector), fmt.Sprintf("%d", n.Depth)})
	}
	nodeTable.Render()

	edgeTable := tablewriter.NewWriter(os.Stdout)
	edgeTable.Append([]string{"From", "To", "Type", "Priority", "Level"})
	for _, e := range chain.Edges {
		edgeTable.Append([]string{e.From, e.To, string(e.Type), fmt.Sprintf("%d", e.Priority), fmt.Sprintf("%d", e.Level)})
	}
	edgeTable.Render()

	return nil
}
