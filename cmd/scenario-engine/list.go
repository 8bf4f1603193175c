package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

func listCmd() *cobra.Command {
	var city string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prepared scenario instances for a city",
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

			instances, err := facade.ListPrepared(ctx, city, limit)
			if err != nil {
				return fmt.Errorf("list prepared: %w", err)
			}

			if len(instances) == 0 {
				fmt.Println("No prepared instances found")
				return nil
			}

			switch outputFormat {
			case "json":
				return outputInstancesJSON(instances)
			default:
				return outputInstancesTable(instances)
			}
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city to list prepared instances for")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum instances to list")
	cmd.MarkFlagRequired("city")

	return cmd
}

func outputInstancesJSON(instances []scenario.Instance) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(instances)
}

func outputInstancesTable(instances []scenario.Instance) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"Instance ID", "City", "Scenario", "Template", "Status", "Ticks"})

	for _, inst := range instances {
		table.Append([]string{
			inst.ID,
			inst.City,
			inst.ScenarioKey,
			inst.TemplateID,
			inst.Status,
			fmt.Sprintf("%d", inst.TotalTicks()),
		})
	}

	table.Render()
	return nil
}
