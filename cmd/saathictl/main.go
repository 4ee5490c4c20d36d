// saathictl is the operator CLI: run analyses and recommendations against
// local field fixtures, inspect the catalog and manage rule documents
// without standing up the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/config"
	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/domain/catalog"
	"github.com/plantsaathi/market-intelligence/internal/domain/regional"
	"github.com/plantsaathi/market-intelligence/internal/domain/rules"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/collaborators"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

type cliOptions struct {
	fieldsPath string
	rulesPath  string
	weatherURL string
	diseaseURL string
}

func main() {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "saathictl",
		Short:         "Plant Saathi market intelligence toolbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.fieldsPath, "fields", "", "JSON file with field fixtures")
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "JSON rules document (embedded default when empty)")
	root.PersistentFlags().StringVar(&opts.weatherURL, "weather-url", "", "weather collaborator base URL")
	root.PersistentFlags().StringVar(&opts.diseaseURL, "disease-url", "", "disease collaborator base URL")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newRecommendCmd(opts),
		newRulesCmd(opts),
		newCatalogCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <field-id>",
		Short: "Build and print a field analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(opts)
			if err != nil {
				return err
			}
			fa, err := svc.AnalyzeField(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(fa)
		},
	}
}

func newRecommendCmd(opts *cliOptions) *cobra.Command {
	var category, priority string
	cmd := &cobra.Command{
		Use:   "recommend <field-id>",
		Short: "Generate product recommendations for a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch {
			case category != "":
				recs, err := svc.RecommendationsByCategory(ctx, args[0], category)
				if err != nil {
					return err
				}
				return printJSON(recs)
			case priority != "":
				recs, err := svc.RecommendationsByPriority(ctx, args[0], priority)
				if err != nil {
					return err
				}
				return printJSON(recs)
			default:
				recs, err := svc.GenerateRecommendations(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(recs)
			}
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only this product category")
	cmd.Flags().StringVar(&priority, "priority", "", "only this priority tier")
	return cmd
}

func newRulesCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the active rule set as JSON",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := buildEngine(opts, logging.NewNopLogger())
			if err != nil {
				return err
			}
			data, err := engine.ExportJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a rules document without loading it anywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			logger := logging.NewNopLogger()
			cat, err := catalog.NewService(logger)
			if err != nil {
				return err
			}
			if _, err := rules.NewEngineFromJSON(data, cat, logger); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	})

	return cmd
}

func newCatalogCmd() *cobra.Command {
	var q catalog.Query
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Search the product catalog",
		RunE: func(_ *cobra.Command, _ []string) error {
			cat, err := catalog.NewService(logging.NewNopLogger())
			if err != nil {
				return err
			}
			return printJSON(cat.Search(q))
		},
	}
	cmd.Flags().StringVar(&q.Nutrient, "nutrient", "", "nutrient the product addresses")
	cmd.Flags().StringVar(&q.Disease, "disease", "", "disease the product treats")
	cmd.Flags().StringVar(&q.Category, "category", "", "product category")
	cmd.Flags().StringVar(&q.Region, "region", "", "state code the product must be available in")
	cmd.Flags().BoolVar(&q.EcoFriendlyOnly, "eco", false, "eco-friendly products only")
	return cmd
}

func buildService(opts *cliOptions) (*market.Service, error) {
	logger := logging.NewNopLogger()

	_, err := catalog.NewService(logger)
	if err != nil {
		return nil, err
	}
	reg, err := regional.NewService(logger)
	if err != nil {
		return nil, err
	}
	engine, err := buildEngine(opts, logger)
	if err != nil {
		return nil, err
	}
	fields, err := loadFieldStore(opts.fieldsPath)
	if err != nil {
		return nil, err
	}

	var weather market.WeatherProvider = noForecast{}
	if opts.weatherURL != "" {
		weather = collaborators.NewWeatherClient(config.CollaboratorConfig{BaseURL: opts.weatherURL}, logger, nil)
	}
	var disease market.DiseaseProvider = noHistory{}
	if opts.diseaseURL != "" {
		disease = collaborators.NewDiseaseClient(config.CollaboratorConfig{BaseURL: opts.diseaseURL}, logger, nil)
	}

	cache := market.NewContextCache(market.DefaultTTL, market.DefaultMaxEntries, logger, nil)
	return market.NewService(fields, weather, disease, cache, engine, reg, logger, nil), nil
}

func buildEngine(opts *cliOptions, logger logging.Logger) (*rules.Engine, error) {
	cat, err := catalog.NewService(logger)
	if err != nil {
		return nil, err
	}
	if opts.rulesPath == "" {
		return rules.NewEngine(cat, logger)
	}
	data, err := os.ReadFile(opts.rulesPath)
	if err != nil {
		return nil, err
	}
	return rules.NewEngineFromJSON(data, cat, logger)
}

func loadFieldStore(path string) (*collaborators.MemoryFieldStore, error) {
	if path == "" {
		return collaborators.NewMemoryFieldStore(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fields []market.Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid fields fixture: %w", err)
	}
	return collaborators.NewMemoryFieldStore(fields), nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// noForecast and noHistory stand in for collaborators in offline runs.
type noForecast struct{}

func (noForecast) Forecast(context.Context, float64, float64) ([]analysis.ForecastDay, error) {
	return nil, nil
}

type noHistory struct{}

func (noHistory) Detections(context.Context, string) ([]analysis.DiseaseDetection, error) {
	return nil, nil
}
