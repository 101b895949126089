package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/toporag/internal/gazetteer"
	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/store"
	"github.com/ppiankov/toporag/internal/zeromatch"
)

var (
	zeroTop       int
	lookupLimit   int
	resultsDBPath string
	resultsQuery  store.Query
	resultsReason string
)

// zeroMatchesCmd prints the most frequent toponyms of a zero-match export
var zeroMatchesCmd = &cobra.Command{
	Use:   "zero-matches <export.json>",
	Short: "Show the most frequent toponyms without gazetteer candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		export, err := zeromatch.ReadFile(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%d unique toponyms, %d occurrences (min frequency %d)\n\n",
			export.Metadata.TotalUnique, export.Metadata.TotalOccurrences, export.Metadata.MinFrequency)

		items := export.ReviewItems
		if zeroTop > 0 && len(items) > zeroTop {
			items = items[:zeroTop]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tTOPONYM\tFREQUENCY\tSAMPLE")
		for i, item := range items {
			sample := ""
			if len(item.Contexts) > 0 {
				sample = oneLine(item.Contexts[0], 80)
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, item.Toponym, item.Frequency, sample)
		}
		return w.Flush()
	},
}

// gazetteerCmd groups gazetteer inspection commands
var gazetteerCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Inspect the configured gazetteer",
}

var gazetteerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print gazetteer size statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGazetteer(func(ctx context.Context, g gazetteer.Gazetteer) error {
			sp, ok := g.(gazetteer.StatsProvider)
			if !ok {
				return fmt.Errorf("gazetteer backend does not report statistics")
			}
			stats, err := sp.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Places:           %d\n", stats.TotalPlaces)
			fmt.Printf("Countries:        %d\n", stats.Countries)
			fmt.Printf("Populated places: %d\n", stats.PopulatedPlaces)
			return nil
		})
	},
}

var gazetteerLookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "List the candidates the pipeline would consider for a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGazetteer(func(ctx context.Context, g gazetteer.Gazetteer) error {
			name := model.CleanToponym(args[0])
			candidates, err := g.Candidates(ctx, name, lookupLimit)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Printf("No candidates for %q\n", name)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCOUNTRY\tADMIN1\tPOPULATION\tLAT,LON")
			for _, c := range candidates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.4f,%.4f\n",
					c.ID, c.Name, c.FeatureLabel(), c.Country, c.Admin1, c.PopulationOrZero(), c.Lat, c.Lon)
			}
			return w.Flush()
		})
	},
}

// llmCmd groups judgment provider commands
var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect the configured LLM provider",
}

var llmCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the LLM provider is configured and reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := provider.CheckAvailable(ctx); err != nil {
			return fmt.Errorf("%s unavailable: %w", provider.Name(), err)
		}
		fmt.Printf("✓ %s is available (model: %s)\n", provider.Name(), cfg.LLM.Model)
		return nil
	},
}

// resultsCmd queries a result database written by run --db
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query stored disambiguation results",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := resultsDBPath
		if dbPath == "" {
			cfg, err := loadConfig(viper.GetViper())
			if err != nil {
				return err
			}
			dbPath = cfg.Output.DBPath
		}
		if dbPath == "" {
			return fmt.Errorf("no result database (pass --db or set output.db_path)")
		}

		db, err := store.NewSQLite(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		q := resultsQuery
		q.Reason = model.Reason(resultsReason)
		results, err := db.Results(context.Background(), q)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tTOPONYM\tSELECTED\tCONFIDENCE\tREASON\tMULTI")
		for _, r := range results {
			selected := "-"
			if r.SelectedID != "" {
				selected = fmt.Sprintf("%s (%s)", r.SelectedName, r.SelectedID)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
				r.DocumentID, r.Toponym, selected, r.Confidence, r.Reason, r.HasMultipleReferents)
		}
		return w.Flush()
	},
}

func withGazetteer(fn func(ctx context.Context, g gazetteer.Gazetteer) error) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	g, closeGazetteer, err := openGazetteer(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeGazetteer()
	return fn(ctx, g)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(zeroMatchesCmd, gazetteerCmd, llmCmd, resultsCmd)
	gazetteerCmd.AddCommand(gazetteerStatsCmd, gazetteerLookupCmd)
	llmCmd.AddCommand(llmCheckCmd)

	zeroMatchesCmd.Flags().IntVarP(&zeroTop, "top", "n", 20, "number of toponyms to show (0 for all)")
	gazetteerLookupCmd.Flags().IntVar(&lookupLimit, "limit", 10, "maximum candidates")

	resultsCmd.Flags().StringVar(&resultsDBPath, "db", "", "result database (default: output.db_path)")
	resultsCmd.Flags().StringVar(&resultsQuery.RunID, "run", "", "only this run id")
	resultsCmd.Flags().StringVar(&resultsQuery.DocumentID, "document", "", "only this document")
	resultsCmd.Flags().StringVar(&resultsQuery.Toponym, "toponym", "", "only this toponym (case-insensitive)")
	resultsCmd.Flags().StringVar(&resultsReason, "reason", "", "only this outcome (selected, no_candidates, ...)")
	resultsCmd.Flags().IntVar(&resultsQuery.Limit, "limit", 100, "maximum rows")
}
