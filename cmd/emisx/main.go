package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelens/emisx/api"
	"github.com/carelens/emisx/dedupe"
	"github.com/carelens/emisx/export"
	"github.com/carelens/emisx/lineage"
	"github.com/carelens/emisx/lookup"
	"github.com/carelens/emisx/models/emis"
	"github.com/carelens/emisx/pipeline"
	"github.com/carelens/emisx/terminology"
)

var (
	envFile string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "emisx",
		Short: "Extract, classify and export clinical codes from EMIS search/report XML",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			} else {
				_ = godotenv.Load()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newConvertCmd(), newExpandCmd(), newTraceCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })).
		Level(level).
		With().Timestamp().Caller().Logger()
}

// buildIndex picks the lookup backend: a Postgres table when
// LOOKUP_DATABASE_URL is set, otherwise a CSV export via LOOKUP_CSV.
func buildIndex(log zerolog.Logger) (lookup.Index, error) {
	if dsn := os.Getenv("LOOKUP_DATABASE_URL"); dsn != "" {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to lookup database: %w", err)
		}
		return lookup.NewSQLIndex(db, os.Getenv("LOOKUP_TABLE"), log), nil
	}
	if path := os.Getenv("LOOKUP_CSV"); path != "" {
		return lookup.LoadCSV(path)
	}
	return nil, fmt.Errorf("no lookup source configured; set LOOKUP_DATABASE_URL or LOOKUP_CSV")
}

func buildClient(log zerolog.Logger) terminology.Client {
	return terminology.NewFHIRClient(terminology.FHIRClientConfig{
		BaseURL:      os.Getenv("TERMINOLOGY_BASE_URL"),
		TokenURL:     os.Getenv("TERMINOLOGY_TOKEN_URL"),
		ClientID:     os.Getenv("TERMINOLOGY_CLIENT_ID"),
		ClientSecret: os.Getenv("TERMINOLOGY_CLIENT_SECRET"),
	}, log)
}

func newConvertCmd() *cobra.Command {
	var (
		input         string
		mode          string
		outDir        string
		includeSource bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Parse an EMIS XML document and export deduplicated code sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			index, err := buildIndex(log)
			if err != nil {
				return err
			}

			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("failed to open input document: %w", err)
			}
			defer f.Close()

			doc, err := emis.DecodeDocument(f)
			if err != nil {
				return err
			}

			dedupeMode := dedupe.GlobalUnique
			if mode == "per-source" {
				dedupeMode = dedupe.PerSource
			}

			report, err := pipeline.New(index, log).Run(cmd.Context(), doc, dedupeMode)
			if err != nil {
				return err
			}

			manager, err := export.NewOutputManager(outDir, log)
			if err != nil {
				return err
			}

			result := report.Result
			exports := map[string][]lookup.EnrichedRow{
				"clinical":                  result.Clinical,
				"medications":               result.Medications,
				"clinical_pseudo_members":   result.ClinicalPseudoMembers,
				"medication_pseudo_members": result.MedicationPseudoMembers,
				"refsets":                   result.Refsets,
			}
			for prefix, rows := range exports {
				if len(rows) == 0 {
					continue
				}
				if err := manager.WriteCSVFile(rows, prefix, includeSource || dedupeMode == dedupe.PerSource); err != nil {
					return err
				}
				if err := manager.WriteXMLFile(rows, prefix); err != nil {
					return err
				}
			}
			if err := manager.WriteJSON(report, "report"); err != nil {
				return err
			}

			log.Info().Str("dir", manager.BaseDir()).Msg("Exports written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "EMIS XML document to convert")
	cmd.Flags().StringVar(&mode, "mode", "global-unique", "dedupe mode: global-unique or per-source")
	cmd.Flags().StringVarP(&outDir, "out", "o", "output", "output directory")
	cmd.Flags().BoolVar(&includeSource, "include-source", false, "include source columns in CSV exports")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newExpandCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "expand CODE...",
		Short: "Expand SNOMED codes to their descendants via the terminology server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			service := terminology.NewService(buildClient(log), terminology.ServiceConfig{}, log)

			results := service.ExpandBatch(cmd.Context(), args, includeInactive, func(completed, total int, code string) {
				log.Info().Int("completed", completed).Int("total", total).Str("code", code).Msg("Expanded")
			})
			return printJSON(results)
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "include inactive concepts")
	return cmd
}

func newTraceCmd() *cobra.Command {
	var (
		includeInactive bool
		maxDepth        int
	)

	cmd := &cobra.Command{
		Use:   "trace CODE...",
		Short: "Expand codes and rebuild their parent/child hierarchy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			client := buildClient(log)
			service := terminology.NewService(client, terminology.ServiceConfig{}, log)

			expansions := service.ExpandBatch(cmd.Context(), args, includeInactive, nil)
			tracer := lineage.NewTracer(client, lineage.Config{MaxDepth: maxDepth}, log)
			full := tracer.TraceFullLineage(cmd.Context(), expansions, includeInactive)

			var edges []export.HierarchyRow
			for _, tree := range full.Trees {
				for _, edge := range lineage.Flatten(tree) {
					edges = append(edges, export.HierarchyRow{
						ParentCode: edge.ParentCode,
						Code:       edge.Code,
						Display:    edge.Display,
					})
				}
			}
			return printJSON(export.BuildHierarchicalJSON(edges, full.SharedLineageCodes))
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "include inactive concepts")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "depth cap for the trace (0 = default)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline and terminology operations over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			index, err := buildIndex(log)
			if err != nil {
				return err
			}

			registry := terminology.NewRegistry(func() *terminology.Service {
				return terminology.NewService(buildClient(log), terminology.ServiceConfig{}, log)
			}, log)

			router := api.NewRouter(pipeline.New(index, log), registry, lineage.Config{}, log)

			server := &http.Server{
				Addr:              addr,
				Handler:           router.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("Starting server")
			return server.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")
	return cmd
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
