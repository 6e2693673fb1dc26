package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"phenotab/adapters/api"
	"phenotab/adapters/excel"
	"phenotab/adapters/matrix"
	"phenotab/adapters/postgres"
	"phenotab/app"
	"phenotab/domain/sheet"
	"phenotab/internal"
	"phenotab/internal/config"
	"phenotab/internal/errors"
	"phenotab/internal/migration"
	"phenotab/internal/profiling"
	"phenotab/ports"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:           "phenotab",
		Short:         "Phenotype workbook cleanup and analysis matrix export",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newProcessCmd(),
		newSheetsCmd(),
		newIOPCountsCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

type processOptions struct {
	infile    string
	rulesFile string
	outDir    string
	sheets    []string
	writeXLSX bool
	archive   bool
}

func newProcessCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Clean a phenotype workbook and export its analysis matrices",
		Long: `Clean a phenotype workbook against the rules document and export the binary
and quantitative analysis matrices, plus a diagnostics report for any
worksheet with advisory findings.

Exit codes: 0 when every cell passed, 2 when advisory diagnostics were
recorded (output is still written), 1 on configuration, schema, or
infrastructure failure.

Example: phenotab process --infile flinders_batch_2.xlsx --outdir output --xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.infile, "infile", "", "Phenotype workbook to process (.xlsx)")
	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "Rules document path (RULES_FILE or embedded defaults when empty)")
	cmd.Flags().StringVar(&opts.outDir, "outdir", "", "Output directory (OUTPUT_DIR or ./output when empty)")
	cmd.Flags().StringSliceVar(&opts.sheets, "sheet", nil, "Worksheet to process (repeatable, default: all configured)")
	cmd.Flags().BoolVar(&opts.writeXLSX, "xlsx", false, "Also write the cleaned workbook")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "Record the run in the archive database")
	cmd.MarkFlagRequired("infile")

	return cmd
}

func runProcess(ctx context.Context, opts processOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.rulesFile == "" {
		opts.rulesFile = cfg.Paths.RulesFile
	}
	if opts.outDir == "" {
		opts.outDir = cfg.Paths.OutputDir
	}

	rs, err := config.LoadRules(opts.rulesFile)
	if err != nil {
		return err
	}

	color.Yellow("Processing %s for dataset %s", opts.infile, rs.Dataset)

	source, err := excel.OpenWorkbook(opts.infile)
	if err != nil {
		return err
	}
	defer source.Close()

	var writer ports.WorkbookWriter
	if opts.writeXLSX {
		writer = excel.NewCleanWorkbookWriter()
	}

	var archive ports.RunArchive
	if opts.archive {
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		archive = postgres.NewRunArchive(db)
	}

	svc := app.NewPipelineService(matrix.NewTableWriter(), archive, internal.NewDefaultLogger())
	result, err := svc.Run(ctx, app.ProcessRequest{
		Rules:        rs,
		Source:       source,
		Writer:       writer,
		Sheets:       opts.sheets,
		WorkbookPath: opts.infile,
		OutDir:       opts.outDir,
	})
	if err != nil {
		return err
	}

	for _, outcome := range result.Sheets {
		if outcome.Err != nil {
			continue
		}
		res := outcome.Result
		fmt.Printf("%s: %d rows, %d skipped, %d diagnostics\n",
			outcome.Sheet, len(res.Rows), len(res.SkippedRows), len(res.Diagnostics))
	}
	for _, path := range result.Outputs {
		fmt.Printf("Wrote %s\n", path)
	}

	if msgs := result.SheetErrors(); len(msgs) > 0 {
		for _, msg := range msgs {
			color.Red("Rejected %s", msg)
		}
		os.Exit(1)
	}
	if result.Flagged() {
		color.Yellow("Completed with %d diagnostics, review them before analysis", result.Run.DiagnosticCount)
		os.Exit(2)
	}
	color.Green("Completed clean: %d rows across %d worksheets", result.Run.RowCount, len(result.Sheets))
	return nil
}

func newSheetsCmd() *cobra.Command {
	var infile, rulesFile string

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List worksheets and how the rules dispatch them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheets(cmd.Context(), infile, rulesFile)
		},
	}

	cmd.Flags().StringVar(&infile, "infile", "", "Phenotype workbook to inspect (.xlsx)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rules document path (embedded defaults when empty)")
	cmd.MarkFlagRequired("infile")

	return cmd
}

func runSheets(ctx context.Context, infile, rulesFile string) error {
	rs, err := config.LoadRules(rulesFile)
	if err != nil {
		return err
	}

	source, err := excel.OpenWorkbook(infile)
	if err != nil {
		return err
	}
	defer source.Close()

	names, err := source.SheetNames(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		switch {
		case !rs.IsQualified(name):
			color.Red("%s: not qualified for dataset %s", name, rs.Dataset)
		case !rs.ShouldProcess(name):
			color.Yellow("%s: qualified, not selected", name)
		default:
			color.Green("%s: will process", name)
		}
	}
	return nil
}

func newIOPCountsCmd() *cobra.Command {
	var infile, rulesFile, sheetName string
	var columns []string

	cmd := &cobra.Command{
		Use:   "iopcounts",
		Short: "Count patients with at least one IOP measurement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIOPCounts(cmd.Context(), infile, rulesFile, sheetName, columns)
		},
	}

	cmd.Flags().StringVar(&infile, "infile", "", "Phenotype workbook to inspect (.xlsx)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rules document path (embedded defaults when empty)")
	cmd.Flags().StringVar(&sheetName, "sheet", "Glaucoma", "Worksheet holding the measurements")
	cmd.Flags().StringSliceVar(&columns, "columns",
		[]string{"Highest IOP_RE", "Highest IOP_LE", "Highest IOP"},
		"Measurement columns to count")
	cmd.MarkFlagRequired("infile")

	return cmd
}

func runIOPCounts(ctx context.Context, infile, rulesFile, sheetName string, columns []string) error {
	rs, err := config.LoadRules(rulesFile)
	if err != nil {
		return err
	}
	sr, err := rs.Sheet(sheetName)
	if err != nil {
		return err
	}

	source, err := excel.OpenWorkbook(infile)
	if err != nil {
		return err
	}
	defer source.Close()

	grid, err := source.Grid(ctx, sheetName)
	if err != nil {
		return err
	}
	res, err := sheet.Process(sr, grid)
	if err != nil {
		return err
	}

	report := profiling.CountMeasured(res, columns)
	color.Yellow("Worksheet %s: %d rows", report.Sheet, report.Rows)
	for _, col := range columns {
		fmt.Printf("%s: %d measured\n", col, report.PerColumn[col])
	}
	color.Green("%d patients with at least one measurement", report.Measured)
	return nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run archive as a JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (PORT or 8080 when empty)")

	return cmd
}

func runServe(ctx context.Context, port string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port == "" {
		port = cfg.Server.Port
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	server := api.NewServer(postgres.NewRunArchive(db), port)
	return server.Start()
}

// openDatabase connects to the archive database, applies the pool settings,
// and brings the schema up to date.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}
