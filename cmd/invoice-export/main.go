package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qb-bastiaan/invoice-processor-app/internal/export"
)

func main() {
	var (
		dir = flag.String("dir", "output-data", "directory holding extracted invoice JSON files")
		out = flag.String("out", "", "output XLSX path (defaults to <dir>/../invoices.xlsx)")
	)
	flag.Parse()

	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	svc := export.NewService(*dir, logger)
	workbook, err := svc.ExportInvoicesXLSX()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, workbook, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *out, len(workbook))
}
