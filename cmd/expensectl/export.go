package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/container"
)

var (
	exportStart     string
	exportEnd       string
	exportEmployees []string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write finance-approved reports to a zip archive",
	Long: `export selects FINANCE_APPROVED reports whose finalized time falls inside
[--start, --end] and writes reports, expenses and receipts tables as CSV files
plus export.xlsx into a zip archive. Dates may be RFC 3339 timestamps or plain YYYY-MM-DD; a plain end
date covers the whole day.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := buildExportFilter(exportStart, exportEnd, exportEmployees)
		if err != nil {
			return err
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return err
		}
		if err := c.Start(cmd.Context()); err != nil {
			return err
		}
		defer c.Close()

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOut, err)
			}
			defer f.Close()
			out = f
		}

		if err := c.Services().Export.Export(cmd.Context(), filter, out); err != nil {
			return err
		}

		logger.Info("Export written",
			zap.String("out", exportOut),
			zap.Time("start", filter.Start),
			zap.Time("end", filter.End))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStart, "start", "", "inclusive lower bound on finalized time")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "inclusive upper bound on finalized time")
	exportCmd.Flags().StringSliceVar(&exportEmployees, "employee", nil, "employee emails to include (repeatable)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	_ = exportCmd.MarkFlagRequired("start")
	_ = exportCmd.MarkFlagRequired("end")
}

func buildExportFilter(start, end string, employees []string) (service.ExportFilter, error) {
	from, _, err := parseBound(start)
	if err != nil {
		return service.ExportFilter{}, fmt.Errorf("invalid --start: %w", err)
	}
	to, dateOnly, err := parseBound(end)
	if err != nil {
		return service.ExportFilter{}, fmt.Errorf("invalid --end: %w", err)
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	var emails []string
	for _, e := range employees {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	return service.ExportFilter{Start: from, End: to, Employees: emails}, nil
}

func parseBound(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", value)
	}
	return t, true, nil
}
