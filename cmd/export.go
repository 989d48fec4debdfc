package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"portscan/output"
	"portscan/store"
)

var exportFormat = "csv"
var exportOut string
var exportLatest bool
var exportTarget string
var exportFrom string
var exportTo string
var exportLimit int

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", exportFormat, "Export format: csv, json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVarP(&exportLatest, "latest", "", false, "Only the most recent scan")
	exportCmd.Flags().StringVarP(&exportTarget, "target", "", "", "Only rows whose target contains this text")
	exportCmd.Flags().StringVarP(&exportFrom, "from", "", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&exportTo, "to", "", "", "End date, inclusive (YYYY-MM-DD)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", store.DefaultExportLimit, "Maximum number of rows")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored scan results as CSV or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var rows []store.Row
		if exportLatest {
			rows, err = db.Latest(ctx)
		} else {
			var filter store.Filter
			if filter, err = buildFilter(exportTarget, exportFrom, exportTo, exportLimit); err != nil {
				return err
			}
			rows, err = db.History(ctx, filter)
		}
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return errors.Wrap(err, "create export file")
			}
			defer f.Close()
			w = f
		}
		if err := output.Export(w, exportFormat, output.FromRows(rows)); err != nil {
			return err
		}
		log.Debugf("导出%d行", len(rows))
		return nil
	},
}
