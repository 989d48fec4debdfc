package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"portscan/output"
	"portscan/store"
)

const dateLayout = "2006-01-02"

var historyTarget string
var historyFrom string
var historyTo string
var historyLimit int
var deleteID int64
var purge bool

func init() {
	historyCmd.Flags().StringVarP(&historyTarget, "target", "", "", "Only rows whose target contains this text")
	historyCmd.Flags().StringVarP(&historyFrom, "from", "", "", "Start date (YYYY-MM-DD)")
	historyCmd.Flags().StringVarP(&historyTo, "to", "", "", "End date, inclusive (YYYY-MM-DD)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", store.DefaultHistoryLimit, "Maximum number of rows")
	historyCmd.Flags().Int64VarP(&deleteID, "delete", "", 0, "Delete the row with this id")
	historyCmd.Flags().BoolVarP(&purge, "purge", "", false, "Delete all stored rows")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scan results, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		out := cmd.OutOrStdout()
		switch {
		case purge:
			n, err := db.DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted %d rows\n", n)
			return nil
		case deleteID > 0:
			if err := db.Delete(ctx, deleteID); err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted row %d\n", deleteID)
			return nil
		}

		filter, err := buildFilter(historyTarget, historyFrom, historyTo, historyLimit)
		if err != nil {
			return err
		}
		rows, err := db.History(ctx, filter)
		if err != nil {
			return err
		}
		output.NewPrinter(out).History(rows)
		return nil
	},
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path)
}

func buildFilter(target, from, to string, limit int) (store.Filter, error) {
	f := store.Filter{Target: target, Limit: limit}
	var err error
	if f.From, err = parseDate(from); err != nil {
		return f, err
	}
	if f.To, err = parseDate(to); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errors.Errorf("--to %s is before --from %s", to, from)
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
