package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/lmstrack/history"
)

var showTitle string

func init() {
	showCmd.Flags().StringVar(&showTitle, "title", "", "Print every snapshot of one course instead of the latest of all.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [--title <course>]",
	Short: "Prints the recorded history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := history.Load(cfg.Store.DataFile, history.Today(time.Now()))
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		if showTitle != "" {
			rec, ok := ds.Get(showTitle)
			if !ok {
				return fmt.Errorf("no course titled %q in %s", showTitle, cfg.Store.DataFile)
			}
			t.SetTitle(rec.Title)
			t.AppendHeader(table.Row{"Date", "Enrollments", "Completed"})
			for _, d := range rec.Dates() {
				t.AppendRow(table.Row{d, countCell(rec.Enrollments, d), countCell(rec.Completed, d)})
			}
		} else {
			records := ds.Records()
			sort.SliceStable(records, func(i, j int) bool { return records[i].Title < records[j].Title })

			t.AppendHeader(table.Row{"Title", "Type", "Latest", "Enrollments", "Completed", "Snapshots"})
			for _, r := range records {
				date, enr, comp, ok := r.Latest()
				if !ok {
					t.AppendRow(table.Row{r.Title, r.Type, "-", "-", "-", 0})
					continue
				}
				t.AppendRow(table.Row{r.Title, r.Type, date, enr, comp, len(r.Dates())})
			}
			t.AppendFooter(table.Row{"", "", "", "", "Courses", ds.Len()})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func countCell(m map[string]int, date string) any {
	if v, ok := m[date]; ok {
		return v
	}
	return "-"
}
