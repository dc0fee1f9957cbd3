package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"checkin/internal/attendance"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatState(s attendance.State, loc *time.Location) string {
	switch s.Kind {
	case attendance.Inside:
		return "inside since " + s.Since.In(loc).Format("15:04")
	case attendance.Outside:
		return "outside"
	}
	return "unknown"
}

func formatClock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("15:04:05")
}

func printPeopleTable(people []attendance.Person) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
	}
	w.Flush()
}

func printSessionsTable(sessions []attendance.DaySession, loc *time.Location) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tNAME\tENTRY\tEXIT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Day, s.Name, formatClock(s.EntryTime, loc), formatClock(s.ExitTime, loc))
	}
	w.Flush()
	fmt.Printf("\n%d session(s)\n", len(sessions))
}

func printRowsTable(rows []attendance.Row, loc *time.Location) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTION\tAT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Action, r.OccurredAt.In(loc).Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Printf("\n%d event(s)\n", len(rows))
}
