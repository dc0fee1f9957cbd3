package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"checkin/internal/attendance"
)

var peopleCmd = &cobra.Command{
	Use:     "people",
	Short:   "List active people",
	GroupID: "kiosk",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		people, err := apiClient.People(cmd.Context(), cat)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(people)
		}
		printPeopleTable(people)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status <person-id>",
	Short:   "Show whether a person is inside",
	GroupID: "kiosk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		state, err := apiClient.Status(cmd.Context(), cat, args[0], cfg.TZ)
		if jsonOutput {
			if perr := printJSON(state); perr != nil {
				return perr
			}
			return err
		}
		// A failed lookup still prints "unknown" so it is never read as outside.
		fmt.Println(formatState(state, displayLoc))
		return err
	},
}

var entryCmd = &cobra.Command{
	Use:     "entry <person-id>",
	Short:   "Record an entry",
	GroupID: "kiosk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return record(cmd.Context(), args[0], attendance.ActionEntry)
	},
}

var exitCmd = &cobra.Command{
	Use:     "exit <person-id>",
	Short:   "Record an exit",
	GroupID: "kiosk",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return record(cmd.Context(), args[0], attendance.ActionExit)
	},
}

func record(ctx context.Context, personID string, action attendance.Action) error {
	cat, err := currentCategory()
	if err != nil {
		return err
	}
	evt, conf, err := apiClient.Record(ctx, cat, personID, action)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{"event": evt, "confirmation": conf})
	}
	fmt.Printf("Recorded %s for %s at %s\n", evt.Action, displayName(evt), evt.OccurredAt.In(displayLoc).Format("15:04:05"))
	fmt.Printf("-> %s (back to %s in %s)\n", conf.Path, conf.ReturnTo, conf.ReturnAfter)
	return nil
}

func displayName(evt attendance.Event) string {
	if evt.PersonName != "" {
		return evt.PersonName
	}
	return evt.PersonID
}
