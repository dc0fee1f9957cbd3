package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"checkin/internal/attendance"
	"checkin/internal/client"
	"checkin/internal/kiosk"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run the interactive kiosk",
	GroupID: "kiosk",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		s := newSession(cmd.Context(), apiClient, cat, cmd.OutOrStdout())
		return s.loop(cmd.InOrStdin())
	},
}

// session drives one kiosk page from line-based input.
type session struct {
	ctx    context.Context
	api    *client.Client
	page   *kiosk.Page
	out    io.Writer
	tz     string
	loc    *time.Location
	events chan string
}

func newSession(ctx context.Context, api *client.Client, cat attendance.Category, out io.Writer) *session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &session{
		ctx:    ctx,
		api:    api,
		page:   kiosk.NewPage(cat),
		out:    out,
		tz:     cfg.TZ,
		loc:    displayLoc,
		events: make(chan string, 8),
	}
}

// notify wakes the loop to re-render. It gives up once the session ends.
func (s *session) notify(note string) {
	select {
	case s.events <- note:
	case <-s.ctx.Done():
	}
}

func (s *session) loop(in io.Reader) error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.ctx = ctx

	s.load()
	s.render()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case note := <-s.events:
			if note != "" {
				fmt.Fprintln(s.out, note)
			}
			s.render()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(strings.Fields(line)); quit {
				return nil
			}
			s.render()
		}
	}
}

func (s *session) handle(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "q", "quit":
		return true
	case "r", "reload":
		s.load()
	case "s", "select":
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		s.selectPerson(arg)
	case "in", "entry":
		s.submit(attendance.ActionEntry)
	case "out", "exit":
		s.submit(attendance.ActionExit)
	default:
		fmt.Fprintln(s.out, "commands: select <n|id>, entry, exit, reload, quit")
	}
	return false
}

func (s *session) load() {
	if err := s.page.BeginLoad(); err != nil {
		return
	}
	people, err := s.api.People(s.ctx, s.page.Snapshot().Category)
	_ = s.page.Loaded(people, err)
}

// selectPerson accepts a list number or a person id and starts a status
// lookup in the background.
func (s *session) selectPerson(arg string) {
	snap := s.page.Snapshot()
	id := arg
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(snap.People) {
		id = snap.People[n-1].ID
	}
	token, err := s.page.Select(id)
	if err != nil || id == "" {
		return
	}
	ctx := s.ctx
	go func() {
		state, err := s.api.Status(ctx, snap.Category, id, s.tz)
		if s.page.ApplyStatus(token, state, err) {
			s.notify("")
		}
	}()
}

func (s *session) submit(action attendance.Action) {
	personID, err := s.page.BeginSubmit(action)
	if err != nil {
		if !errors.Is(err, attendance.ErrEmptySelection) {
			fmt.Fprintln(s.out, kiosk.Message(err))
		}
		return
	}
	_, conf, err := s.api.Record(s.ctx, s.page.Snapshot().Category, personID, action)
	tok, _ := s.page.SubmitDone(conf, err)
	if err != nil {
		return
	}
	time.AfterFunc(conf.ReturnAfter, func() {
		if s.page.Dismiss(tok) {
			s.notify("returning to " + conf.ReturnTo)
		}
	})
}

func (s *session) render() {
	snap := s.page.Snapshot()
	w := s.out
	if snap.Confirmation != nil {
		fmt.Fprintf(w, "\n== %s recorded (%s) ==\n", snap.Confirmation.Action, snap.Confirmation.Path)
		return
	}
	fmt.Fprintf(w, "\n[%s] %s\n", snap.Category, snap.Phase)
	for i, p := range snap.People {
		marker := " "
		if p.ID == snap.Selected {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %2d. %s\n", marker, i+1, p.Name)
	}
	if snap.Selected != "" {
		fmt.Fprintf(w, "status: %s\n", formatState(snap.Status, s.loc))
	}
	if snap.Message != "" {
		fmt.Fprintf(w, "! %s\n", snap.Message)
	}
	fmt.Fprint(w, "> ")
}
