package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"checkin/internal/attendance"
	"checkin/internal/client"
)

var loginCmd = &cobra.Command{
	Use:     "login <email>",
	Short:   "Sign in as admin and store the token",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}
		res, err := apiClient.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		cfg.Token = res.AccessToken
		if err := saveConfig(configPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Signed in as %s\n", res.Email)
		return nil
	},
}

func readPassword() (string, error) {
	if p := os.Getenv("CHECKIN_ADMIN_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line), err
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the stored admin token",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = ""
		return saveConfig(configPath, cfg)
	},
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Show the admin session",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := apiClient.Session(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sess)
		}
		if !sess.Active {
			fmt.Println("not signed in")
			return nil
		}
		fmt.Printf("signed in as %s\n", sess.Email)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:     "logs",
	Short:   "Show recorded attendance",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		viewFlag, _ := cmd.Flags().GetString("view")
		name, _ := cmd.Flags().GetString("name")
		actionFlag, _ := cmd.Flags().GetString("action")

		view, err := attendance.ParseView(viewFlag)
		if err != nil {
			return err
		}
		action, err := attendance.ParseActionFilter(actionFlag)
		if err != nil {
			return err
		}
		log, err := apiClient.Logs(cmd.Context(), cat, client.LogQuery{View: view, Name: name, Action: action, TZ: cfg.TZ})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(log)
		}
		if log.View == attendance.ViewRows {
			printRowsTable(log.Rows, displayLoc)
		} else {
			printSessionsTable(log.Sessions, displayLoc)
		}
		return nil
	},
}

var personCmd = &cobra.Command{
	Use:     "person",
	Short:   "Manage the person directory",
	GroupID: "admin",
}

var personAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a person",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		p, err := apiClient.AddPerson(cmd.Context(), cat, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(p)
		}
		fmt.Printf("Added %s (%s)\n", p.Name, p.ID)
		return nil
	},
}

var personDeactivateCmd = &cobra.Command{
	Use:   "deactivate <person-id>",
	Short: "Hide a person from the kiosk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		if err := apiClient.DeactivatePerson(cmd.Context(), cat, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deactivated %s\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Upload the session view to object storage",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := currentCategory()
		if err != nil {
			return err
		}
		key, err := apiClient.Export(cmd.Context(), cat, cfg.TZ)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	logsCmd.Flags().String("view", "sessions", "sessions or rows")
	logsCmd.Flags().StringP("name", "n", "", "filter by name (case-insensitive substring)")
	logsCmd.Flags().StringP("action", "a", "all", "all, entry or exit")

	personCmd.AddCommand(personAddCmd)
	personCmd.AddCommand(personDeactivateCmd)
}
