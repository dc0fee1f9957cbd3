package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"checkin/internal/attendance"
	"checkin/internal/client"
)

var (
	configPath string
	serverURL  string
	category   string
	timezone   string
	jsonOutput bool

	cfg        Config
	apiClient  *client.Client
	displayLoc = time.Local
)

var rootCmd = &cobra.Command{
	Use:           "kiosk <command>",
	Short:         "Check-in kiosk and admin client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if cmd.Flags().Changed("server") || cfg.Server == "" {
			cfg.Server = serverURL
		}
		if cmd.Flags().Changed("category") || cfg.Category == "" {
			cfg.Category = category
		}
		if cmd.Flags().Changed("tz") {
			cfg.TZ = timezone
		}
		loc, err := resolveLocation(cfg.TZ)
		if err != nil {
			return err
		}
		displayLoc = loc
		apiClient = client.New(cfg.Server, cfg.Token)
		return nil
	},
}

// currentCategory parses the configured category.
func currentCategory() (attendance.Category, error) {
	return attendance.ParseCategory(cfg.Category)
}

// resolveLocation returns the zone times are printed in. It matches the zone
// the server groups days by when --tz is set.
func resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}
	return loc, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the kiosk config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8081", "API base URL")
	rootCmd.PersistentFlags().StringVarP(&category, "category", "c", "employee", "person category (employee or intern)")
	rootCmd.PersistentFlags().StringVar(&timezone, "tz", "", "IANA time zone for day boundaries (server default when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "kiosk", Title: "Kiosk:"},
		&cobra.Group{ID: "admin", Title: "Admin:"},
	)
	cobra.EnableCommandSorting = false

	// Kiosk
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(peopleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(exitCmd)

	// Admin
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(personCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
