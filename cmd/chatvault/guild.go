package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatvault/internal/app"
	"chatvault/internal/archive"
)

const (
	listLimit   = 25
	searchLimit = 20
)

// guild command
var guildCmd = &cobra.Command{
	Use:   "guild",
	Short: "Manage a guild's archive settings",
}

var guildShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a guild's settings, or every guild when --guild is not set",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("guild")

		a, err := newApp(cmd, "ShowGuild")
		if err != nil {
			return err
		}
		defer a.Close()

		if id > 0 {
			printGuild(a.Guild(id))
			return nil
		}
		guilds := a.Guilds()
		if len(guilds) == 0 {
			fmt.Println("No guilds configured.")
			return nil
		}
		for i, g := range guilds {
			if i > 0 {
				fmt.Println()
			}
			printGuild(g)
		}
		return nil
	},
}

var guildSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a guild's settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}
		u, err := updateFromFlags(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "UpdateGuild")
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := a.UpdateGuild(cmd.Context(), id, u)
		if err != nil {
			return err
		}
		printGuild(cfg)
		return nil
	},
}

// updateFromFlags builds a ConfigUpdate from the flags the user set.
func updateFromFlags(cmd *cobra.Command) (archive.ConfigUpdate, error) {
	var u archive.ConfigUpdate
	flags := cmd.Flags()

	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		mode := archive.ExportMode(v)
		u.ExportMode = &mode
	}
	if flags.Changed("custom-days") {
		v, _ := flags.GetInt("custom-days")
		if v < 1 {
			return u, fmt.Errorf("--custom-days must be at least 1")
		}
		u.CustomPeriodDays = &v
	}
	if flags.Changed("timezone") {
		v, _ := flags.GetString("timezone")
		u.Timezone = &v
	}
	if flags.Changed("vault-path") {
		v, _ := flags.GetString("vault-path")
		u.VaultPath = &v
	}
	if flags.Changed("template") {
		v, _ := flags.GetString("template")
		u.FilenameTemplate = &v
	}
	if flags.Changed("include") {
		v, _ := flags.GetString("include")
		ids := app.ParseChannelIDs(v)
		u.IncludeChannels = &ids
	}
	if flags.Changed("exclude") {
		v, _ := flags.GetString("exclude")
		ids := app.ParseChannelIDs(v)
		u.ExcludeChannels = &ids
	}
	if flags.Changed("role") {
		v, _ := flags.GetString("role")
		var role *int64
		if !strings.EqualFold(v, "none") {
			id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(v, "<@&"), ">"), 10, 64)
			if err != nil {
				return u, fmt.Errorf("invalid role %q", v)
			}
			role = &id
		}
		u.AdminRoleID = &role
	}
	return u, nil
}

func printGuild(cfg archive.GuildConfig) {
	role := "none"
	if cfg.AdminRoleID != nil {
		role = strconv.FormatInt(*cfg.AdminRoleID, 10)
	}
	fmt.Printf("Guild:        %d\n", cfg.GuildID)
	fmt.Printf("Vault Path:   %s\n", cfg.VaultPath)
	fmt.Printf("Export Mode:  %s\n", cfg.ExportMode)
	if cfg.ExportMode == archive.ModeCustom {
		fmt.Printf("Custom Days:  %d\n", cfg.CustomPeriodDays)
	}
	if cfg.ExportMode == archive.ModeTemplate {
		fmt.Printf("Template:     %s\n", cfg.FilenameTemplate)
	}
	fmt.Printf("Timezone:     %s\n", cfg.Timezone)
	fmt.Printf("Include:      %s\n", formatIDs(cfg.IncludeChannels))
	fmt.Printf("Exclude:      %s\n", formatIDs(cfg.ExcludeChannels))
	fmt.Printf("Admin Role:   %s\n", role)
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "all"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<#" + strconv.FormatInt(id, 10) + ">"
	}
	return strings.Join(parts, " ")
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete a guild's archive files",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}
		channel, _ := cmd.Flags().GetString("channel")

		a, err := newApp(cmd, "Purge")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Purge(cmd.Context(), id, channel)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d files.\n", n)
		return nil
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove the vault's cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "ClearCache")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearCache(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a guild's archive size",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status(id)
		if err != nil {
			return err
		}
		fmt.Printf("Vault: %s\n", st.VaultPath)
		fmt.Printf("Files: %d\n", st.Files)
		fmt.Printf("Size:  %.1f KiB\n", float64(st.Bytes)/1024)
		return nil
	},
}

var testExportCmd = &cobra.Command{
	Use:   "test-export CHANNEL",
	Short: "Write a test entry to a channel's archive file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "TestExport")
		if err != nil {
			return err
		}
		defer a.Close()

		rel, err := a.TestExport(cmd.Context(), id, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Test entry written to %s\n", rel)
		return nil
	},
}

// printList prints at most limit paths, then how many were left out.
func printList(paths []string, limit int) {
	for i, p := range paths {
		if i == limit {
			fmt.Printf("... and %d more\n", len(paths)-limit)
			return
		}
		fmt.Println(p)
	}
}

func addGuildCommands() {
	guildCmd.AddCommand(guildShowCmd)
	guildCmd.AddCommand(guildSetCmd)
	f := guildSetCmd.Flags()
	f.String("mode", "", "Export mode: single, daily, monthly, custom or template")
	f.Int("custom-days", archive.DefaultCustomPeriodDays, "Days per file in custom mode")
	f.String("timezone", "", "IANA timezone for file dates, e.g. Europe/Berlin")
	f.String("vault-path", "", "Vault directory under the guild's archive folder")
	f.String("template", "", "File name template with {channel} {year} {month} {day}")
	f.String("include", "", "Only archive these channels (IDs or mentions); empty for all")
	f.String("exclude", "", "Never archive these channels (IDs or mentions)")
	f.String("role", "", "Admin role ID, or \"none\" to clear")

	rootCmd.AddCommand(guildCmd)
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().String("channel", "", "Only delete this channel's files")
	rootCmd.AddCommand(clearCacheCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testExportCmd)
}
