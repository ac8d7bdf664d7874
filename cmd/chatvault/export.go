package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatvault/internal/app"
)

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "List, search and bundle archive files",
}

var exportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a guild's archive files",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "ListFiles")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.ListFiles(id)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No archive files.")
			return nil
		}
		printList(files, listLimit)
		return nil
	},
}

var exportFindCmd = &cobra.Command{
	Use:   "find KEYWORD",
	Short: "List files containing a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := guildID(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "Search")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Search(cmd.Context(), id, args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Printf("No files contain %q.\n", args[0])
			return nil
		}
		printList(files, searchLimit)
		return nil
	},
}

var exportAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Bundle every archive file of a guild",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, app.ExportRequest{Scope: app.ScopeAll})
	},
}

var exportChannelCmd = &cobra.Command{
	Use:   "channel NAME",
	Short: "Bundle one channel's archive files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, app.ExportRequest{Scope: app.ScopeChannel, Channel: args[0]})
	},
}

var exportSearchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Bundle the files containing a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, app.ExportRequest{Scope: app.ScopeSearch, Keyword: args[0]})
	},
}

// runExport fills req from the shared export flags and runs it. With --out
// the bundle is written to that file ("-" for stdout); otherwise it goes to
// the configured sink.
func runExport(cmd *cobra.Command, req app.ExportRequest) error {
	id, err := guildID(cmd)
	if err != nil {
		return err
	}
	req.Date, _ = cmd.Flags().GetString("date")
	req.Patterns, _ = cmd.Flags().GetStringSlice("pattern")
	req.Encrypt, _ = cmd.Flags().GetBool("encrypt")
	out, _ := cmd.Flags().GetString("out")

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	req.Out = w

	a, err := newApp(cmd, "Export")
	if err != nil {
		closeOut()
		return err
	}
	defer a.Close()

	res, err := a.Export(cmd.Context(), id, req)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		if out != "" && out != "-" {
			os.Remove(out)
		}
		return err
	}

	location := res.Location
	if location == "" {
		location = out
	}
	fmt.Fprintf(os.Stderr, "Exported %d files (%d bytes) as %s to %s\n", res.Files, res.Bytes, res.Name, location)
	return nil
}

// openOutput opens the --out target. An empty path means no writer.
func openOutput(path string) (io.Writer, func() error, error) {
	switch path {
	case "":
		return nil, func() error { return nil }, nil
	case "-":
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, nil, errors.New("refusing to write a bundle to a terminal; redirect stdout or use --out FILE")
		}
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

var exportOpenCmd = &cobra.Command{
	Use:   "open BUNDLE",
	Short: "Decrypt an encrypted bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return errors.New("--out is required")
		}

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening bundle: %w", err)
		}
		defer in.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		w, closeOut, err := openOutput(out)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "OpenBundle")
		if err != nil {
			closeOut()
			return err
		}
		defer a.Close()

		err = a.OpenBundle(pass, in, w)
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		if err != nil {
			if out != "-" {
				os.Remove(out)
			}
			return fmt.Errorf("decrypting bundle: %w", err)
		}
		return nil
	},
}

func addExportCommands() {
	exportCmd.AddCommand(exportListCmd)
	exportCmd.AddCommand(exportFindCmd)
	for _, c := range []*cobra.Command{exportAllCmd, exportChannelCmd, exportSearchCmd} {
		c.Flags().String("date", "", "Only include files whose name contains this text, e.g. 2024-01")
		c.Flags().StringSlice("pattern", nil, "Only include files matching this glob (repeatable)")
		c.Flags().Bool("encrypt", false, "Encrypt the bundle with the configured key")
		c.Flags().StringP("out", "o", "", "Write the bundle to this file (\"-\" for stdout) instead of the sink")
		exportCmd.AddCommand(c)
	}
	exportCmd.AddCommand(exportOpenCmd)
	exportOpenCmd.Flags().StringP("out", "o", "", "Write the decrypted zip to this file (\"-\" for stdout)")

	rootCmd.AddCommand(exportCmd)
}
