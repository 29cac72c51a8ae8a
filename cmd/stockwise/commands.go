package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/stockwise/backup"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema and indexes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Start migrates.
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", cfg.Store)
		return nil
	},
}

var (
	backupOut   string
	backupReset bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export every collection to a spreadsheet",
	Long: `Export items, order history, requirements and use history to an xlsx
workbook. With --reset the records are deleted and every item ledger is
cleared once the export has been written.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		out := backupOut
		if out == "" {
			out = backup.FileName(time.Now())
		}
		var w io.Writer = cmd.OutOrStdout()
		if out != "-" {
			if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		run := a.tracker.Backup
		if backupReset {
			run = a.tracker.BackupAndReset
		}
		rep, err := run(cmd.Context(), w)
		if err != nil {
			return err
		}
		if out != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, rep.Size)
		}
		if rep.Reset != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "reset %d receipts, %d usages, %d requirements, %d item ledgers\n",
				rep.Reset.Receipts, rep.Reset.Usages, rep.Reset.Requirements, rep.Reset.Items)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit item ledgers against order and use history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		findings, err := a.tracker.CheckIntegrity(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(findings); err != nil {
			return err
		}
		if len(findings) > 0 {
			return fmt.Errorf("%d integrity findings", len(findings))
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", `output path, "-" for stdout (default stockwise_backup_<time>.xlsx)`)
	backupCmd.Flags().BoolVar(&backupReset, "reset", false, "delete records and clear ledgers after exporting")
}
