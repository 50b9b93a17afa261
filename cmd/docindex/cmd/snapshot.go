package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/store"
)

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the store as a single JSON document",
		Long: `A snapshot holds both store files base64-encoded in one JSON object,
suitable for backups or copying a store between machines.`,
	}
	cmd.AddCommand(newSnapshotExportCmd(root))
	cmd.AddCommand(newSnapshotImportCmd(root))
	return cmd
}

func newSnapshotExportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file|->",
		Short: "Write a snapshot to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := root.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			snap, err := engine.ExportSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return docerrors.InternalError("failed to encode snapshot", err)
			}
			data = append(data, '\n')

			if args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return docerrors.IOError("failed to write snapshot", err).WithDetail("path", args[0])
			}
			output.New(cmd.OutOrStdout()).Successf("Snapshot written to %s", args[0])
			return nil
		},
	}
}

func newSnapshotImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the store with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var snap store.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return docerrors.New(docerrors.ErrCodeInvalidSnapshot, "snapshot is not valid JSON", err)
			}

			engine, _, err := root.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			if err := engine.ImportSnapshot(cmd.Context(), snap); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Snapshot imported (%d records)", engine.Stats(cmd.Context()).Store.Records)
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, docerrors.IOError("failed to read stdin", err)
		}
		return data, nil
	}
	if !exists(path) {
		return nil, docerrors.IOError("snapshot file not found", nil).WithDetail("path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, docerrors.IOError("failed to read snapshot", err).WithDetail("path", path)
	}
	return data, nil
}
