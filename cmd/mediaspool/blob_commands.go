package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBlobCommand(ctx *commandContext) *cobra.Command {
	blobCmd := &cobra.Command{
		Use:   "blob",
		Short: "Inspect and manage stored blobs",
	}

	blobCmd.AddCommand(newBlobListCommand(ctx))
	blobCmd.AddCommand(newBlobExportCommand(ctx))
	blobCmd.AddCommand(newBlobRemoveCommand(ctx))

	return blobCmd
}

func newBlobListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored blobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				descriptors, err := eng.blobs.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(descriptors) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No blobs stored.")
					return nil
				}

				rows := make([][]string, 0, len(descriptors))
				for _, desc := range descriptors {
					rows = append(rows, []string{
						desc.Ref,
						desc.Name,
						desc.MimeType,
						formatBytes(uint64(desc.Size)),
						desc.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Reference", "Name", "Type", "Size", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newBlobExportCommand(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <blob-ref>",
		Short: "Write a blob to disk and print its file URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				fileURL, path, err := eng.blobs.ExportFileURL(cmd.Context(), args[0], dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", fileURL, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to export into (defaults to the system temp directory)")
	return cmd
}

func newBlobRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <blob-ref>",
		Short: "Delete a stored blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				if err := eng.blobs.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Blob %s removed.\n", args[0])
				return nil
			})
		},
	}
}
