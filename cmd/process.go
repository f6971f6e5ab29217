package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mxfedl/model"
	"mxfedl/repository"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "处理单个文件并输出 EDL",
	Long:  `Run one media file through the pipeline, wait for it and print the resulting EDL.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}

		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		media, err := a.manager.Submit(ctx, filepath.Base(path), path)
		if err != nil {
			return err
		}
		a.manager.Wait()

		store := repository.NewStore(a.db.WithContext(ctx))
		id := media.ID
		media, err = store.Media.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if media == nil {
			return fmt.Errorf("media file %d disappeared", id)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "media %d: %s\n", media.ID, media.Status)
		if media.Status != model.MediaStatusProcessed || media.EDLID == nil {
			return fmt.Errorf("processing ended with status %s", media.Status)
		}

		doc, err := store.EDL.GetByID(ctx, *media.EDLID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("EDL %d not found", *media.EDLID)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "EDL %s: %s, %d events\n", doc.Name, doc.ValidationStatus, doc.TotalEvents)
		fmt.Fprintln(cmd.OutOrStdout(), doc.Blob)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
