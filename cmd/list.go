package cmd

import (
	"context"
	"fmt"
	"strconv"

	"mxfedl/config"
	"mxfedl/db"
	"mxfedl/repository"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出最近的媒体文件及其状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		gdb, err := db.ConnectGorm(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		ctx := context.Background()
		files, err := repository.NewStore(gdb.WithContext(ctx)).Media.List(ctx, listLimit, 0)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(files))
		for _, m := range files {
			edlID := "-"
			if m.EDLID != nil {
				edlID = strconv.FormatUint(uint64(*m.EDLID), 10)
			}
			rows = append(rows, []string{
				strconv.FormatUint(uint64(m.ID), 10),
				m.FileName,
				string(m.Status),
				edlID,
				m.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "FILE", "STATUS", "EDL", "UPDATED"}, rows, 0, 3))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "最多显示的条数")
}
