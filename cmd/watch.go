package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mxfedl/core/watchfolder"

	"github.com/spf13/cobra"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听输入目录并处理新文件",
	Long:  `Process every media file that appears in the watch folder, without serving HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		dir := a.cfg.WatchfolderInput
		if watchDir != "" {
			dir = watchDir
		}
		w := watchfolder.New(watchfolder.Options{Dir: dir, Extensions: a.cfg.WatchfolderExtensions}, a.manager, a.log)
		err = w.Run(ctx)
		a.manager.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", "", "watch folder (defaults to WATCHFOLDER_INPUT)")
}
