package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mxfedl/core/auth"
	"mxfedl/core/watchfolder"
	"mxfedl/logger"
	"mxfedl/metrics"
	"mxfedl/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与后台任务",
	Long:  `Start the HTTP API, the background job manager and, when enabled, the watch folder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		m := metrics.New()
		a.manager.SetObserver(m)

		opts := server.Options{Events: a.events, Metrics: m.Handler()}
		if a.cfg.AuthEnabled() {
			opts.Auth = auth.NewAuthenticator(a.cfg.AuthJWTSecret, a.cfg.AuthUser, a.cfg.AuthPasswordHash, a.cfg.AuthTokenTTL)
		}
		handler := server.NewAPIHandler(a.db, a.manager, a.uploads(), opts, a.log)

		watchDone := make(chan struct{})
		if a.cfg.WatchfolderEnabled {
			w := watchfolder.New(watchfolder.Options{
				Dir:        a.cfg.WatchfolderInput,
				Extensions: a.cfg.WatchfolderExtensions,
			}, a.manager, a.log)
			go func() {
				defer close(watchDone)
				if err := w.Run(ctx); err != nil {
					a.log.Error("watch folder stopped", logger.ErrorField(err))
				}
			}()
		} else {
			close(watchDone)
		}

		err = server.Serve(ctx, a.cfg.HTTPAddr, server.NewRouter(handler), a.log)
		stop()
		<-watchDone

		a.log.Info("waiting for running jobs")
		a.manager.Wait()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
