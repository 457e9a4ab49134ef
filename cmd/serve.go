package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-intelligence/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := build(cmd.Context(), o.conf)
			if err != nil {
				return err
			}
			defer d.close()

			srv := server.New(d.store, d.pipeline, d.engine, d.asst, o.conf.Retrieval)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				logrus.Info("shutting down")
				if err := srv.Shutdown(); err != nil {
					logrus.WithError(err).Warn("shutdown")
				}
			}()
			return srv.Listen(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
