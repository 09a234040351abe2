package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kenzatoreis/hiringbuddy/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the indexing and matching HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApplication()
		if err != nil {
			return err
		}
		defer a.Close()

		idx, err := a.indexer(ctx)
		if err != nil {
			return err
		}
		retriever, err := a.retriever(ctx)
		if err != nil {
			return err
		}
		assessor, err := a.assessor(ctx)
		if err != nil {
			return err
		}

		return server.New(idx, retriever, a.store, assessor, a.logger).ListenAndServe(ctx, a.config.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
