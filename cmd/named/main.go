// Command named runs a standalone name directory mapping a symbolic
// server name to a (node, port) endpoint, per §6. It opens no transport
// endpoint: the other daemons each build their own in-process directory
// and do not resolve names through this one.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/spf13/cobra"
)

func main() {
	log := logx.New("named")

	root := &cobra.Command{
		Use:   "named",
		Short: "run the nanvix name service",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := nameservice.NewServer()
			log.Printf("name service ready")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Printf("shutting down, %d entries still registered", len(srv.Names()))
			return nil
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
