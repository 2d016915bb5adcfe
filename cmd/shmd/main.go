// Command shmd runs the shared-memory region server of §4.5, backed by
// an RMEM server for its per-region page storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nanvix/multikernel-sub000/internal/config"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/rmem"
	"github.com/nanvix/multikernel-sub000/pkg/shm"
	"github.com/nanvix/multikernel-sub000/pkg/taskdispatcher"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	var node, port int

	log := logx.New("shmd")

	root := &cobra.Command{
		Use:   "shmd",
		Short: "run the nanvix shared memory server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			fab := transport.NewFabric()
			ns := nameservice.NewClient(nameservice.NewServer())
			self := transport.Endpoint_t{Node: node, Port: port}

			pages := rmem.NewServer(0, cfg.RmemNumBlocks)
			srv := shm.NewServer(cfg.ShmMax, pages)
			listener := shm.NewListener(srv, fab, self, "/shm0", ns)

			log.Printf("serving /shm0 at %s with %d region slots", self, cfg.ShmMax)

			disp := taskdispatcher.New()
			disp.Register(taskdispatcher.Task_t{
				Name:     "heartbeat",
				Interval: 5 * time.Second,
				Run: func(ctx context.Context) error {
					ns.Alive(node, time.Now().Unix())
					return nil
				},
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan struct{})
			go func() {
				listener.Serve()
				close(done)
			}()
			go disp.Run(ctx)

			select {
			case <-ctx.Done():
			case <-done:
			}

			log.Printf("shutting down")
			return nil
		},
	}

	root.Flags().StringVar(&cfgFile, "config", "", "path to a config file")
	root.Flags().IntVar(&node, "node", 0, "this server's transport node number")
	root.Flags().IntVar(&port, "port", 1, "this server's mailbox port")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
