// Command rmemd runs one RMEM block server identity (§4.3). In this
// reference build it owns its own in-memory transport fabric and name
// directory: the real mailbox/portal driver and a shared cluster-wide
// name service are external collaborators (§6) this binary would be
// pointed at in a genuine multi-process deployment.
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
	"github.com/nanvix/multikernel-sub000/pkg/taskdispatcher"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	var serverID, node, port int

	log := logx.New("rmemd")

	root := &cobra.Command{
		Use:   "rmemd",
		Short: "run a nanvix remote memory server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			fab := transport.NewFabric()
			ns := nameservice.NewClient(nameservice.NewServer())
			self := transport.Endpoint_t{Node: node, Port: port}

			srv := rmem.NewServer(serverID, cfg.RmemNumBlocks)
			name := fmt.Sprintf("/rmem%d", serverID)
			listener := rmem.NewListener(srv, fab, self, name, ns)

			log.Printf("serving %s at %s with %d blocks", name, self, cfg.RmemNumBlocks)

			disp := taskdispatcher.New()
			disp.Register(heartbeatTask(ns, node))

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

			st := srv.Stats()
			log.Printf("stopping: allocs=%d frees=%d reads=%d writes=%d", st.Allocs, st.Frees, st.Reads, st.Writes)
			return nil
		},
	}

	root.Flags().StringVar(&cfgFile, "config", "", "path to a config file")
	root.Flags().IntVar(&serverID, "server-id", 0, "this server's identity, the high half of every page handle it issues")
	root.Flags().IntVar(&node, "node", 0, "this server's transport node number")
	root.Flags().IntVar(&port, "port", 1, "this server's mailbox port")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func heartbeatTask(ns *nameservice.Client_t, node int) taskdispatcher.Task_t {
	return taskdispatcher.Task_t{
		Name:     "heartbeat",
		Interval: 5 * time.Second,
		Run: func(ctx context.Context) error {
			ns.Alive(node, time.Now().Unix())
			return nil
		},
	}
}
