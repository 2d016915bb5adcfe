// Command vfsd formats (on first boot) and mounts a MINIX volume backed
// by an in-memory disk, then serves file operations over the transport
// fabric per §4.6.
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
	"github.com/nanvix/multikernel-sub000/pkg/blkcache"
	"github.com/nanvix/multikernel-sub000/pkg/minixfs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/taskdispatcher"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
	"github.com/nanvix/multikernel-sub000/pkg/vfs"
	"github.com/spf13/cobra"
)

// / memDisk is a RAM-backed blkcache.Disk_i, standing in for the AHCI/NVMe
// / block device a deployed build would format instead.
type memDisk struct {
	blockSize int
	blocks    [][]byte
}

func newMemDisk(nblocks, blockSize int) *memDisk {
	d := &memDisk{blockSize: blockSize, blocks: make([][]byte, nblocks)}
	for i := range d.blocks {
		d.blocks[i] = make([]byte, blockSize)
	}
	return d
}

func (d *memDisk) ReadBlock(blkno int64, buf []byte) error {
	copy(buf, d.blocks[blkno])
	return nil
}

func (d *memDisk) WriteBlock(blkno int64, buf []byte) error {
	copy(d.blocks[blkno], buf)
	return nil
}

func main() {
	var cfgFile string
	var node, port int

	log := logx.New("vfsd")

	root := &cobra.Command{
		Use:   "vfsd",
		Short: "run the nanvix virtual file system server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			fab := transport.NewFabric()
			ns := nameservice.NewClient(nameservice.NewServer())
			self := transport.Endpoint_t{Node: node, Port: port}

			disk := newMemDisk(cfg.NanvixDiskSize, cfg.NanvixFsBlockSize)
			if ferr := minixfs.Mkfs(disk, cfg.NanvixDiskSize, cfg.NanvixNrInodes); ferr.IsErr() {
				return fmt.Errorf("mkfs: %v", ferr)
			}

			fs, ferr := minixfs.Mount(disk, 64, cfg.NanvixNrInodes)
			if ferr.IsErr() {
				return fmt.Errorf("mount: %v", ferr)
			}

			ft := vfs.NewFileTable(cfg.NanvixNrFiles, fs)
			listener := vfs.NewListener(ft, fab, self, "/vfs0", ns)

			log.Printf("serving /vfs0 at %s, %d inodes, %d blocks", self, cfg.NanvixNrInodes, cfg.NanvixDiskSize)

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

			if serr := fs.Unmount(); serr.IsErr() {
				log.Warnf("unmount: %v", serr)
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
