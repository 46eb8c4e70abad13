package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/inbox"
	"github.com/idelchi/meshmark/internal/transfer"
)

// RunServe runs the transfer server on cfg.Listen until ctx is canceled.
func RunServe(ctx context.Context, cfg *config.Config) error {
	store, err := inbox.New(cfg.Inbox)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", cfg.Listen, err)
	}

	var opts []grpc.ServerOption
	if cfg.MaxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxMsgBytes), grpc.MaxSendMsgSize(cfg.MaxMsgBytes))
	}

	srv := grpc.NewServer(opts...)
	transfer.RegisterTransferServer(srv, &transfer.Server{Store: store, Logger: slog.Default()})

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	slog.Info("serving", slog.String("addr", lis.Addr().String()), slog.String("inbox", cfg.Inbox))

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}

func dial(cfg *config.Config) (*transfer.Client, error) {
	client, err := transfer.Dial(cfg.Target, transfer.DialOptions{MaxMsgBytes: cfg.MaxMsgBytes})
	if err != nil {
		return nil, err
	}

	client.Timeout = cfg.Timeout

	return client, nil
}

// RunSend uploads every resolved file and prints its content id.
func RunSend(ctx context.Context, cfg *config.Config) error {
	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return runBatch(ctx, cfg, "sending", func(ctx context.Context, file string) result {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return result{err: fmt.Errorf("reading %q: %w", file, err)}
		}

		id, err := client.Send(ctx, filepath.Base(file), data)
		if err != nil {
			return result{err: err}
		}

		if cfg.Quiet {
			fmt.Println(id) //nolint:forbidigo
		}

		return result{note: id, outputSize: int64(len(data))}
	})
}

// RunFetch downloads every content id in cfg.Files into cfg.Inbox under the
// name it was sent with.
func RunFetch(ctx context.Context, cfg *config.Config) error {
	client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := os.MkdirAll(cfg.Inbox, 0o755); err != nil {
		return fmt.Errorf("creating %q: %w", cfg.Inbox, err)
	}

	var failed error

	for _, id := range cfg.Files {
		name, data, err := client.Receive(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching %s: %v\n", id, err)

			failed = errors.Join(failed, err)

			continue
		}

		// The sender controls the name; keep only its last element.
		base := filepath.Base(filepath.Clean("/" + name))
		if base == "/" || base == "." {
			base = id
		}

		out := filepath.Join(cfg.Inbox, base)
		if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // meshes are not secret
			failed = errors.Join(failed, fmt.Errorf("writing %q: %w", out, err))

			continue
		}

		if !cfg.Quiet {
			fmt.Printf("Fetched %s -> %q\n", id, out) //nolint:forbidigo
		}
	}

	if failed != nil {
		return fmt.Errorf("fetching: %w", failed)
	}

	return nil
}
