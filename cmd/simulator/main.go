// cmd/simulator/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"dive-service/internal/config"
	"dive-service/internal/driver/stream"
	"dive-service/internal/protocol"
	"dive-service/internal/utils"
)

// Simulator serves a synthetic dive computer on a TCP port. Connect the
// service to it with the address tcp://host:port.
func main() {
	flags := pflag.NewFlagSet("simulator", pflag.ExitOnError)
	flags.String("listen", "127.0.0.1:4001", "address to listen on")
	flags.Int("dives", 10, "number of stored dives")
	flags.Int("fail-after", 0, "send an error frame instead of this dive index (0 disables)")
	flags.String("log-level", "info", "log level")
	flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("DIVE_SIMULATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		fmt.Printf("Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(&config.LoggingConfig{
		Level:  v.GetString("log-level"),
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.CloseLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	first := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -v.GetInt("dives"))
	inst := stream.SyntheticInstrument(v.GetInt("dives"), first)
	inst.FailAfter = v.GetInt("fail-after")

	if err := run(ctx, v.GetString("listen"), inst, logger); err != nil {
		logger.Fatal("Simulator stopped", zap.Error(err))
	}
	logger.Info("Simulator stopped")
}

func run(ctx context.Context, address string, inst stream.Instrument, logger *zap.Logger) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	context.AfterFunc(ctx, func() { listener.Close() })

	logger.Info("Simulator listening",
		zap.String("address", listener.Addr().String()),
		zap.Int("dives", len(inst.Dives)),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go serve(ctx, conn, inst, logger)
	}
}

func serve(ctx context.Context, conn net.Conn, inst stream.Instrument, logger *zap.Logger) {
	ch := protocol.NewConnChannel(conn, conn.RemoteAddr().String())
	defer ch.Close()

	logger.Info("Host connected", zap.String("peer", ch.Address()))
	err := stream.Serve(ctx, ch, inst, logger)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("Host disconnected", zap.String("peer", ch.Address()))
	default:
		logger.Warn("Session ended with error", zap.String("peer", ch.Address()), zap.Error(err))
	}
}
