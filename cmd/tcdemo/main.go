// tcdemo exercises the engine end-to-end against a real Docker daemon: it
// starts a Redis container, waits for it to log its "Ready to accept
// connections" banner, runs a PING against it through the exec subsystem,
// prints the mapped port, and tears the container back down.
package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/engine"
	"github.com/corvuslabs/testrig/spec"
	"github.com/corvuslabs/testrig/tcenv"
	"github.com/corvuslabs/testrig/wait"
)

func main() {
	cfg := tcenv.LoadDaemonConfig()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client, err := docker.NewClient(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to docker daemon: %v", err)
	}
	defer client.Close()

	eng := engine.New(client, logger, cfg)

	req := spec.ContainerRequest{
		Image: spec.ImageSpec{
			Name: "redis",
			Tag:  "7-alpine",
			ExposedPorts: []spec.Port{
				{Number: 6379, Protocol: spec.ProtoTCP},
			},
			ReadyConditions: []wait.Strategy{
				wait.StdoutContains("Ready to accept connections"),
			},
		},
		StartupTimeout: 30 * time.Second,
	}

	logger.Info("starting redis container")
	handle, err := eng.Start(ctx, req)
	if err != nil {
		log.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := handle.Close(context.Background()); err != nil {
			logger.Error("failed to close handle", "error", err)
		}
	}()

	hostIP, hostPort, err := handle.MappedPort(ctx, spec.Port{Number: 6379, Protocol: spec.ProtoTCP})
	if err != nil {
		log.Fatalf("failed to resolve mapped port: %v", err)
	}
	logger.Info("redis ready", "container_id", handle.ID(), "address", hostIP+":"+strconv.Itoa(hostPort))

	result, err := handle.Exec(ctx, []string{"redis-cli", "PING"})
	if err != nil {
		log.Fatalf("exec PING failed: %v", err)
	}
	logger.Info("exec PING result", "exit_code", result.ExitCode(), "stdout", result.Stdout())
}
