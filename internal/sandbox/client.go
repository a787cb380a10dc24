package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/client"
)

// Client wraps the Docker SDK client. It is safe for concurrent use by
// multiple submission pipelines; every resource it touches is namespaced
// by submission id, so no in-process locking is needed.
type Client struct {
	cli *client.Client
	log *slog.Logger
}

// NewClient initializes and pings the Docker daemon. An unreachable
// daemon is a startup error, not a per-submission one: the service should
// not come up in a state where every submission would fail.
func NewClient(ctx context.Context, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to docker daemon: %w", err)
	}

	log.Info("docker client initialized")
	return &Client{cli: cli, log: log}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}
