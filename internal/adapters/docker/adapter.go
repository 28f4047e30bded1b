package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/craftbay/craftbay/internal/core/domain"
	"github.com/craftbay/craftbay/internal/core/ports"
)

// gamePort is the port the server process listens on inside the container;
// the allocated host port is published onto it.
const gamePort nat.Port = "25565/tcp"

// stopTimeout is how long the engine lets the server shut down gracefully
// before killing it. World saves on shutdown can take a while.
const stopTimeout = 30 * time.Second

// Adapter implements ports.ContainerRuntime using the Docker SDK.
type Adapter struct {
	cli *client.Client
}

// NewAdapter creates a Docker-backed runtime adapter from the environment
// (DOCKER_HOST et al.), negotiating the API version with the daemon.
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// Run pulls the image if needed, then creates and immediately starts a
// named container with the host port published to the game port, the
// environment injected and the labels attached.
func (a *Adapter) Run(ctx context.Context, spec ports.RunSpec) (*ports.Container, error) {
	reader, err := a.cli.ImagePull(ctx, spec.Image, types.ImagePullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	err = drainPull(reader)
	reader.Close()
	if err != nil {
		return nil, err
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        spec.Image,
			Env:          env,
			Labels:       spec.Labels,
			ExposedPorts: nat.PortSet{gamePort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				gamePort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.Port)}},
			},
		},
		nil, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return &ports.Container{
		ID:     resp.ID,
		Name:   spec.Name,
		State:  domain.StateRunning,
		Labels: spec.Labels,
	}, nil
}

// Get inspects the container with the given name. Absence is reported as
// (nil, nil); every other engine error propagates.
func (a *Adapter) Get(ctx context.Context, name string) (*ports.Container, error) {
	inspect, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	return &ports.Container{
		ID:     inspect.ID,
		Name:   strings.TrimPrefix(inspect.Name, "/"),
		State:  stateFromStatus(inspect.State.Status),
		Labels: inspect.Config.Labels,
	}, nil
}

// Start starts a created or stopped container. Starting a running one is a
// no-op for the engine.
func (a *Adapter) Start(ctx context.Context, id string) error {
	if err := a.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// Stop gracefully stops a running container. Stopping a stopped one is a
// no-op for the engine.
func (a *Adapter) Stop(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout+5*time.Second)
	defer cancel()
	secs := int(stopTimeout.Seconds())
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove deletes the container permanently.
func (a *Adapter) Remove(ctx context.Context, id string) error {
	if err := a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// List returns all managed containers, running or not, identified by the
// managed marker label.
func (a *Adapter) List(ctx context.Context) ([]ports.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", domain.LabelManaged+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]ports.Container, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		result = append(result, ports.Container{
			ID:     c.ID,
			Name:   name,
			State:  stateFromStatus(c.State),
			Labels: c.Labels,
		})
	}
	return result, nil
}

// Stats takes a one-shot resource snapshot of the container.
func (a *Adapter) Stats(ctx context.Context, id string) (ports.ResourceStats, error) {
	resp, err := a.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return ports.ResourceStats{}, fmt.Errorf("failed to read container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return ports.ResourceStats{}, fmt.Errorf("failed to decode container stats: %w", err)
	}
	return ports.ResourceStats{MemoryBytes: stats.MemoryStats.Usage}, nil
}

// drainPull consumes an image pull progress stream. The pull only
// completes once the stream is drained, and a mid-stream error (network
// drop, tag resolution failure reported late) means the pull failed.
func drainPull(r io.Reader) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

// stateFromStatus folds the engine's container states into the three the
// lifecycle cares about.
func stateFromStatus(status string) domain.State {
	switch status {
	case "running", "restarting":
		return domain.StateRunning
	case "created":
		return domain.StateCreated
	default:
		return domain.StateStopped
	}
}
