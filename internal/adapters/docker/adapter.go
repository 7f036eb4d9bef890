package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/rs/zerolog"
)

const defaultStopTimeout = 10 // seconds

// NewClient connects to the Docker engine configured in the environment.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return cli, nil
}

// Adapter implements ports.ContainerRuntime using the Docker SDK
type Adapter struct {
	cli         client.APIClient
	stopTimeout int
	logger      zerolog.Logger
}

// NewAdapter creates a runtime adapter over an existing Docker client.
func NewAdapter(cli client.APIClient) *Adapter {
	return &Adapter{
		cli:         cli,
		stopTimeout: defaultStopTimeout,
		logger:      log.WithComponent("docker"),
	}
}

// Run creates and starts a detached container. A missing image is pulled once;
// if that fails the image is reported as not found.
func (a *Adapter) Run(ctx context.Context, spec domain.RunSpec) (string, error) {
	cfg, hostCfg := containerConfig(spec)

	resp, err := a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil && errdefs.IsNotFound(err) {
		a.logger.Info().Str("image", spec.Image).Msg("image not present locally, pulling")
		if perr := a.pullImage(ctx, spec.Image); perr != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrImageNotFound, spec.Image, perr)
		}
		resp, err = a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
		if err != nil && errdefs.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrImageNotFound, spec.Image)
		}
	}
	if err != nil {
		return "", runtimeError("create", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rerr := a.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rerr != nil {
			a.logger.Error().Err(rerr).Str("container_id", resp.ID).Msg("removing unstarted container failed")
		}
		return "", runtimeError("start", err)
	}
	return resp.ID, nil
}

func (a *Adapter) pullImage(ctx context.Context, ref string) error {
	reader, err := a.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}

// Inspect returns the live attributes of a container.
func (a *Adapter) Inspect(ctx context.Context, id string) (*domain.ContainerAttrs, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, runtimeError("inspect", err)
	}
	return attrsFromInspect(info), nil
}

// Stop gracefully stops a running container
func (a *Adapter) Stop(ctx context.Context, id string) error {
	timeout := a.stopTimeout
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout+5)*time.Second)
	defer cancel()
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return runtimeError("stop", err)
	}
	return nil
}

// Remove deletes a container, killing it first when force is set
func (a *Adapter) Remove(ctx context.Context, id string, force bool) error {
	if err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return runtimeError("remove", err)
	}
	return nil
}

// List returns all containers, running or not, that carry the given labels
func (a *Adapter) List(ctx context.Context, labels map[string]string) ([]domain.ContainerAttrs, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, runtimeError("list", err)
	}

	result := make([]domain.ContainerAttrs, 0, len(containers))
	for _, c := range containers {
		result = append(result, attrsFromSummary(c))
	}
	return result, nil
}

func runtimeError(op string, err error) error {
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return &domain.RuntimeError{Op: op, Detail: err.Error(), Err: err}
}

// containerConfig translates a RunSpec into Docker create options.
func containerConfig(spec domain.RunSpec) (*container.Config, *container.HostConfig) {
	port := nat.Port(fmt.Sprintf("%d/tcp", spec.ServicePort))

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		Labels:       spec.Labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		// Empty HostPort lets the engine choose a free port.
		PortBindings: nat.PortMap{port: []nat.PortBinding{{HostIP: "", HostPort: ""}}},
		Resources: container.Resources{
			Memory:    spec.MemoryMB * 1024 * 1024,
			CPUPeriod: spec.CPUPeriod,
			CPUQuota:  spec.CPUQuota,
		},
	}
	return cfg, hostCfg
}

func attrsFromInspect(info types.ContainerJSON) *domain.ContainerAttrs {
	attrs := &domain.ContainerAttrs{Ports: map[string]string{}}
	if info.ContainerJSONBase != nil {
		attrs.ID = info.ID
		attrs.Name = strings.TrimPrefix(info.Name, "/")
		if info.State != nil {
			attrs.Status = info.State.Status
		}
	}
	if info.Config != nil {
		attrs.Image = info.Config.Image
		attrs.Labels = info.Config.Labels
		attrs.Env = info.Config.Env
	}
	if info.NetworkSettings != nil {
		for port, bindings := range info.NetworkSettings.Ports {
			if len(bindings) > 0 && bindings[0].HostPort != "" {
				attrs.Ports[string(port)] = bindings[0].HostPort
			}
		}
	}
	return attrs
}

func attrsFromSummary(c types.Container) domain.ContainerAttrs {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	attrs := domain.ContainerAttrs{
		ID:     c.ID,
		Name:   name,
		Image:  c.Image,
		Status: c.State,
		Labels: c.Labels,
		Ports:  map[string]string{},
	}
	for _, p := range c.Ports {
		if p.PublicPort == 0 {
			continue
		}
		key := fmt.Sprintf("%d/%s", p.PrivatePort, p.Type)
		if _, seen := attrs.Ports[key]; !seen {
			attrs.Ports[key] = fmt.Sprintf("%d", p.PublicPort)
		}
	}
	return attrs
}
