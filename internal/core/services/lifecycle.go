package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/melih/lighthouse-notebooks/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// CPUPeriod is the CFS scheduling period in microseconds.
	CPUPeriod = 100000

	LabelOwner     = "owner_id"
	LabelCreatedAt = "created_at"
	LabelTimeout   = "timeout_minutes"
	LabelManagedBy = "lighthouse.managed-by"
	managedByValue = "lighthouse"

	tokenEnv         = "JUPYTER_TOKEN"
	noPortAssigned   = "No port assigned"
	nameSuffixLength = 8
)

// LifecycleConfig holds the process-wide launch defaults.
type LifecycleConfig struct {
	DefaultImage          string
	DefaultTimeoutMinutes int
	Host                  string
	Scheme                string
	ServicePort           int
	EnforceOwnership      bool
}

// Lifecycle launches, inspects and stops per-user notebook containers.
type Lifecycle struct {
	runtime ports.ContainerRuntime
	records ports.RecordStore
	cfg     LifecycleConfig
	logger  zerolog.Logger

	now      func() time.Time
	newToken func() string
}

// NewLifecycle wires a lifecycle manager over a runtime and a record store.
func NewLifecycle(runtime ports.ContainerRuntime, records ports.RecordStore, cfg LifecycleConfig) *Lifecycle {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	return &Lifecycle{
		runtime:  runtime,
		records:  records,
		cfg:      cfg,
		logger:   log.WithComponent("lifecycle"),
		now:      func() time.Time { return time.Now().UTC() },
		newToken: newHexToken,
	}
}

// newHexToken returns 32 lowercase hex characters of fresh randomness.
func newHexToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MemoryLimitMB converts a RAM request in GB to a whole number of MB, rounding up.
func MemoryLimitMB(ramGB float64) int64 {
	return int64(math.Ceil(ramGB * 1024))
}

// CPUQuota converts a fractional core share to a CFS quota over CPUPeriod.
func CPUQuota(cpu float64) int64 {
	return int64(math.Round(cpu * CPUPeriod))
}

// ContainerName derives a launch name from the owner and a random token.
func ContainerName(userID, token string) string {
	return fmt.Sprintf("%s%s-%s", domain.ContainerNamePrefix, userID, token[:nameSuffixLength])
}

// Launch starts a notebook container for userID and returns how to reach it.
//
// The record is written before the port is read back, so a record exists for
// every container this call created. If no host port is bound the container is
// force-removed and the record marked as error.
func (l *Lifecycle) Launch(ctx context.Context, userID string, req domain.ContainerRequest) (result *domain.LaunchResult, err error) {
	timer := metrics.NewTimer()
	defer func() {
		metrics.LaunchesTotal.WithLabelValues(launchResult(err)).Inc()
		if err == nil {
			timer.ObserveDuration(metrics.LaunchDuration)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	image := req.Image
	if image == "" {
		image = l.cfg.DefaultImage
	}
	timeout := req.TimeoutMinutes
	if timeout == 0 {
		timeout = l.cfg.DefaultTimeoutMinutes
	}

	name := ContainerName(userID, l.newToken())
	token := l.newToken()
	createdAt := l.now()

	spec := domain.RunSpec{
		Name:  name,
		Image: image,
		Env:   map[string]string{tokenEnv: token},
		Labels: map[string]string{
			LabelOwner:     userID,
			LabelCreatedAt: createdAt.Format(time.RFC3339),
			LabelTimeout:   strconv.Itoa(timeout),
			LabelManagedBy: managedByValue,
		},
		MemoryMB:    MemoryLimitMB(req.RAM),
		CPUQuota:    CPUQuota(req.CPU),
		CPUPeriod:   CPUPeriod,
		ServicePort: l.cfg.ServicePort,
	}

	logger := l.logger.With().Str("user_id", userID).Str("container_name", name).Logger()
	logger.Info().
		Str("image", image).
		Int64("memory_mb", spec.MemoryMB).
		Int64("cpu_quota", spec.CPUQuota).
		Int("timeout_minutes", timeout).
		Msg("launching container")

	containerID, err := l.runtime.Run(ctx, spec)
	if err != nil {
		logger.Error().Err(err).Msg("container create failed")
		return nil, err
	}
	logger = logger.With().Str("container_id", containerID).Logger()
	logger.Info().Msg("container started")

	rec := &domain.ContainerRecord{
		UserID:         userID,
		ContainerID:    containerID,
		Name:           name,
		Image:          image,
		CreatedAt:      createdAt,
		Status:         domain.StatusRunning,
		TimeoutMinutes: timeout,
	}
	if err := l.records.Insert(ctx, rec); err != nil {
		// Without a record the container would be invisible to every later call.
		logger.Error().Err(err).Msg("persisting record failed, removing container")
		l.compensate(ctx, logger, containerID)
		return nil, fmt.Errorf("persisting container record: %w", err)
	}
	logger.Info().Msg("container record persisted")

	attrs, err := l.runtime.Inspect(ctx, containerID)
	hostPort := ""
	if err == nil {
		hostPort = attrs.HostPort(l.cfg.ServicePort)
	} else {
		logger.Error().Err(err).Msg("inspecting container failed")
	}
	if hostPort == "" {
		logger.Error().Msg("no host port bound, removing container")
		l.compensate(ctx, logger, containerID)
		if _, uerr := l.records.UpdateStatus(ctx, containerID, domain.StatusError, noPortAssigned); uerr != nil {
			logger.Error().Err(uerr).Msg("marking record as error failed")
		}
		return nil, domain.ErrPortAllocation
	}

	logger.Info().Str("host_port", hostPort).Msg("container launched")
	return &domain.LaunchResult{
		ContainerName: name,
		ContainerID:   containerID,
		HostPort:      hostPort,
		URL:           l.notebookURL(hostPort, token),
	}, nil
}

func (l *Lifecycle) compensate(ctx context.Context, logger zerolog.Logger, containerID string) {
	metrics.CompensationsTotal.Inc()
	if err := l.runtime.Remove(ctx, containerID, true); err != nil {
		logger.Error().Err(err).Msg("force-removing container failed, manual cleanup required")
	}
}

func (l *Lifecycle) notebookURL(hostPort, token string) string {
	return fmt.Sprintf("%s://%s/?token=%s", l.cfg.Scheme, net.JoinHostPort(l.cfg.Host, hostPort), token)
}

// Status reports the live runtime state of a container.
func (l *Lifecycle) Status(ctx context.Context, containerID string) (string, error) {
	attrs, err := l.runtime.Inspect(ctx, containerID)
	metrics.OperationsTotal.WithLabelValues("status", metrics.Result(err)).Inc()
	if err != nil {
		return "", err
	}
	return attrs.Status, nil
}

// Stop gracefully stops a container and marks its record stopped if one exists.
func (l *Lifecycle) Stop(ctx context.Context, userID, containerID string) (err error) {
	defer func() {
		metrics.OperationsTotal.WithLabelValues("stop", metrics.Result(err)).Inc()
	}()

	if l.cfg.EnforceOwnership {
		rec, err := l.records.FindByContainerID(ctx, containerID)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}
		if rec == nil || rec.UserID != userID {
			return domain.ErrForbidden
		}
	}

	logger := l.logger.With().Str("user_id", userID).Str("container_id", containerID).Logger()
	if err := l.runtime.Stop(ctx, containerID); err != nil {
		logger.Warn().Err(err).Msg("stopping container failed")
		return err
	}

	found, err := l.records.UpdateStatus(ctx, containerID, domain.StatusStopped, "")
	if err != nil {
		logger.Error().Err(err).Msg("updating record status failed")
		return fmt.Errorf("updating container record: %w", err)
	}
	if !found {
		logger.Warn().Msg("container stopped but has no record")
	}
	logger.Info().Msg("container stopped")
	return nil
}

// List returns the records owned by userID.
func (l *Lifecycle) List(ctx context.Context, userID string) ([]*domain.ContainerRecord, error) {
	return l.records.ListByUser(ctx, userID)
}

// Endpoint resolves a container name to the host:port its notebook is served on.
func (l *Lifecycle) Endpoint(ctx context.Context, name string) (string, error) {
	rec, err := l.records.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	attrs, err := l.runtime.Inspect(ctx, rec.ContainerID)
	if err != nil {
		return "", err
	}
	hostPort := attrs.HostPort(l.cfg.ServicePort)
	if !attrs.Running() || hostPort == "" {
		return "", domain.ErrNotFound
	}
	return net.JoinHostPort(l.cfg.Host, hostPort), nil
}

func launchResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrImageNotFound):
		return "image_not_found"
	case errors.Is(err, domain.ErrPortAllocation):
		return "no_port"
	default:
		return "error"
	}
}
