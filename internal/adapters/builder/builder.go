package builder

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/rs/zerolog"
)

// Adapter builds notebook images from git repositories that carry a Dockerfile.
type Adapter struct {
	cli    client.ImageAPIClient
	clone  func(ctx context.Context, dir, repoURL string) error
	logger zerolog.Logger
}

func NewBuilderAdapter(cli client.ImageAPIClient) *Adapter {
	return &Adapter{
		cli:    cli,
		clone:  shallowClone,
		logger: log.WithComponent("builder"),
	}
}

func shallowClone(ctx context.Context, dir, repoURL string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	return err
}

// ValidateRepoURL accepts http(s), ssh and git URLs.
func ValidateRepoURL(repoURL string) error {
	if strings.HasPrefix(repoURL, "git@") {
		return nil
	}
	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" {
		return &domain.ValidationError{Field: "repo_url", Reason: "must be a repository URL"}
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git":
		return nil
	}
	return &domain.ValidationError{Field: "repo_url", Reason: "unsupported scheme " + u.Scheme}
}

// BuildImage clones a repo and builds a Docker image tagged imageName
func (a *Adapter) BuildImage(ctx context.Context, repoURL string, imageName string) (string, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		return "", err
	}
	if imageName == "" {
		return "", &domain.ValidationError{Field: "image", Reason: "is required"}
	}
	logger := a.logger.With().Str("repo_url", repoURL).Str("image", imageName).Logger()

	tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	logger.Info().Msg("cloning repository")
	if err := a.clone(ctx, tmpDir, repoURL); err != nil {
		return "", fmt.Errorf("failed to clone repo: %w", err)
	}

	tar, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{ExcludePatterns: []string{".git"}})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	logger.Info().Msg("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{imageName},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", &domain.RuntimeError{Op: "build", Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	// The build runs until the stream is drained; step failures arrive inside it.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return "", &domain.RuntimeError{Op: "build", Detail: err.Error(), Err: err}
	}

	logger.Info().Msg("image built")
	return imageName, nil
}
