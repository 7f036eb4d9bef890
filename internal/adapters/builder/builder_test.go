package builder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageAPI struct {
	client.ImageAPIClient

	stream string
	tags   []string
}

func (f *fakeImageAPI) ImageBuild(ctx context.Context, buildContext io.Reader, opts types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}
	f.tags = opts.Tags
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func fakeClone(ctx context.Context, dir, repoURL string) error {
	return os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM jupyter/base-notebook\n"), 0o644)
}

func TestValidateRepoURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://github.com/org/notebooks.git", true},
		{"git@github.com:org/notebooks.git", true},
		{"ssh://git@host/repo.git", true},
		{"ftp://host/repo", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateRepoURL(tt.url)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrValidation)
			}
		})
	}
}

func TestBuildImage(t *testing.T) {
	api := &fakeImageAPI{stream: `{"stream":"Step 1/1 : FROM jupyter/base-notebook"}` + "\n"}
	a := NewBuilderAdapter(api)
	a.clone = fakeClone

	tag, err := a.BuildImage(context.Background(), "https://github.com/org/nb.git", "team/nb:latest")
	require.NoError(t, err)
	assert.Equal(t, "team/nb:latest", tag)
	assert.Equal(t, []string{"team/nb:latest"}, api.tags)
}

func TestBuildImageStreamError(t *testing.T) {
	api := &fakeImageAPI{stream: `{"errorDetail":{"message":"pip failed"},"error":"pip failed"}` + "\n"}
	a := NewBuilderAdapter(api)
	a.clone = fakeClone

	_, err := a.BuildImage(context.Background(), "https://github.com/org/nb.git", "team/nb")
	assert.ErrorIs(t, err, domain.ErrRuntime)
	assert.Contains(t, err.Error(), "pip failed")
}

func TestBuildImageCloneError(t *testing.T) {
	a := NewBuilderAdapter(&fakeImageAPI{})
	a.clone = func(ctx context.Context, dir, repoURL string) error { return errors.New("repository not found") }

	_, err := a.BuildImage(context.Background(), "https://github.com/org/missing.git", "team/nb")
	assert.ErrorContains(t, err, "repository not found")
}

func TestBuildImageRequiresTag(t *testing.T) {
	a := NewBuilderAdapter(&fakeImageAPI{})
	_, err := a.BuildImage(context.Background(), "https://github.com/org/nb.git", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
