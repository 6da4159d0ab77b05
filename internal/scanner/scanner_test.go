package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.CandidateItem, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(stubScanner{name: "youtube"}, stubScanner{name: "blog"})

	got, err := reg.Resolve("blog")
	require.NoError(t, err)
	assert.Equal(t, "blog", got.Name())

	_, err = reg.Resolve("podcast")
	assert.ErrorContains(t, err, "podcast")

	assert.Equal(t, []string{"blog", "youtube"}, reg.Names())
}

func TestRegistryZeroValueRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubScanner{name: "arxiv"})
	_, err := reg.Resolve("arxiv")
	assert.NoError(t, err)
}

func TestRequestWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.December, 9, 12, 0, 0, 0, time.UTC)
	req := Request{Now: now, Window: 24 * time.Hour}

	assert.Equal(t, now.Add(-24*time.Hour), req.Cutoff())
	assert.True(t, req.Accepts(now.Add(-24*time.Hour)), "cutoff itself is inside the window")
	assert.True(t, req.Accepts(now.Add(-time.Hour)))
	assert.False(t, req.Accepts(now.Add(-25*time.Hour)))
}
