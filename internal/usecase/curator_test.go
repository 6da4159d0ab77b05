package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
)

func rankingEntries() []domain.DigestEntry {
	return []domain.DigestEntry{
		{ID: 3, Title: "Three", SourceName: "YouTube", Summary: "s3"},
		{ID: 5, Title: "Five", SourceName: "OpenAI Blog", Summary: "s5"},
	}
}

func TestCuratorEmptyInputSkipsBackend(t *testing.T) {
	t.Parallel()

	gen := replyWith(`{}`)
	result, err := NewCurator(gen, 0, nil, nil).Rank(context.Background(), nil, domain.UserProfile{})
	require.NoError(t, err)
	assert.Empty(t, result.RankedEntries)
	assert.Zero(t, result.TotalProcessed)
	assert.Zero(t, gen.calls())
}

func TestCuratorOrdersByReturnedRank(t *testing.T) {
	t.Parallel()

	gen := replyWith(`{"ranked_articles":[
		{"digest_id":5,"rank":2,"score":0.4,"relevance_reason":"meh"},
		{"digest_id":3,"rank":1,"score":0.9,"relevance_reason":"great fit"}
	],"total_processed":2}`)
	metrics := newRecordingMetrics()

	result, err := NewCurator(gen, 0, metrics, nil).Rank(context.Background(), rankingEntries(), domain.UserProfile{Name: "Ada"})
	require.NoError(t, err)
	require.Len(t, result.RankedEntries, 2)

	assert.Equal(t, domain.RankedEntry{DigestID: 3, Title: "Three", Rank: 1, Score: 0.9, RelevanceReason: "great fit"}, result.RankedEntries[0])
	assert.Equal(t, domain.RankedEntry{DigestID: 5, Title: "Five", Rank: 2, Score: 0.4, RelevanceReason: "meh"}, result.RankedEntries[1])
	assert.Equal(t, 2, result.TotalProcessed)
	assert.True(t, gen.last().JSON)
	assert.Equal(t, []bool{true}, metrics.rankings)
}

func TestParseRankingValidation(t *testing.T) {
	t.Parallel()

	t.Run("unknown ids are dropped and ranks stay dense", func(t *testing.T) {
		result, err := ParseRanking(`{"ranked_articles":[
			{"digest_id":99,"rank":1,"score":1},
			{"digest_id":5,"rank":2,"score":0.5},
			{"digest_id":3,"rank":3,"score":0.2}
		]}`, rankingEntries())
		require.NoError(t, err)
		require.Len(t, result.RankedEntries, 2)
		assert.Equal(t, int64(5), result.RankedEntries[0].DigestID)
		assert.Equal(t, 1, result.RankedEntries[0].Rank)
		assert.Equal(t, int64(3), result.RankedEntries[1].DigestID)
		assert.Equal(t, 2, result.RankedEntries[1].Rank)
		assert.Equal(t, 2, result.TotalProcessed, "defaults to input size")
	})

	t.Run("duplicate ids keep the first occurrence", func(t *testing.T) {
		result, err := ParseRanking(`{"ranked_articles":[
			{"digest_id":3,"rank":2,"score":0.3},
			{"digest_id":3,"rank":1,"score":0.9},
			{"digest_id":5,"rank":1,"score":0.8}
		]}`, rankingEntries())
		require.NoError(t, err)
		require.Len(t, result.RankedEntries, 2)
		assert.Equal(t, int64(5), result.RankedEntries[0].DigestID)
		assert.Equal(t, int64(3), result.RankedEntries[1].DigestID)
		assert.InDelta(t, 0.3, result.RankedEntries[1].Score, 1e-9)
	})

	t.Run("colliding ranks keep emission order", func(t *testing.T) {
		result, err := ParseRanking(`{"ranked_articles":[
			{"digest_id":5,"rank":1,"score":0.8},
			{"digest_id":3,"rank":1,"score":0.9}
		]}`, rankingEntries())
		require.NoError(t, err)
		require.Len(t, result.RankedEntries, 2)
		assert.Equal(t, int64(5), result.RankedEntries[0].DigestID)
		assert.Equal(t, 1, result.RankedEntries[0].Rank)
		assert.Equal(t, 2, result.RankedEntries[1].Rank)
	})

	t.Run("scores are clamped", func(t *testing.T) {
		result, err := ParseRanking(`{"ranked_articles":[
			{"digest_id":3,"rank":1,"score":7},
			{"digest_id":5,"rank":2,"score":-1}
		],"total_processed":9}`, rankingEntries())
		require.NoError(t, err)
		assert.Equal(t, 1.0, result.RankedEntries[0].Score)
		assert.Equal(t, 0.0, result.RankedEntries[1].Score)
		assert.Equal(t, 9, result.TotalProcessed)
	})

	t.Run("reason is optional", func(t *testing.T) {
		result, err := ParseRanking(`{"ranked_articles":[{"digest_id":3,"rank":1,"score":0.5}]}`, rankingEntries())
		require.NoError(t, err)
		assert.Empty(t, result.RankedEntries[0].RelevanceReason)
	})

	failures := map[string]string{
		"empty reply":         "  ",
		"not json":            "ranked: 3, 5",
		"missing list":        `{"total_processed":2}`,
		"null list":           `{"ranked_articles":null}`,
		"list is not array":   `{"ranked_articles":{"digest_id":3}}`,
		"missing digest_id":   `{"ranked_articles":[{"rank":1,"score":0.5}]}`,
		"string digest_id":    `{"ranked_articles":[{"digest_id":"3","rank":1,"score":0.5}]}`,
		"missing rank":        `{"ranked_articles":[{"digest_id":3,"score":0.5}]}`,
		"fractional rank":     `{"ranked_articles":[{"digest_id":3,"rank":1.5,"score":0.5}]}`,
		"missing score":       `{"ranked_articles":[{"digest_id":3,"rank":1}]}`,
		"string score":        `{"ranked_articles":[{"digest_id":3,"rank":1,"score":"high"}]}`,
		"entry is not object": `{"ranked_articles":[3,5]}`,
	}
	for name, reply := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRanking(reply, rankingEntries())
			require.ErrorIs(t, err, ErrRankingFailed)
		})
	}
}

func TestCuratorBackendErrorIsRankingFailure(t *testing.T) {
	t.Parallel()

	metrics := newRecordingMetrics()
	_, err := NewCurator(failWith(errors.New("503")), 0, metrics, nil).Rank(context.Background(), rankingEntries(), domain.UserProfile{})
	require.ErrorIs(t, err, ErrRankingFailed)
	assert.Equal(t, []bool{false}, metrics.rankings)

	_, err = NewCurator(nil, 0, nil, nil).Rank(context.Background(), rankingEntries(), domain.UserProfile{})
	require.ErrorIs(t, err, ErrRankingFailed)
}
