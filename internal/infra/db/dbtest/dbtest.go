// Package dbtest holds the behaviour every session.Repository must share.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

// RunRepositoryTests exercises repo against the session.Repository contract.
func RunRepositoryTests(t *testing.T, repo session.Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Get(ctx, session.NewID())
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		s := session.New(session.NewID(), "mango", base)
		_, err := s.SelectImage(session.ImageMeta{Key: string(s.ID) + "/img", Filename: "leaf.jpg", ContentType: "image/jpeg", Size: 3}, base)
		require.NoError(t, err)
		require.NoError(t, s.BeginAnalysis(base))
		res, err := classification.Decode([]byte(`{"name":"Anthracnose","confidence":89,"severity":"moderate","recommendations":["Remove infected leaves"],"all_probabilities":{"Anthracnose":89,"Healthy":11}}`))
		require.NoError(t, err)
		require.NoError(t, s.Resolve(res, session.Notice{Kind: session.NoticeSuccess, Title: "Analysis Complete"}, base))
		require.NoError(t, repo.Save(ctx, s))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, session.StateResolved, got.State)
		assert.Equal(t, s.Image, got.Image)
		assert.Equal(t, s.Notice, got.Notice)
		assert.True(t, s.UpdatedAt.Equal(got.UpdatedAt))
		require.NotNil(t, got.Result)
		assert.Equal(t, "Anthracnose", got.Result.DisplayName())
		assert.Equal(t, res.Distribution(), got.Result.Distribution())

		// upsert
		_, err = got.Reset(base.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, got))
		again, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StateIdle, again.State)
		assert.Nil(t, again.Result)

		require.NoError(t, repo.Delete(ctx, s.ID))
		_, err = repo.Get(ctx, s.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		old := session.New(session.NewID(), "cashew", base.Add(-48*time.Hour))
		fresh := session.New(session.NewID(), "cashew", base.Add(48*time.Hour))
		busy := session.New(session.NewID(), "cashew", base.Add(-48*time.Hour))
		busy.State = session.StateAnalyzing
		require.NoError(t, repo.Save(ctx, old))
		require.NoError(t, repo.Save(ctx, fresh))
		require.NoError(t, repo.Save(ctx, busy))
		t.Cleanup(func() {
			_ = repo.Delete(ctx, fresh.ID)
			_ = repo.Delete(ctx, busy.ID)
		})

		expired, err := repo.DeleteExpired(ctx, base.Add(-24*time.Hour), base.Add(-72*time.Hour))
		require.NoError(t, err)

		ids := make([]session.ID, 0, len(expired))
		for _, s := range expired {
			ids = append(ids, s.ID)
		}
		assert.Contains(t, ids, old.ID)
		assert.NotContains(t, ids, fresh.ID)
		assert.NotContains(t, ids, busy.ID)

		_, err = repo.Get(ctx, old.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = repo.Get(ctx, fresh.ID)
		assert.NoError(t, err)
		_, err = repo.Get(ctx, busy.ID)
		assert.NoError(t, err)
	})
}
