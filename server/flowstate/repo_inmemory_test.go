package flowstate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/server/flowstate"
)

func TestConsumeIsSingleUse(t *testing.T) {
	repo := flowstate.NewInMemoryRepo()

	require.NoError(t, repo.Upsert("state-1", &flowstate.State{
		Nonce:     "nonce-1",
		CreatedAt: time.Now(),
	}))

	state, err := repo.Consume("state-1")
	require.NoError(t, err)
	require.Equal(t, "nonce-1", state.Nonce)

	_, err = repo.Consume("state-1")
	require.Error(t, err)
}

func TestConsumeExpired(t *testing.T) {
	now := time.Now()
	repo := flowstate.NewInMemoryRepo().WithNowTime(func() time.Time { return now })

	require.NoError(t, repo.Upsert("state-1", &flowstate.State{
		RecoveryToken: "one-time-token",
		CreatedAt:     now,
	}))

	now = now.Add(15 * time.Minute)

	_, err := repo.Consume("state-1")
	require.Error(t, err)
}

func TestUpsertValidation(t *testing.T) {
	repo := flowstate.NewInMemoryRepo()

	require.Error(t, repo.Upsert("", &flowstate.State{}))
	require.Error(t, repo.Upsert("state-1", nil))

	_, err := repo.Consume("")
	require.Error(t, err)
}
