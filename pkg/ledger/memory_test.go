package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		require.Len(t, tok, 64)
		require.False(t, seen[tok], "token collision")
		seen[tok] = true
	}
}

func TestIssueAndLookup(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.Issue(ctx, "tok-1"))

	rec, err := l.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, StatusPending, rec.Status)
	assert.False(t, rec.Status.Used())
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Nil(t, rec.UsedAt)
}

func TestLookupUnknown(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRedeemExactlyOnce(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))

	rec, err := l.Redeem(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRedeemed, rec.Status)
	require.NotNil(t, rec.UsedAt)

	_, err = l.Redeem(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrTokenUsed)
}

func TestRedeemUnknown(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.Redeem(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestExpireBlocksRedemption(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))

	require.NoError(t, l.Expire(ctx, "tok-1"))

	rec, err := l.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, rec.Status)
	require.NotNil(t, rec.UsedAt)

	_, err = l.Redeem(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestExpireNeverRevivesRedeemedToken(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))

	_, err := l.Redeem(ctx, "tok-1")
	require.NoError(t, err)

	require.NoError(t, l.Expire(ctx, "tok-1"))

	rec, err := l.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRedeemed, rec.Status)
}

func TestAttachIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))
	_, err := l.Redeem(ctx, "tok-1")
	require.NoError(t, err)

	require.NoError(t, l.Attach(ctx, "tok-1", BlobInfo{FileName: "a.png", Wallet: "0xabc"}))
	require.NoError(t, l.Attach(ctx, "tok-1", BlobInfo{FileName: "b.png", BlobID: "blob-1", BlobObjectID: "0x1"}))

	rec, err := l.Lookup(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "a.png", rec.FileName)
	assert.Equal(t, "blob-1", rec.BlobID)
	assert.Equal(t, "0x1", rec.BlobObjectID)
	assert.Equal(t, "0xabc", rec.Wallet)
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		require.NoError(t, l.Issue(ctx, id))
	}

	records, err := l.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, id := range ids {
		assert.Equal(t, id, records[i].Token)
	}
}

func TestFindByBlobID(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))
	_, err := l.Redeem(ctx, "tok-1")
	require.NoError(t, err)
	require.NoError(t, l.Attach(ctx, "tok-1", BlobInfo{FileName: "pic.jpg", BlobID: "blob-1"}))

	rec, err := l.FindByBlobID(ctx, "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "pic.jpg", rec.FileName)

	_, err = l.FindByBlobID(ctx, "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestStatsCountsAddUp(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	require.NoError(t, l.Issue(ctx, "pending"))
	require.NoError(t, l.Issue(ctx, "redeemed"))
	require.NoError(t, l.Issue(ctx, "expired"))

	_, err := l.Redeem(ctx, "redeemed")
	require.NoError(t, err)
	require.NoError(t, l.Expire(ctx, "expired"))

	s, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Used)
	assert.Equal(t, 1, s.Unused)
	assert.Equal(t, 1, s.Redeemed)
	assert.Equal(t, 1, s.Expired)
	assert.Equal(t, s.Total, s.Used+s.Unused)
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Issue(ctx, "tok-1"))

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Redeem(ctx, "tok-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrTokenUsed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one redemption must win")
}
