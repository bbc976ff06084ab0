package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comps-intel/internal/model"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func strptr(s string) *string { return &s }

func transactionResult(subject string) *model.AnalysisResult {
	return &model.AnalysisResult{
		SubjectCompany: subject,
		Type:           model.ResultTypeBoth,
		Transactions: []model.TransactionRecord{{
			Target:              "Beta Labs",
			Acquirer:            subject,
			DealType:            "Acquisition",
			AcquisitionCategory: model.AcquisitionStrategic,
			Revenue:             strptr("$12.5M"),
			EVEBITDA:            strptr("9.1x"),
		}},
		TransactionCount: 1,
		ClassifiedCompanySet: model.ClassifiedCompanySet{
			Verified:     []model.CompanyCandidate{{Name: "Globex", Score: 90, Reason: "direct competitor"}},
			ToCrossCheck: []model.CompanyCandidate{{Name: "Initech", Score: 40}},
		},
		VerifiedCount:   1,
		CrossCheckCount: 1,
		Reasoning:       "two sheets",
		FilesProcessed:  2,
		TotalFilesFound: 3,
		FailedFiles:     []model.FailedFile{{Path: "a/broken.xlsx", Error: "download failed"}},
	}
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis addr required")
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestNewRedisStore_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), mr.Addr())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)
	want := transactionResult("Acme")

	require.NoError(t, store.Set(ctx, "acme_0123abcd", want, time.Hour))

	got, ok, err := store.Get(ctx, "acme_0123abcd")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Nil(t, got.Transactions[0].Valuation)
	assert.Nil(t, got.Transactions[0].EVRevenue)
	require.NotNil(t, got.Transactions[0].Revenue)
	assert.Equal(t, "$12.5M", *got.Transactions[0].Revenue)
}

func TestRedisStore_MissingKey(t *testing.T) {
	store, _ := newMiniredisStore(t)

	got, ok, err := store.Get(context.Background(), "nobody_00000000")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisStore_SetsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	require.NoError(t, store.Set(ctx, "acme_0123abcd", transactionResult("Acme"), 48*time.Hour))
	assert.Equal(t, 48*time.Hour, mr.TTL(KeyPrefix+"acme_0123abcd"))

	mr.FastForward(49 * time.Hour)
	_, ok, err := store.Get(ctx, "acme_0123abcd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	require.NoError(t, store.Set(ctx, "acme_0123abcd", transactionResult("Acme"), time.Hour))
	require.NoError(t, store.Delete(ctx, "acme_0123abcd"))
	assert.False(t, mr.Exists(KeyPrefix+"acme_0123abcd"))

	assert.NoError(t, store.Delete(ctx, "never_set"))
}

func TestRedisStore_ClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	require.NoError(t, store.Set(ctx, "acme_0123abcd", transactionResult("Acme"), time.Hour))
	require.NoError(t, store.Set(ctx, "globex_89abcdef", transactionResult("Globex"), time.Hour))
	require.NoError(t, mr.Set("sessions:42", "keep"))
	require.NoError(t, mr.Set("comps:other", "keep"))

	require.NoError(t, store.Clear(ctx))

	assert.False(t, mr.Exists(KeyPrefix+"acme_0123abcd"))
	assert.False(t, mr.Exists(KeyPrefix+"globex_89abcdef"))
	assert.True(t, mr.Exists("sessions:42"))
	assert.True(t, mr.Exists("comps:other"))

	assert.NoError(t, store.Clear(ctx))
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	store, mr := newMiniredisStore(t)
	require.NoError(t, mr.Set(KeyPrefix+"acme_0123abcd", "{not json"))

	_, ok, err := store.Get(context.Background(), "acme_0123abcd")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "decode")
}

func TestCache_SharedRedisAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)

	writer := New(10, time.Hour, WithRemote(store))
	require.True(t, writer.Put(ctx, "acme_0123abcd", transactionResult("Acme")))

	reader := New(10, time.Hour, WithRemote(store))
	got, ok := reader.Get(ctx, "acme_0123abcd")
	require.True(t, ok)
	assert.True(t, got.Cached)
	assert.Equal(t, "Acme", got.SubjectCompany)
	assert.Equal(t, 1, reader.Stats().Size)

	require.NoError(t, reader.Clear(ctx))
	_, ok, err := store.Get(ctx, "acme_0123abcd")
	require.NoError(t, err)
	assert.False(t, ok)
}
