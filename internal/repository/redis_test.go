package repository_test

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/argus/internal/event"
	"github.com/gyaneshwarpardhi/argus/internal/repository"
)

func newMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newRedisRepo(t *testing.T, mr *miniredis.Miniredis) *repository.Redis {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewRedisFromClient(client, "test:")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRedisContract(t *testing.T) {
	runContract(t, func(t *testing.T) repository.Repository {
		return newRedisRepo(t, newMiniRedis(t))
	})
}

func TestRedisKeyLayout(t *testing.T) {
	mr := newMiniRedis(t)
	repo := newRedisRepo(t, mr)

	id, err := repo.Insert(ctx(), makeEvent("signup", t0))
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:evt:"+id))
	members, err := mr.ZMembers("test:z:type:signup")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, members)
	score, err := mr.ZScore("test:z:all", id)
	require.NoError(t, err)
	assert.Equal(t, float64(t0.Unix()), score)
}

func TestRedisSubSecondBounds(t *testing.T) {
	repo := newRedisRepo(t, newMiniRedis(t))

	// Both events share the same whole-second score; exact matching must
	// still separate them.
	early, err := repo.Insert(ctx(), makeEvent("x", t0.Add(100*time.Millisecond)))
	require.NoError(t, err)
	late, err := repo.Insert(ctx(), makeEvent("x", t0.Add(900*time.Millisecond)))
	require.NoError(t, err)

	got, err := repo.Query(ctx(), event.Query{Start: ptr(t0.Add(500 * time.Millisecond))})
	require.NoError(t, err)
	assert.Equal(t, []string{late}, ids(got))

	got, err = repo.Query(ctx(), event.Query{End: ptr(t0.Add(500 * time.Millisecond))})
	require.NoError(t, err)
	assert.Equal(t, []string{early}, ids(got))
}

func TestRedisSkipsMissingBodies(t *testing.T) {
	mr := newMiniRedis(t)
	repo := newRedisRepo(t, mr)

	id, err := repo.Insert(ctx(), makeEvent("x", t0))
	require.NoError(t, err)
	mr.Del("test:evt:" + id)

	got, err := repo.Query(ctx(), event.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisFailureIsStorageError(t *testing.T) {
	mr := newMiniRedis(t)
	repo := newRedisRepo(t, mr)
	mr.Close()

	_, err := repo.Insert(ctx(), makeEvent("x", t0))
	assert.ErrorIs(t, err, repository.ErrStorage)

	_, err = repo.Query(ctx(), event.Query{})
	assert.ErrorIs(t, err, repository.ErrStorage)

	_, err = repo.Count(ctx())
	assert.ErrorIs(t, err, repository.ErrStorage)
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := newMiniRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := repository.New(repository.KindRedis, repository.Options{
		Redis: repository.RedisOptions{Addr: addr},
	})
	assert.ErrorIs(t, err, repository.ErrStorage)
}

func TestNewRedis(t *testing.T) {
	mr := newMiniRedis(t)

	repo, err := repository.New(repository.KindRedis, repository.Options{
		Redis: repository.RedisOptions{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.(*repository.Redis).Close() })

	_, err = repo.Insert(ctx(), makeEvent("x", t0))
	require.NoError(t, err)
	assert.True(t, mr.Exists("argus:z:all"))
}

func TestRedisQuerySpansFetchChunks(t *testing.T) {
	repo := newRedisRepo(t, newMiniRedis(t))

	// More than two MGET chunks, with a typed subset straddling the boundaries.
	const total = 1100
	clicks := 0
	for i := 0; i < total; i++ {
		typ := "view"
		if i%2 == 0 {
			typ = "click"
			clicks++
		}
		_, err := repo.Insert(ctx(), makeEvent(typ, t0.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	all, err := repo.Query(ctx(), event.Query{})
	require.NoError(t, err)
	assert.Len(t, all, total)

	seen := make(map[string]struct{}, len(all))
	for _, id := range ids(all) {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, total)

	got, err := repo.Query(ctx(), event.ByType("click"))
	require.NoError(t, err)
	assert.Len(t, got, clicks)

	got, err = repo.Query(ctx(), event.Between(t0.Add(500*time.Second), t0.Add(1049*time.Second)))
	require.NoError(t, err)
	assert.Len(t, got, 550)
}

func TestRedisDuplicateLeavesIndexesIntact(t *testing.T) {
	mr := newMiniRedis(t)
	repo := newRedisRepo(t, mr)

	first := makeEvent("signup", t0)
	first.ID = "same"
	_, err := repo.Insert(ctx(), first)
	require.NoError(t, err)

	second := makeEvent("click", t0.Add(time.Hour))
	second.ID = "same"
	_, err = repo.Insert(ctx(), second)
	require.ErrorIs(t, err, repository.ErrDuplicateID)

	assert.False(t, mr.Exists("test:z:type:click"))
	score, err := mr.ZScore("test:z:all", "same")
	require.NoError(t, err)
	assert.Equal(t, float64(t0.Unix()), score)
}
