package gist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testPayload(source string) Payload {
	return Payload{
		Public:      true,
		Description: "test game",
		Files:       map[string]string{"code.js": source},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestCreate(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("stores gist and owner index", func(t *testing.T) {
		g, err := client.Create(ctx, "alice", testPayload("draw()"))
		require.NoError(t, err)

		assert.NotEmpty(t, g.ID)
		assert.Equal(t, "alice", g.Owner)
		assert.True(t, mr.Exists(GistKey("test-instance", g.ID)))

		members, err := mr.ZMembers(OwnerGistsKey("test-instance", "alice"))
		require.NoError(t, err)
		assert.Contains(t, members, g.ID)

		got, err := client.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g, got)
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		_, err := client.Create(ctx, "alice", Payload{Public: true})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid payload")
	})

	t.Run("rejects missing owner", func(t *testing.T) {
		_, err := client.Create(ctx, "", testPayload("x"))
		assert.Error(t, err)
	})
}

func TestUpdate(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, "alice", testPayload("v1"))
	require.NoError(t, err)

	t.Run("owner can update", func(t *testing.T) {
		updated, err := client.Update(ctx, created.ID, "alice", testPayload("v2"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "v2", updated.Files["code.js"])

		got, err := client.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Files["code.js"])
		assert.Equal(t, created.CreatedAtMs, got.CreatedAtMs)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		_, err := client.Update(ctx, created.ID, "bob", testPayload("hijack"))
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := client.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Files["code.js"])
	})

	t.Run("missing gist", func(t *testing.T) {
		_, err := client.Update(ctx, "nope", "alice", testPayload("x"))
		assert.True(t, IsNotFound(err))
	})
}

func TestGet_NotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	g, err := client.Get(context.Background(), "missing")
	assert.Nil(t, g)
	assert.True(t, IsNotFound(err))
}

func TestListByOwner(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	tick := 0
	client.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := client.Create(ctx, "alice", testPayload("1"))
	require.NoError(t, err)
	second, err := client.Create(ctx, "alice", testPayload("2"))
	require.NoError(t, err)
	_, err = client.Create(ctx, "bob", testPayload("3"))
	require.NoError(t, err)

	gists, err := client.ListByOwner(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, gists, 2)
	assert.Equal(t, second.ID, gists[0].ID)
	assert.Equal(t, first.ID, gists[1].ID)

	gists, err = client.ListByOwner(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, gists, 1)
	assert.Equal(t, second.ID, gists[0].ID)

	gists, err = client.ListByOwner(ctx, "carol", 0)
	require.NoError(t, err)
	assert.Empty(t, gists)
}

func TestSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	g, err := client.Create(ctx, "alice", testPayload("x"))
	require.NoError(t, err)
	_, err = client.Update(ctx, g.ID, "alice", testPayload("y"))
	require.NoError(t, err)

	for _, want := range []EventType{EventCreated, EventUpdated} {
		select {
		case event := <-sub.Events():
			assert.Equal(t, want, event.Type)
			assert.Equal(t, g.ID, event.Gist.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s event", want)
		}
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}

func TestScanIDs(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	a, err := client.Create(ctx, "alice", testPayload("// a"))
	require.NoError(t, err)
	b, err := client.Create(ctx, "bob", testPayload("// b"))
	require.NoError(t, err)

	all, err := client.ScanIDs(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, all)

	one, err := client.ScanIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, one)

	none, err := client.ScanIDs(ctx, "ZZZZZZZZ")
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := client.Exists(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGistRef(t *testing.T) {
	var nilGist *Gist
	assert.Nil(t, nilGist.Ref())

	g := &Gist{ID: "g1", Owner: "alice"}
	assert.Equal(t, &Ref{ID: "g1", Owner: "alice"}, g.Ref())
}
