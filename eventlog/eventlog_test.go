package eventlog_test

import (
	"context"
	"testing"

	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/stretchr/testify/require"
)

func TestAppendMonotonicWatermarks(t *testing.T) {
	ctx := context.Background()
	log := eventlog.New(memkv.New())

	var last uint64
	for i := 0; i < 5; i++ {
		w, err := log.Append(ctx, "did:example:alice", "cid-a", nil)
		require.NoError(t, err)
		require.Greater(t, w, last)
		last = w
	}
}

func TestQueryCursorReturnsOnlyNewEntries(t *testing.T) {
	ctx := context.Background()
	log := eventlog.New(memkv.New())

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, "did:example:alice", "cid-"+string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	first, err := log.Query(ctx, "did:example:alice", nil, "", 5)
	require.NoError(t, err)
	require.Len(t, first.MessageCIDs, 5)
	require.NotEmpty(t, first.NextCursor)

	_, err = log.Append(ctx, "did:example:alice", "cid-f", nil)
	require.NoError(t, err)

	second, err := log.Query(ctx, "did:example:alice", nil, first.NextCursor, 100)
	require.NoError(t, err)
	require.Equal(t, []string{"cid-f"}, second.MessageCIDs)
}

func TestQueryFiltersByIndexedAttribute(t *testing.T) {
	ctx := context.Background()
	log := eventlog.New(memkv.New())

	_, err := log.Append(ctx, "did:example:alice", "cid-a", map[string]string{"interface": "Records"})
	require.NoError(t, err)
	_, err = log.Append(ctx, "did:example:alice", "cid-b", map[string]string{"interface": "Protocols"})
	require.NoError(t, err)

	res, err := log.Query(ctx, "did:example:alice", []mstore.Filter{{"interface": {Equals: "Records"}}}, "", 100)
	require.NoError(t, err)
	require.Equal(t, []string{"cid-a"}, res.MessageCIDs)
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	log := eventlog.New(memkv.New())

	_, err := log.Append(ctx, "did:example:alice", "cid-a", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, "did:example:bob", "cid-b", nil)
	require.NoError(t, err)

	res, err := log.Query(ctx, "did:example:alice", nil, "", 100)
	require.NoError(t, err)
	require.Equal(t, []string{"cid-a"}, res.MessageCIDs)
}

func TestSubscribeReceivesNewEvents(t *testing.T) {
	ctx := context.Background()
	log := eventlog.New(memkv.New())

	sub := log.Subscribe("did:example:alice")
	defer sub.Close()

	_, err := log.Append(ctx, "did:example:alice", "cid-a", nil)
	require.NoError(t, err)

	evt := <-sub.Events
	require.Equal(t, "cid-a", evt.MessageCID)
}
