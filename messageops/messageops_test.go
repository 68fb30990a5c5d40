package messageops_test

import (
	"context"
	"testing"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/messageops"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/stretchr/testify/require"
)

const tenant = "did:example:alice"

func recordMsg(schema, timestamp string) dwn.Message {
	return dwn.Message{Descriptor: dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceRecords),
		dwn.FieldMethod:           string(dwn.MethodWrite),
		dwn.FieldSchema:           schema,
		dwn.FieldMessageTimestamp: timestamp,
	}}
}

func TestMessagesGetOwnerAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := messageops.NewHandler(store, log, nil)

	msg := recordMsg("s1", "2024-01-01T00:00:00Z")
	require.NoError(t, store.Put(ctx, tenant, "cid-1", msg, map[string]string{
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
	}))

	got, err := h.MessagesGet(ctx, tenant, tenant, "cid-1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.Descriptor.Schema())
}

func TestMessagesGetNonOwnerRequiresGrant(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := messageops.NewHandler(store, log, nil)

	msg := recordMsg("s1", "2024-01-01T00:00:00Z")
	require.NoError(t, store.Put(ctx, tenant, "cid-1", msg, map[string]string{
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
	}))

	_, err := h.MessagesGet(ctx, tenant, "did:example:bob", "cid-1")
	require.Error(t, err)
}

func TestMessagesGetNonOwnerWithGrantSucceeds(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	grants := permissions.NewIndex(store)
	permHandler := permissions.NewHandler(store, log)

	grantMsg := dwn.Message{Descriptor: dwn.Descriptor{
		dwn.FieldInterface:           string(dwn.InterfacePermissions),
		dwn.FieldMethod:              string(dwn.MethodGrant),
		dwn.FieldRecordID:            "grant-1",
		dwn.FieldMessageTimestamp:    "2024-01-01T00:00:00Z",
		permissions.FieldGrantor:     tenant,
		permissions.FieldGrantee:     "did:example:bob",
		permissions.FieldDateExpires: "2099-01-01T00:00:00Z",
		permissions.FieldScope: map[string]any{
			"interface": string(dwn.InterfaceRecords),
			"method":    string(dwn.MethodWrite),
		},
	}}
	require.NoError(t, permHandler.Grant(ctx, tenant, "cid-grant-1", grantMsg))

	h := messageops.NewHandler(store, log, grants)
	msg := recordMsg("s1", "2024-02-01T00:00:00Z")
	require.NoError(t, store.Put(ctx, tenant, "cid-1", msg, map[string]string{
		dwn.FieldMessageTimestamp: "2024-02-01T00:00:00Z",
	}))

	got, err := h.MessagesGet(ctx, tenant, "did:example:bob", "cid-1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.Descriptor.Schema())
}

func TestMessagesSubscribeNonOwnerWithoutGrantFails(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := messageops.NewHandler(store, log, nil)

	_, err := h.MessagesSubscribe(ctx, tenant, "did:example:bob")
	require.Error(t, err)
}
