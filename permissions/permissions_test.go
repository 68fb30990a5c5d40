package permissions_test

import (
	"context"
	"testing"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/stretchr/testify/require"
)

func grantMessage(grantee, protocol, dateExpires string) dwn.Message {
	return dwn.Message{
		Descriptor: dwn.Descriptor{
			dwn.FieldInterface:           string(dwn.InterfacePermissions),
			dwn.FieldMethod:              string(dwn.MethodGrant),
			dwn.FieldRecordID:            "grant-1",
			dwn.FieldMessageTimestamp:    "2024-01-01T00:00:00Z",
			permissions.FieldGrantor:     "did:example:alice",
			permissions.FieldGrantee:     grantee,
			permissions.FieldDateExpires: dateExpires,
			permissions.FieldScope: map[string]any{
				"interface": string(dwn.InterfaceRecords),
				"method":    string(dwn.MethodWrite),
				"protocol":  protocol,
			},
		},
	}
}

func TestResolveFindsActiveGrant(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := permissions.NewHandler(store, log)

	msg := grantMessage("did:example:bob", "https://example.com/p1", "2099-01-01T00:00:00Z")
	require.NoError(t, h.Grant(ctx, "did:example:alice", "cid-grant-1", msg))

	idx := permissions.NewIndex(store)
	grant, err := idx.Resolve(ctx, "did:example:alice", permissions.Candidate{
		Interface:        dwn.InterfaceRecords,
		Method:           dwn.MethodWrite,
		Protocol:         "https://example.com/p1",
		AuthorDID:        "did:example:bob",
		MessageTimestamp: "2024-06-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, "did:example:bob", grant.Grantee)
}

func TestResolveProtocolMismatch(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := permissions.NewHandler(store, log)

	msg := grantMessage("did:example:bob", "https://example.com/p1", "2099-01-01T00:00:00Z")
	require.NoError(t, h.Grant(ctx, "did:example:alice", "cid-grant-1", msg))

	idx := permissions.NewIndex(store)
	_, err := idx.Resolve(ctx, "did:example:alice", permissions.Candidate{
		Interface:        dwn.InterfaceRecords,
		Method:           dwn.MethodWrite,
		Protocol:         "https://example.com/other",
		AuthorDID:        "did:example:bob",
		MessageTimestamp: "2024-06-01T00:00:00Z",
	})
	require.Error(t, err)
}

func TestResolveExpiredGrant(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := permissions.NewHandler(store, log)

	msg := grantMessage("did:example:bob", "https://example.com/p1", "2020-01-01T00:00:00Z")
	require.NoError(t, h.Grant(ctx, "did:example:alice", "cid-grant-1", msg))

	idx := permissions.NewIndex(store)
	_, err := idx.Resolve(ctx, "did:example:alice", permissions.Candidate{
		Interface:        dwn.InterfaceRecords,
		Method:           dwn.MethodWrite,
		Protocol:         "https://example.com/p1",
		AuthorDID:        "did:example:bob",
		MessageTimestamp: "2024-06-01T00:00:00Z",
	})
	require.Error(t, err)
}

func TestResolveRevokedGrant(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	h := permissions.NewHandler(store, log)

	msg := grantMessage("did:example:bob", "https://example.com/p1", "2099-01-01T00:00:00Z")
	require.NoError(t, h.Grant(ctx, "did:example:alice", "cid-grant-1", msg))

	revoke := dwn.Message{Descriptor: dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfacePermissions),
		dwn.FieldMethod:           string(dwn.MethodRevoke),
		dwn.FieldMessageTimestamp: "2024-02-01T00:00:00Z",
		permissions.FieldGrantID:  "grant-1",
	}}
	require.NoError(t, h.Revoke(ctx, "did:example:alice", "cid-revoke-1", revoke))

	idx := permissions.NewIndex(store)
	_, err := idx.Resolve(ctx, "did:example:alice", permissions.Candidate{
		Interface:        dwn.InterfaceRecords,
		Method:           dwn.MethodWrite,
		Protocol:         "https://example.com/p1",
		AuthorDID:        "did:example:bob",
		MessageTimestamp: "2024-06-01T00:00:00Z",
	})
	require.Error(t, err)
}

func TestResolveNoGrantReturnsMissing(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	idx := permissions.NewIndex(store)
	_, err := idx.Resolve(ctx, "did:example:alice", permissions.Candidate{
		Interface: dwn.InterfaceRecords,
		Method:    dwn.MethodWrite,
		AuthorDID: "did:example:bob",
	})
	require.Error(t, err)
}
