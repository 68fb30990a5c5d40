package protocolauth_test

import (
	"context"
	"testing"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/protocolauth"
	"github.com/stretchr/testify/require"
)

const tenant = "did:example:alice"

func putAncestor(t *testing.T, store *mstore.Store, recordID, protocolPath, author, recipient, messageCID string) {
	t.Helper()
	msg := dwn.Message{Descriptor: dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceRecords),
		dwn.FieldMethod:           string(dwn.MethodWrite),
		dwn.FieldRecordID:         recordID,
		dwn.FieldProtocolPath:     protocolPath,
		dwn.FieldRecipient:        recipient,
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
	}}
	err := store.Put(context.Background(), tenant, messageCID, msg, map[string]string{
		dwn.FieldRecordID:         recordID,
		dwn.FieldProtocolPath:     protocolPath,
		dwn.FieldRecipient:        recipient,
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
		"author":                  author,
		"isLatestBaseState":       "true",
	})
	require.NoError(t, err)
}

func threadDef() *protocolauth.Definition {
	return &protocolauth.Definition{
		Protocol:  "https://example.com/thread",
		Published: true,
		Root: &protocolauth.Node{
			Children: map[string]*protocolauth.Node{
				"thread": {
					Actions: []protocolauth.ActionRule{
						{Class: protocolauth.ActorAnyone, Methods: []dwn.Method{dwn.MethodWrite}},
					},
					Children: map[string]*protocolauth.Node{
						"admin": {
							IsRole: true,
						},
						"reply": {
							Actions: []protocolauth.ActionRule{
								{Class: protocolauth.ActorAuthorOf, Of: "thread", Methods: []dwn.Method{dwn.MethodWrite}},
								{Class: protocolauth.ActorRole, Of: "thread/admin", Methods: []dwn.Method{dwn.MethodWrite, dwn.MethodDelete}},
							},
							DataFormats: []string{"text/plain"},
						},
					},
				},
			},
		},
	}
}

func TestEvaluateAnyoneRuleAllowsRootWrite(t *testing.T) {
	store := mstore.New(memkv.New())
	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{dwn.FieldProtocolPath: "thread"},
		AuthorDID:  "did:example:bob",
		Method:     dwn.MethodWrite,
	}
	require.NoError(t, protocolauth.Evaluate(context.Background(), tenant, def, resolver, req))
}

func TestEvaluateRuleNotFoundForUnknownPath(t *testing.T) {
	store := mstore.New(memkv.New())
	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{dwn.FieldProtocolPath: "bogus"},
		AuthorDID:  "did:example:bob",
		Method:     dwn.MethodWrite,
	}
	require.Error(t, protocolauth.Evaluate(context.Background(), tenant, def, resolver, req))
}

func TestEvaluateAuthorOfAncestorAllowsReply(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1")

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "thread-1",
			dwn.FieldDataFormat:   "text/plain",
		},
		AuthorDID: "did:example:bob",
		Method:    dwn.MethodWrite,
	}
	require.NoError(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}

func TestEvaluateAuthorOfAncestorRejectsOtherAuthor(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1")

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "thread-1",
			dwn.FieldDataFormat:   "text/plain",
		},
		AuthorDID: "did:example:carol",
		Method:    dwn.MethodWrite,
	}
	require.Error(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}

func TestEvaluateRoleGrantsReplyDelete(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1")
	putAncestor(t, store, "admin-grant-1", "thread/admin", "did:example:alice", "did:example:carol", "cid-admin-1")

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "thread-1",
			dwn.FieldDataFormat:   "text/plain",
		},
		AuthorDID: "did:example:carol",
		Method:    dwn.MethodDelete,
	}
	require.NoError(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}

func TestEvaluateInvokedRoleMustBeHeld(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1")

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "thread-1",
			dwn.FieldDataFormat:   "text/plain",
		},
		AuthorDID:    "did:example:carol",
		Method:       dwn.MethodWrite,
		ProtocolRole: "thread/admin",
	}
	require.Error(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))

	putAncestor(t, store, "admin-grant-1", "thread/admin", "did:example:alice", "did:example:carol", "cid-admin-1")
	require.NoError(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}

func TestEvaluateDataFormatMismatch(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1")

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "thread-1",
			dwn.FieldDataFormat:   "application/json",
		},
		AuthorDID: "did:example:bob",
		Method:    dwn.MethodWrite,
	}
	require.Error(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}

func TestResolveRecordRejectsAmbiguousLatestBaseState(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	resolver := protocolauth.NewAncestryResolver(store)

	// Two stored messages both claiming isLatestBaseState=true for the same
	// recordId violates the exactly-one-latest-base-state invariant;
	// ResolveRecord must refuse to guess rather than silently pick one.
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1a")
	putAncestor(t, store, "thread-1", "thread", "did:example:bob", "", "cid-thread-1b")

	_, err := resolver.ResolveRecord(ctx, tenant, "thread-1")
	require.Error(t, err)
}

func TestEvaluateMissingParentFailsChainConstruction(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())

	resolver := protocolauth.NewAncestryResolver(store)
	def := threadDef()

	req := protocolauth.Request{
		Descriptor: dwn.Descriptor{
			dwn.FieldProtocolPath: "thread/reply",
			dwn.FieldParentID:     "missing-thread",
			dwn.FieldDataFormat:   "text/plain",
		},
		AuthorDID: "did:example:bob",
		Method:    dwn.MethodWrite,
	}
	require.Error(t, protocolauth.Evaluate(ctx, tenant, def, resolver, req))
}
