package protocols_test

import (
	"context"
	"testing"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/protocols"
	"github.com/stretchr/testify/require"
)

const tenant = "did:example:alice"

func configureMsg(protocol string, published bool) dwn.Message {
	return dwn.Message{Descriptor: dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceProtocols),
		dwn.FieldMethod:           string(dwn.MethodConfigure),
		dwn.FieldProtocol:         protocol,
		dwn.FieldPublished:        published,
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
		protocols.FieldDefinition: map[string]any{
			"types": map[string]any{
				"thread": map[string]any{
					"actions": []any{
						map[string]any{"who": "anyone", "can": []any{"Write"}},
					},
				},
			},
		},
	}}
}

func newHandler() *protocols.Handler {
	store := mstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	return protocols.NewHandler(store, log)
}

func TestConfigureLargestMessageCidWins(t *testing.T) {
	ctx := context.Background()
	h := newHandler()

	require.NoError(t, h.Configure(ctx, tenant, "cid-aaa", configureMsg("https://example.com/p1", true)))
	require.NoError(t, h.Configure(ctx, tenant, "cid-zzz", configureMsg("https://example.com/p1", true)))
	require.NoError(t, h.Configure(ctx, tenant, "cid-bbb", configureMsg("https://example.com/p1", true)))

	def, ok, err := h.Lookup(ctx, tenant, "https://example.com/p1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://example.com/p1", def.Protocol)

	res, err := h.Query(ctx, tenant, "https://example.com/p1", false)
	require.NoError(t, err)
	require.Equal(t, []string{"cid-zzz"}, res.MessageCIDs)
}

func TestQueryAnonymousOnlySeesPublished(t *testing.T) {
	ctx := context.Background()
	h := newHandler()

	require.NoError(t, h.Configure(ctx, tenant, "cid-priv", configureMsg("https://example.com/private", false)))
	require.NoError(t, h.Configure(ctx, tenant, "cid-pub", configureMsg("https://example.com/public", true)))

	res, err := h.Query(ctx, tenant, "", true)
	require.NoError(t, err)
	require.Equal(t, []string{"cid-pub"}, res.MessageCIDs)

	res, err = h.Query(ctx, tenant, "", false)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"cid-priv", "cid-pub"}, res.MessageCIDs)
}

func TestLookupDecodesActionRules(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	require.NoError(t, h.Configure(ctx, tenant, "cid-1", configureMsg("https://example.com/p1", true)))

	def, ok, err := h.Lookup(ctx, tenant, "https://example.com/p1")
	require.NoError(t, err)
	require.True(t, ok)
	thread, ok := def.Root.Children["thread"]
	require.True(t, ok)
	require.Len(t, thread.Actions, 1)
	require.Equal(t, dwn.MethodWrite, thread.Actions[0].Methods[0])
}
