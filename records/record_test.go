package records_test

import (
	"context"
	"io"
	"testing"

	"github.com/forestrie/go-dwn/dstore"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/protocolauth"
	"github.com/forestrie/go-dwn/records"
	"github.com/stretchr/testify/require"
)

const tenant = "did:example:alice"

func newHandler() *records.Handler {
	store := mstore.New(memkv.New())
	data := dstore.New(memkv.New())
	log := eventlog.New(memkv.New())
	ancestry := protocolauth.NewAncestryResolver(store)
	return records.NewHandler(store, data, log, nil, nil, ancestry)
}

func initialDescriptor(t *testing.T, schema, protocol, timestamp string) dwn.Descriptor {
	t.Helper()
	d := dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceRecords),
		dwn.FieldMethod:           string(dwn.MethodWrite),
		dwn.FieldSchema:           schema,
		dwn.FieldProtocol:         protocol,
		dwn.FieldDateCreated:      "2024-01-01T00:00:00Z",
		dwn.FieldMessageTimestamp: timestamp,
	}
	entryID, err := dwn.EntryID(d, tenant)
	require.NoError(t, err)
	d[dwn.FieldRecordID] = entryID.String()
	return d
}

func TestWriteInitialRecordThenRead(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")

	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	msg, data, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.NoError(t, err)
	require.Nil(t, data)
	require.Equal(t, "schema-1", msg.Descriptor.Schema())
}

func TestWriteConflictWhenNotNewer(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	older := d.Clone()
	older[dwn.FieldMessageTimestamp] = "2023-01-01T00:00:00Z"
	err := h.Write(ctx, tenant, "cid-0", dwn.Message{Descriptor: older}, tenant, nil)
	require.Error(t, err)
}

func TestWriteResubmitOfLatestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	msg, _, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.NoError(t, err)
	require.Equal(t, "schema-1", msg.Descriptor.Schema())
}

func TestWriteRejectsImmutableMismatch(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	mutated := d.Clone()
	mutated[dwn.FieldSchema] = "schema-2"
	mutated[dwn.FieldMessageTimestamp] = "2024-02-01T00:00:00Z"
	err := h.Write(ctx, tenant, "cid-2", dwn.Message{Descriptor: mutated}, tenant, nil)
	require.Error(t, err)
}

func TestWriteNewerReplacesLatestAndPrunesIntermediate(t *testing.T) {
	ctx := context.Background()
	store := mstore.New(memkv.New())
	h := records.NewHandler(store, dstore.New(memkv.New()), eventlog.New(memkv.New()), nil, nil, protocolauth.NewAncestryResolver(store))
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	v2 := d.Clone()
	v2[dwn.FieldMessageTimestamp] = "2024-02-01T00:00:00Z"
	require.NoError(t, h.Write(ctx, tenant, "cid-2", dwn.Message{Descriptor: v2}, tenant, nil))

	v3 := d.Clone()
	v3[dwn.FieldMessageTimestamp] = "2024-03-01T00:00:00Z"
	require.NoError(t, h.Write(ctx, tenant, "cid-3", dwn.Message{Descriptor: v3}, tenant, nil))

	msg, _, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.NoError(t, err)
	require.Equal(t, "2024-03-01T00:00:00Z", msg.Descriptor.MessageTimestamp())

	versions, err := store.Query(ctx, tenant, mstore.QuerySpec{
		Filters: []mstore.Filter{{dwn.FieldRecordID: {Equals: d.RecordID()}}},
		Limit:   10,
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"cid-1", "cid-3"}, versions.MessageCIDs)
}

func TestWriteWithInlineDataRoundTrips(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	payload := []byte("hello world")
	cid, err := dstore.DataCID(payload)
	require.NoError(t, err)

	d := dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceRecords),
		dwn.FieldMethod:           string(dwn.MethodWrite),
		dwn.FieldSchema:           "schema-1",
		dwn.FieldDateCreated:      "2024-01-01T00:00:00Z",
		dwn.FieldMessageTimestamp: "2024-01-01T00:00:00Z",
		dwn.FieldDataCID:          cid,
		dwn.FieldDataSize:         int64(len(payload)),
	}
	entryID, err := dwn.EntryID(d, tenant)
	require.NoError(t, err)
	d[dwn.FieldRecordID] = entryID.String()

	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d, EncodedData: payload}, tenant, nil))

	_, r, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDeleteHidesRecordThenUndeleteRestoresIt(t *testing.T) {
	ctx := context.Background()
	h := newHandler()
	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	tombstone := dwn.Descriptor{
		dwn.FieldInterface:        string(dwn.InterfaceRecords),
		dwn.FieldMethod:           string(dwn.MethodDelete),
		dwn.FieldRecordID:         d.RecordID(),
		dwn.FieldSchema:           d.Schema(),
		dwn.FieldProtocol:         d.Protocol(),
		dwn.FieldDateCreated:      d.DateCreated(),
		dwn.FieldMessageTimestamp: "2024-02-01T00:00:00Z",
	}
	require.NoError(t, h.Delete(ctx, tenant, "cid-tombstone", dwn.Message{Descriptor: tombstone}, tenant))

	_, _, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.Error(t, err)

	undelete := d.Clone()
	undelete[dwn.FieldMessageTimestamp] = "2024-03-01T00:00:00Z"
	require.NoError(t, h.Write(ctx, tenant, "cid-undelete", dwn.Message{Descriptor: undelete}, tenant, nil))

	msg, _, err := h.Read(ctx, tenant, tenant, d.RecordID(), "")
	require.NoError(t, err)
	require.Equal(t, "2024-03-01T00:00:00Z", msg.Descriptor.MessageTimestamp())
}

func TestQueryVisibilityExcludesUnpublishedForNonOwner(t *testing.T) {
	ctx := context.Background()
	h := newHandler()

	priv := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	require.NoError(t, h.Write(ctx, tenant, "cid-priv", dwn.Message{Descriptor: priv}, tenant, nil))

	pub := initialDescriptor(t, "schema-1", "", "2024-01-02T00:00:00Z")
	pub[dwn.FieldPublished] = true
	require.NoError(t, h.Write(ctx, tenant, "cid-pub", dwn.Message{Descriptor: pub}, tenant, nil))

	res, err := h.Query(ctx, tenant, "did:example:stranger", records.QueryRequest{
		Filters: []mstore.Filter{{dwn.FieldSchema: {Equals: "schema-1"}}},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"cid-pub"}, res.MessageCIDs)
}

func TestQueryVisibilityIncludesRecipient(t *testing.T) {
	ctx := context.Background()
	h := newHandler()

	d := initialDescriptor(t, "schema-1", "", "2024-01-01T00:00:00Z")
	d[dwn.FieldRecipient] = "did:example:bob"
	require.NoError(t, h.Write(ctx, tenant, "cid-1", dwn.Message{Descriptor: d}, tenant, nil))

	res, err := h.Query(ctx, tenant, "did:example:bob", records.QueryRequest{
		Filters: []mstore.Filter{{dwn.FieldSchema: {Equals: "schema-1"}}},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"cid-1"}, res.MessageCIDs)
}
