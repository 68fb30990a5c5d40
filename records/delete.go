package records

import (
	"context"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

// Delete implements RecordsDelete: a tombstone message accepted iff it is
// newer (by messageTimestamp) than the record's current latest write. It
// supersedes the record's visibility (tombstoned records no longer satisfy
// method=Write so Query/Read stop finding them) and removes the
// associated data bytes; the tombstone message itself is retained.
//
// tombstone.Descriptor should carry the same immutable properties
// (recordId, dateCreated, protocol, protocolPath, schema, parentId,
// recipient) as the record's current latest write: a later RecordsWrite is
// checked against whatever descriptor is currently latest, tombstone
// included. Undelete follows from the same rule: a newer write that
// validates immutables is accepted regardless of the tombstone, which
// requires the tombstone to actually carry them.
func (h *Handler) Delete(ctx context.Context, tenant, messageCID string, tombstone dwn.Message, authorDID string) error {
	recordID := tombstone.Descriptor.RecordID()
	if recordID == "" {
		return classify(ErrMissingRecordID)
	}

	if authorDID != tenant {
		if err := h.authorize(ctx, tenant, tombstone, authorDID, dwn.MethodDelete); err != nil {
			return err
		}
	}

	prior, err := h.latest(ctx, tenant, recordID)
	if err != nil {
		return err
	}
	if prior == nil {
		return classify(ErrRecordNotFound)
	}
	// Re-submitting the tombstone that is already latest is a no-op.
	if prior.MessageCID == messageCID {
		return nil
	}
	if !isNewer(prior.Message.Descriptor.MessageTimestamp(), tombstone.Descriptor.MessageTimestamp(), prior.MessageCID, messageCID) {
		return classify(ErrNotNewer)
	}

	indexed := map[string]string{
		dwn.FieldMessageTimestamp: tombstone.Descriptor.MessageTimestamp(),
		dwn.FieldRecordID:         recordID,
		AttrInterface:             "Records",
		AttrMethod:                string(dwn.MethodDelete),
		AttrIsLatestBaseState:     trueValue,
		AttrAuthor:                authorDID,
		AttrInitialMessageCID:     prior.InitialMessageCID,
	}
	if err := h.store.Put(ctx, tenant, messageCID, tombstone, indexed); err != nil {
		return err
	}

	demoted := h.writeIndex(prior.Message, prior.Author, recordID, prior.InitialMessageCID, false)
	if err := h.reindex(ctx, tenant, prior.MessageCID, *prior, demoted); err != nil {
		return err
	}

	if dataCID, hasData := prior.Message.Descriptor.DataCID(); hasData && dataCID != "" {
		if err := h.data.Delete(ctx, tenant, prior.MessageCID, dataCID); err != nil {
			return err
		}
	}

	if _, err := h.log.Append(ctx, tenant, messageCID, indexed); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "AppendRecordsEvent", err)
	}
	return nil
}
