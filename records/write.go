package records

import (
	"bytes"
	"context"
	"reflect"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/dwnerr"
)

// Write implements RecordsWrite. tenant is the owning
// tenant's DID; authorDID is the already-authenticated signer (resolved by
// jws/did upstream of this package). data is the record's payload when it
// was not carried inline as msg.EncodedData (e.g. a large upload streamed
// separately); pass nil when EncodedData already carries the whole thing
// or the write has no data field at all.
func (h *Handler) Write(ctx context.Context, tenant, messageCID string, msg dwn.Message, authorDID string, data *bytes.Reader) error {
	recordID := msg.Descriptor.RecordID()
	if recordID == "" {
		return classify(ErrMissingRecordID)
	}

	if authorDID != tenant {
		if err := h.authorize(ctx, tenant, msg, authorDID, dwn.MethodWrite); err != nil {
			return err
		}
	}

	prior, err := h.latest(ctx, tenant, recordID)
	if err != nil {
		return err
	}

	var initialMessageCID string

	if prior == nil {
		entryID, err := dwn.EntryID(msg.Descriptor, authorDID)
		if err != nil {
			return dwnerr.New(dwnerr.KindInternal, "ComputeEntryId", err)
		}
		if recordID != entryID.String() {
			return classify(ErrNotInitialWrite)
		}
		if parentID, ok := msg.Descriptor.ParentID(); ok && parentID != "" {
			if _, err := h.ancestry.ResolveRecord(ctx, tenant, parentID); err != nil {
				return classify(ErrParentNotFound)
			}
		}
		initialMessageCID = messageCID
	} else {
		// Re-submitting the write that is already the latest base state is a
		// no-op with the same terminal state, not a conflict.
		if prior.MessageCID == messageCID {
			return nil
		}
		if err := checkImmutable(prior, msg.Descriptor, authorDID); err != nil {
			return err
		}
		// prior is already an established record state by construction: the
		// "no prior" branch above is the only path that ever creates one, so
		// the initial-write dateCreated comparison never triggers here and
		// messageTimestamp is always the primary ordering key.
		if !isNewer(prior.Message.Descriptor.MessageTimestamp(), msg.Descriptor.MessageTimestamp(), prior.MessageCID, messageCID) {
			return classify(ErrNotNewer)
		}
		initialMessageCID = prior.InitialMessageCID
	}

	dataCID, hasData := msg.Descriptor.DataCID()
	if hasData {
		if err := h.storeData(ctx, tenant, messageCID, msg, dataCID, data); err != nil {
			return err
		}
	}

	indexed := h.writeIndex(msg, authorDID, recordID, initialMessageCID, true)
	if err := h.store.Put(ctx, tenant, messageCID, msg, indexed); err != nil {
		return err
	}

	if prior != nil {
		demoted := h.writeIndex(prior.Message, prior.Author, recordID, prior.InitialMessageCID, false)
		if err := h.reindex(ctx, tenant, prior.MessageCID, *prior, demoted); err != nil {
			return err
		}
		if err := h.pruneIntermediates(ctx, tenant, recordID, initialMessageCID, messageCID); err != nil {
			return err
		}
	}

	if _, err := h.log.Append(ctx, tenant, messageCID, indexed); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "AppendRecordsEvent", err)
	}
	return nil
}

func (h *Handler) storeData(ctx context.Context, tenant, messageCID string, msg dwn.Message, wantCID string, data *bytes.Reader) error {
	var r *bytes.Reader
	switch {
	case data != nil:
		r = data
	case msg.EncodedData != nil:
		r = bytes.NewReader(msg.EncodedData)
	default:
		// No bytes were provided: the write references data an earlier
		// message already stored. Associate rather than rewrite.
		ok, err := h.data.Associate(ctx, tenant, wantCID, messageCID)
		if err != nil {
			return err
		}
		if !ok {
			return classify(ErrDataMissing)
		}
		return nil
	}
	gotCID, _, err := h.data.Put(ctx, tenant, messageCID, r)
	if err != nil {
		return err
	}
	if gotCID != wantCID {
		return classify(ErrDataCIDMismatch)
	}
	return nil
}

func (h *Handler) writeIndex(msg dwn.Message, author, recordID, initialMessageCID string, isLatest bool) map[string]string {
	d := msg.Descriptor
	indexed := map[string]string{
		dwn.FieldMessageTimestamp: d.MessageTimestamp(),
		dwn.FieldRecordID:         recordID,
		dwn.FieldProtocol:         d.Protocol(),
		dwn.FieldProtocolPath:     d.ProtocolPath(),
		dwn.FieldSchema:           d.Schema(),
		dwn.FieldRecipient:        d.Recipient(),
		dwn.FieldContextID:        d.ContextID(),
		dwn.FieldDataFormat:       d.DataFormat(),
		dwn.FieldDateCreated:      d.DateCreated(),
		dwn.FieldPublished:        boolAttr(d.Published()),
		AttrInterface:             "Records",
		AttrMethod:                string(d.Method()),
		AttrIsLatestBaseState:     boolAttr(isLatest),
		AttrAuthor:                author,
		AttrInitialMessageCID:     initialMessageCID,
	}
	if dp, ok := d.DatePublished(); ok {
		indexed[dwn.FieldDatePublished] = dp
	}
	return indexed
}

// checkImmutable enforces the immutable-property rule. A later
// write may come from a different authorized party than the initial write
// (a grant holder or role holder, not just the original author), so
// authorDID is accepted but never compared against prior.Author here.
func checkImmutable(prior *RecordState, incoming dwn.Descriptor, authorDID string) error {
	for _, field := range immutableFields {
		if !reflect.DeepEqual(prior.Message.Descriptor[field], incoming[field]) {
			return classify(ErrImmutableMismatch)
		}
	}
	return nil
}

func isNewer(priorTimestamp, incomingTimestamp, priorCID, incomingCID string) bool {
	if incomingTimestamp != priorTimestamp {
		return incomingTimestamp > priorTimestamp
	}
	return incomingCID > priorCID
}

// pruneIntermediates implements the retention rule:
// keep the initial write (already re-indexed with isLatestBaseState=false
// above when it is also the prior) and the new latest; delete every other
// stored version of this record.
func (h *Handler) pruneIntermediates(ctx context.Context, tenant, recordID, initialMessageCID, latestMessageCID string) error {
	res, err := h.store.Query(ctx, tenant, allVersionsSpec(recordID))
	if err != nil {
		return err
	}
	for _, cid := range res.MessageCIDs {
		if cid == initialMessageCID || cid == latestMessageCID {
			continue
		}
		msg, ok, err := h.store.Get(ctx, tenant, cid)
		if err != nil {
			return err
		}
		if err := h.store.Delete(ctx, tenant, cid); err != nil {
			return err
		}
		if !ok {
			continue
		}
		if dataCID, hasData := msg.Descriptor.DataCID(); hasData && dataCID != "" {
			if err := h.data.Delete(ctx, tenant, cid, dataCID); err != nil {
				return err
			}
		}
	}
	return nil
}
