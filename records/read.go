package records

import (
	"context"
	"io"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/mstore"
)

// Read implements RecordsRead: the latest base state for recordId,
// visibility-checked against requesterDID (honoring protocolRole when the
// requester invoked one), with its data opened from the data store when the
// descriptor names one.
func (h *Handler) Read(ctx context.Context, tenant, requesterDID, recordID, protocolRole string) (*dwn.Message, io.ReadCloser, error) {
	res, err := h.Query(ctx, tenant, requesterDID, QueryRequest{
		Filters:      []mstore.Filter{{dwn.FieldRecordID: {Equals: recordID}}},
		Limit:        1,
		ProtocolRole: protocolRole,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(res.MessageCIDs) == 0 {
		return nil, nil, classify(ErrRecordNotFound)
	}
	messageCID := res.MessageCIDs[0]

	msg, ok, err := h.store.Get(ctx, tenant, messageCID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, classify(ErrRecordNotFound)
	}

	dataCID, hasData := msg.Descriptor.DataCID()
	if !hasData || dataCID == "" {
		return msg, nil, nil
	}
	r, _, err := h.data.Get(ctx, tenant, messageCID, dataCID)
	if err != nil {
		return msg, nil, err
	}
	return msg, r, nil
}
