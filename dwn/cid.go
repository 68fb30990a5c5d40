package dwn

import "github.com/forestrie/go-dwn/cidcbor"

// DescriptorCID computes the CID of a descriptor alone, the value an
// authorization's payload.descriptorCid must equal.
func DescriptorCID(d Descriptor) (cidcbor.CID, error) {
	return cidcbor.CIDOf(map[string]any(d))
}

// MessageCID computes the CID of a message's descriptor and authorization,
// excluding EncodedData, so the same logical message has the same CID
// whether its data is inlined or stored by reference.
func MessageCID(m Message) (cidcbor.CID, error) {
	view := map[string]any{
		"descriptor": map[string]any(m.Descriptor),
	}
	if m.Authorization != nil {
		sigs := make([]map[string]any, len(m.Authorization.Signatures))
		for i, s := range m.Authorization.Signatures {
			sigs[i] = map[string]any{
				"protected": s.Protected,
				"signature": s.Signature,
			}
		}
		view["authorization"] = map[string]any{
			"payload": map[string]any{
				"descriptorCid":      m.Authorization.Payload.DescriptorCID,
				"permissionsGrantId": m.Authorization.Payload.PermissionsGrantID,
				"protocolRole":       m.Authorization.Payload.ProtocolRole,
				"attestationCid":     m.Authorization.Payload.AttestationCID,
			},
			"signatures": sigs,
		}
	}
	return cidcbor.CIDOf(view)
}

// EntryID computes the entryId of an initial write: the CID of its
// descriptor bound to its author, which becomes the recordId every later
// write for the same logical record carries. recordId
// is necessarily absent from that descriptor at the moment its own entryId
// is minted, so it is excluded here too -- this makes EntryID idempotent
// under a descriptor that already carries the recordId it produced, which
// is what every later caller (including Write's own initial-write check)
// passes in.
func EntryID(d Descriptor, authorDID string) (cidcbor.CID, error) {
	stripped := d.Clone()
	delete(stripped, FieldRecordID)
	view := map[string]any{
		"descriptor": map[string]any(stripped),
		"author":     authorDID,
	}
	return cidcbor.CIDOf(view)
}
