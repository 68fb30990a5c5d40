// Package pipeline is the single entry point that routes a parsed message
// to its handler: validate, authenticate, route, handle, shape the reply.
// It composes every other component package; nothing downstream of it
// imports pipeline.
package pipeline

import (
	"io"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/records"
)

// Request is one inbound call to the dispatcher. Tenant is the owning
// principal's DID; Message carries the signed envelope for any operation
// that accepts one (Records/Protocols/Permissions writes, and optionally an
// authenticated query or read). A nil Message means the caller is
// identified only by RequesterDID, and is anonymous when that is empty:
// legal only for read-type operations, which apply the non-owner
// visibility rules and the anonymous ProtocolsQuery published filter.
type Request struct {
	Tenant    string
	Interface dwn.Interface
	Method    dwn.Method

	// Message is the signed envelope for this request, or nil for an
	// anonymous read.
	Message *dwn.Message

	// RequesterDID identifies an already-authenticated caller for a
	// read-type operation that carries no signed Message of its own (a
	// RecordsQuery, MessagesGet, or Subscribe call). Ignored whenever
	// Message is non-nil: that case's authorDID comes from verifying the
	// envelope, not from this field.
	RequesterDID string

	// Data streams a record's payload when it is not carried inline as
	// Message.EncodedData (e.g. an upload larger than dwn.InlineDataThreshold).
	Data io.Reader

	// RecordID selects a single record for RecordsRead.
	RecordID string

	// MessageCID selects a single message for MessagesGet.
	MessageCID string

	// Protocol scopes a ProtocolsQuery.
	Protocol string

	// ProtocolRole is the role an envelope-less RecordsQuery requester
	// invokes for protocol-rule visibility; a signed Message carries its
	// invoked role in the authorization payload instead.
	ProtocolRole string

	// Filters, Sort, Cursor and Limit shape a Records/Messages/Events query.
	Filters []mstore.Filter
	Sort    records.DateSort
	Cursor  string
	Limit   int
}
