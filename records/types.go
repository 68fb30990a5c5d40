// Package records implements the RecordsWrite/Query/Read/Delete state
// machine: one current state per (tenant, recordId), immutable property
// enforcement, newer-write and tombstone resolution, and the retention
// rule that prunes strictly older sibling writes. records.Subscribe layers
// on eventlog.Subscribe filtered to interface=Records.
package records

import "github.com/forestrie/go-dwn/dwn"

// Reserved indexed attribute names this package writes alongside the
// common ones (dwn.FieldRecordID, dwn.FieldProtocol, ...) so Query can
// filter on record state without decoding every candidate message.
const (
	AttrInterface         = "interface"
	AttrMethod            = "method"
	AttrIsLatestBaseState = "isLatestBaseState"
	AttrAuthor            = "author"
	AttrInitialMessageCID = "initialMessageCid"
)

const trueValue = "true"
const falseValue = "false"

func boolAttr(b bool) string {
	if b {
		return trueValue
	}
	return falseValue
}

// RecordState is one stored version of a record: enough of its descriptor
// and bookkeeping attributes to drive the state machine without re-decoding
// the message at every step.
type RecordState struct {
	MessageCID        string
	Message           dwn.Message
	Author            string
	IsLatestBaseState bool
	InitialMessageCID string
}

// immutableFields are the properties fixed by a record's initial write; a
// later write may never change them.
var immutableFields = []string{
	dwn.FieldRecordID,
	dwn.FieldDateCreated,
	dwn.FieldProtocol,
	dwn.FieldProtocolPath,
	dwn.FieldSchema,
	dwn.FieldParentID,
	dwn.FieldRecipient,
}
