// Package permissions implements permission grants, requests and
// revocations, and the scope-matching logic that resolves the latest
// non-revoked grant covering a candidate message's scope. Grants are
// ordinary dwn.Message values conforming to a reserved descriptor shape,
// stored and indexed the normal way; this package is a thin query layer
// over mstore.Store rather than a bespoke grant table.
package permissions

import "github.com/forestrie/go-dwn/dwn"

// Reserved descriptor fields for PermissionsGrant/Request/Revoke messages,
// layered on top of dwn's well-known fields.
const (
	FieldGrantor     = "grantor"
	FieldGrantee     = "grantee"
	FieldDateExpires = "dateExpires"
	FieldScope       = "scope"
	FieldConditions  = "conditions"
	FieldGrantID     = "grantId" // on a Revoke message, references the grant it revokes
)

// GrantScope is the matchable scope of a grant. Empty string fields mean
// "not present in the grant", read as no constraint on that dimension,
// except for Interface/Method, which are always required to match. Schema
// is decoded from the grant but Index.Resolve does not compare it.
type GrantScope struct {
	Interface dwn.Interface
	Method    dwn.Method
	Protocol  string
	Schema    string
	ContextID string
	RecordID  string
}

// GrantConditions restricts how a grant may be used, e.g. requiring the
// covered records to be published.
type GrantConditions struct {
	Published bool
}

// Grant is the resolved, decoded form of a PermissionsGrant message.
type Grant struct {
	ID          string
	MessageCID  string
	Grantor     string
	Grantee     string
	DateExpires string
	Scope       GrantScope
	Conditions  GrantConditions
}

// Candidate describes the message being authorized against a grant: the
// fields the scope-match rules compare against GrantScope.
type Candidate struct {
	Interface        dwn.Interface
	Method           dwn.Method
	Protocol         string
	ContextID        string
	RecordID         string
	AuthorDID        string
	MessageTimestamp string
	Published        bool
}

func scopeFromDescriptor(d dwn.Descriptor) GrantScope {
	raw, _ := d[FieldScope].(map[string]any)
	get := func(k string) string {
		if raw == nil {
			return ""
		}
		s, _ := raw[k].(string)
		return s
	}
	return GrantScope{
		Interface: dwn.Interface(get("interface")),
		Method:    dwn.Method(get("method")),
		Protocol:  get("protocol"),
		Schema:    get("schema"),
		ContextID: get("contextId"),
		RecordID:  get("recordId"),
	}
}

func conditionsFromDescriptor(d dwn.Descriptor) GrantConditions {
	raw, _ := d[FieldConditions].(map[string]any)
	if raw == nil {
		return GrantConditions{}
	}
	published, _ := raw["published"].(bool)
	return GrantConditions{Published: published}
}

func grantFromMessage(messageCID string, msg dwn.Message) Grant {
	d := msg.Descriptor
	grantor, _ := d[FieldGrantor].(string)
	grantee, _ := d[FieldGrantee].(string)
	dateExpires, _ := d[FieldDateExpires].(string)
	return Grant{
		ID:          d.RecordID(),
		MessageCID:  messageCID,
		Grantor:     grantor,
		Grantee:     grantee,
		DateExpires: dateExpires,
		Scope:       scopeFromDescriptor(d),
		Conditions:  conditionsFromDescriptor(d),
	}
}
