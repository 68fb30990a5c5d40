// Package protocols implements ProtocolsConfigure/Query:
// one current configuration per protocol per tenant, collision resolution
// by largest messageCid, and anonymous-vs-authenticated published
// filtering. A configuration's rule tree is decoded into a
// protocolauth.Definition so records.Handler can run protocolauth.Evaluate
// against it without protocols and protocolauth knowing about each other's
// wire format beyond this package's decode step.
package protocols

import (
	"strings"

	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/protocolauth"
)

// Reserved descriptor fields for a ProtocolsConfigure message.
const (
	FieldDefinition = "definition"
)

// Definition-tree field names within the descriptor's "definition" object,
// mirroring protocolauth.Node/ActionRule/Definition one-for-one.
const (
	nodeFieldSchemas     = "schemas"
	nodeFieldDataFormats = "dataFormats"
	nodeFieldRole        = "role"
	nodeFieldActions     = "actions"
	nodeFieldTypes       = "types"

	actionFieldWho = "who"
	actionFieldOf  = "of"
	actionFieldCan = "can"

	actorAnyone    = "anyone"
	actorAuthor    = "author"
	actorRecipient = "recipient"
	actorRole      = "role"
)

// decodeDefinition builds a protocolauth.Definition from a ProtocolsConfigure
// descriptor. It never fails on a malformed field; absent or
// wrongly-typed values decode to their zero value, so a protocol author's
// typo silently yields a more restrictive (not a crashing) rule tree.
func decodeDefinition(d dwn.Descriptor) *protocolauth.Definition {
	raw, _ := d[FieldDefinition].(map[string]any)
	rootTypes, _ := raw[nodeFieldTypes].(map[string]any)
	return &protocolauth.Definition{
		Protocol:  d.Protocol(),
		Published: d.Published(),
		Root:      &protocolauth.Node{Children: decodeChildren(rootTypes)},
	}
}

func decodeChildren(raw map[string]any) map[string]*protocolauth.Node {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]*protocolauth.Node, len(raw))
	for segment, v := range raw {
		m, _ := v.(map[string]any)
		out[segment] = decodeNode(m)
	}
	return out
}

func decodeNode(raw map[string]any) *protocolauth.Node {
	node := &protocolauth.Node{}
	if raw == nil {
		return node
	}
	node.Schemas = decodeStrings(raw[nodeFieldSchemas])
	node.DataFormats = decodeStrings(raw[nodeFieldDataFormats])
	node.IsRole, _ = raw[nodeFieldRole].(bool)

	if actions, ok := raw[nodeFieldActions].([]any); ok {
		node.Actions = make([]protocolauth.ActionRule, 0, len(actions))
		for _, a := range actions {
			am, ok := a.(map[string]any)
			if !ok {
				continue
			}
			node.Actions = append(node.Actions, decodeAction(am))
		}
	}
	if children, ok := raw[nodeFieldTypes].(map[string]any); ok {
		node.Children = decodeChildren(children)
	}
	return node
}

func decodeAction(raw map[string]any) protocolauth.ActionRule {
	who, _ := raw[actionFieldWho].(string)
	of, _ := raw[actionFieldOf].(string)
	rule := protocolauth.ActionRule{Of: of, Methods: decodeMethods(raw[actionFieldCan])}
	switch who {
	case actorAuthor:
		rule.Class = protocolauth.ActorAuthorOf
	case actorRecipient:
		rule.Class = protocolauth.ActorRecipientOf
	case actorRole:
		rule.Class = protocolauth.ActorRole
	case actorAnyone:
		rule.Class = protocolauth.ActorAnyone
	default:
		// An absent or unrecognized actor class grants nothing.
		rule.Class = protocolauth.ActorAnyone
		rule.Methods = nil
	}
	return rule
}

func decodeStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if str, ok := s.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// methodNames maps a definition's action verb (conventionally lowercase,
// "write") to the Method constant the pipeline routes on. Unknown verbs are
// dropped, yielding a more restrictive rule rather than a dead one.
var methodNames = map[string]dwn.Method{
	"write":     dwn.MethodWrite,
	"read":      dwn.MethodRead,
	"query":     dwn.MethodQuery,
	"delete":    dwn.MethodDelete,
	"subscribe": dwn.MethodSubscribe,
}

func decodeMethods(v any) []dwn.Method {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]dwn.Method, 0, len(raw))
	for _, s := range raw {
		str, ok := s.(string)
		if !ok {
			continue
		}
		if m, ok := methodNames[strings.ToLower(str)]; ok {
			out = append(out, m)
		}
	}
	return out
}
