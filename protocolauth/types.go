// Package protocolauth implements protocol-rule evaluation over a record's
// ancestry, including role records, context roles, and the
// locate/chain/schema/role/action procedure. Definition models a protocol's
// rooted protocolPath tree; the record chain is resolved lazily through an
// AncestryResolver rather than built as an in-memory pointer graph, since
// parentId references always pre-exist in the store.
package protocolauth

import "github.com/forestrie/go-dwn/dwn"

// ActorClass names who an ActionRule's grant applies to.
type ActorClass int

const (
	// ActorAnyone allows any author.
	ActorAnyone ActorClass = iota
	// ActorAuthorOf requires the candidate's author to equal the author of
	// the ancestor at relative path Of.
	ActorAuthorOf
	// ActorRecipientOf requires the candidate's author to equal the
	// recipient of the ancestor at relative path Of.
	ActorRecipientOf
	// ActorRole requires the candidate's author to hold the role at path Of.
	ActorRole
)

// ActionRule grants Methods to the actor class described by Class/Of.
type ActionRule struct {
	Class   ActorClass
	Of      string // relative ancestor path (ActorAuthorOf/ActorRecipientOf) or role path (ActorRole)
	Methods []dwn.Method
}

// allows reports whether this rule permits method.
func (r ActionRule) allows(method dwn.Method) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// specificity orders rules for the most-specific-first tie-break: longest
// Of path wins, then most specific actor class
// (role > recipient-of/author-of > anyone).
func (r ActionRule) specificity() int {
	class := 0
	switch r.Class {
	case ActorRole:
		class = 3
	case ActorAuthorOf, ActorRecipientOf:
		class = 2
	case ActorAnyone:
		class = 1
	}
	return len(r.Of)*10 + class
}

// Node is one record type in a protocol's rooted tree, keyed by its
// protocolPath segment in the parent's Children map.
type Node struct {
	Schemas     []string
	DataFormats []string
	IsRole      bool
	Actions     []ActionRule
	Children    map[string]*Node
}

// child returns (and never creates) the node at path segment.
func (n *Node) child(segment string) (*Node, bool) {
	if n.Children == nil {
		return nil, false
	}
	c, ok := n.Children[segment]
	return c, ok
}

// Definition is a complete installed protocol definition.
type Definition struct {
	Protocol  string
	Published bool
	Root      *Node
}

// locate walks protocolPath's slash-separated segments from Root, returning
// the node and its depth (number of segments, i.e. chain length required).
func (d *Definition) locate(protocolPath string) (*Node, int, bool) {
	segments := splitPath(protocolPath)
	node := d.Root
	for i, seg := range segments {
		next, ok := node.child(seg)
		if !ok {
			return nil, 0, false
		}
		node = next
		if i == len(segments)-1 {
			return node, len(segments), true
		}
	}
	return nil, 0, false
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}
