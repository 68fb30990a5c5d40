package protocolauth

import (
	"context"
	"strings"

	"github.com/forestrie/go-dwn/dwn"
)

// Request is everything Evaluate needs about the candidate operation: the
// descriptor of the record being written (or the record addressed by a
// Read/Delete), the authenticated author's DID, the method being attempted,
// and the role the author invoked in their authorization payload, if any.
type Request struct {
	Descriptor   dwn.Descriptor
	AuthorDID    string
	Method       dwn.Method
	ProtocolRole string
}

// Evaluate authorizes one operation against a protocol: locate the rule
// node for req's protocolPath, construct its ancestor chain, validate
// schema/dataFormat at the node, check role membership for any role-scoped
// rule, and find an ActionRule that grants req.Method to req.AuthorDID.
func Evaluate(ctx context.Context, tenant string, def *Definition, resolver AncestryResolver, req Request) error {
	// Step 1: locate the rule node.
	path := req.Descriptor.ProtocolPath()
	node, depth, ok := def.locate(path)
	if !ok {
		return classify(ErrRuleNotFound)
	}

	// Step 2: construct the record chain. A node at depth N must have
	// exactly N-1 resolvable ancestors.
	chain, err := BuildChain(ctx, tenant, resolver, req.Descriptor)
	if err != nil {
		return err
	}
	if len(chain) != depth-1 {
		return classify(ErrParentNotFound)
	}

	// Step 3: schema/dataFormat validation at the node.
	if len(node.Schemas) > 0 && !contains(node.Schemas, req.Descriptor.Schema()) {
		return classify(ErrSchemaMismatch)
	}
	if len(node.DataFormats) > 0 && !contains(node.DataFormats, req.Descriptor.DataFormat()) {
		return classify(ErrDataFormatMismatch)
	}

	// Step 4: role check, when the author invoked one. The author must hold
	// the invoked role (addressed to them, at the candidate's contextId for
	// context-scoped roles) before any rule naming it can match; rules that
	// name a role without an invocation are resolved inline in step 5.
	if req.ProtocolRole != "" {
		held, err := resolver.HasRole(ctx, tenant, req.ProtocolRole, roleContext(req.ProtocolRole, req.Descriptor), req.AuthorDID)
		if err != nil {
			return classify(err)
		}
		if !held {
			return classify(ErrRoleRequired)
		}
	}

	// Step 5: find the most specific matching action rule.
	best, ok, err := bestRule(ctx, tenant, resolver, node.Actions, chain, req)
	if err != nil {
		return err
	}
	if !ok {
		return classify(ErrActionNotAllowed)
	}
	if !best.allows(req.Method) {
		return classify(ErrActionNotAllowed)
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// bestRule returns the highest-specificity rule in actions whose actor
// class matches req.AuthorDID against chain, or ok=false if none match.
func bestRule(ctx context.Context, tenant string, resolver AncestryResolver, actions []ActionRule, chain []Ancestor, req Request) (ActionRule, bool, error) {
	var (
		best    ActionRule
		found   bool
		topSeen = -1
	)

	for _, rule := range actions {
		if !rule.allows(req.Method) {
			continue
		}
		matched, err := ruleMatches(ctx, tenant, resolver, rule, chain, req)
		if err != nil {
			return ActionRule{}, false, err
		}
		if !matched {
			continue
		}
		if s := rule.specificity(); s > topSeen {
			topSeen = s
			best = rule
			found = true
		}
	}
	return best, found, nil
}

func ruleMatches(ctx context.Context, tenant string, resolver AncestryResolver, rule ActionRule, chain []Ancestor, req Request) (bool, error) {
	switch rule.Class {
	case ActorAnyone:
		return true, nil
	case ActorAuthorOf:
		anc, ok := ancestorAt(chain, rule.Of)
		return ok && anc.Author == req.AuthorDID, nil
	case ActorRecipientOf:
		anc, ok := ancestorAt(chain, rule.Of)
		return ok && anc.Recipient == req.AuthorDID, nil
	case ActorRole:
		if req.ProtocolRole != "" {
			// Step 4 already verified the invoked role is held; the rule
			// matches iff it names that role.
			return rule.Of == req.ProtocolRole, nil
		}
		return resolver.HasRole(ctx, tenant, rule.Of, roleContext(rule.Of, req.Descriptor), req.AuthorDID)
	default:
		return false, nil
	}
}

// roleContext returns the contextId a role lookup must match: a nested role
// path is context-scoped (the role is granted within one record subtree), a
// top-level role is tenant-global and carries no context restriction.
func roleContext(rolePath string, d dwn.Descriptor) string {
	if strings.ContainsRune(rolePath, '/') {
		return d.ContextID()
	}
	return ""
}

// ancestorAt finds the ancestor in chain whose ProtocolPath equals path.
// Of is always a relative ancestor protocolPath, so a direct comparison is
// sufficient; it never needs to address "self" (step 3 already validates
// the current record).
func ancestorAt(chain []Ancestor, path string) (Ancestor, bool) {
	for _, anc := range chain {
		if anc.ProtocolPath == path {
			return anc, true
		}
	}
	return Ancestor{}, false
}
