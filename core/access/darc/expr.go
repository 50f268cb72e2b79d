package darc

import (
	"sort"
	"strings"

	"go.dedis.ch/forecast/core/access"
	"golang.org/x/xerrors"
)

// group is a sorted set of identities in their text form.
type group []string

func newGroup(idents ...access.Identity) (group, error) {
	set := map[string]struct{}{}

	for _, ident := range idents {
		text, err := ident.MarshalText()
		if err != nil {
			return nil, xerrors.Errorf("failed to marshal identity: %v", err)
		}

		set[string(text)] = struct{}{}
	}

	g := make(group, 0, len(set))
	for text := range set {
		g = append(g, text)
	}

	sort.Strings(g)

	return g, nil
}

func (g group) key() string {
	return strings.Join(g, ",")
}

// Expression is the representation of the disjunctive normal form of the
// allowed groups of identities.
type Expression struct {
	Groups []group `json:"groups"`
}

// Evolve adds the group to the expression if it is not already allowed.
// Groups are never removed.
func (expr *Expression) Evolve(idents ...access.Identity) error {
	g, err := newGroup(idents...)
	if err != nil {
		return err
	}

	if len(g) == 0 {
		return nil
	}

	for _, match := range expr.Groups {
		if match.key() == g.key() {
			return nil
		}
	}

	expr.Groups = append(expr.Groups, g)

	return nil
}

// Match returns nil if the group is allowed, otherwise it returns the reason
// why it failed.
func (expr *Expression) Match(idents ...access.Identity) error {
	g, err := newGroup(idents...)
	if err != nil {
		return err
	}

	for _, match := range expr.Groups {
		if match.key() == g.key() {
			return nil
		}
	}

	return xerrors.Errorf("unauthorized: %v", idents)
}
