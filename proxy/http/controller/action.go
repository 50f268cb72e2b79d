package controller

import (
	"fmt"

	"go.dedis.ch/forecast/cli/node"
	"go.dedis.ch/forecast/proxy"
	"golang.org/x/xerrors"
)

// addrAction prints the address of the proxy.
//
// - implements node.ActionTemplate
type addrAction struct{}

// Execute implements node.ActionTemplate.
func (a addrAction) Execute(ctx node.Context) error {
	var p proxy.Proxy

	err := ctx.Injector.Resolve(&p)
	if err != nil {
		return xerrors.Errorf("failed to resolve proxy: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%s", p.GetAddr())

	return nil
}
