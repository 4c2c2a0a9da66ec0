// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/state"
)

//go:generate mockgen -source dispatcher.go -destination mock_dispatcher.go -package stf

var _ Dispatcher = (*ModuleDispatcher)(nil)

// Dispatcher executes the call of an admitted transaction. Gas is charged to
// ws.GasMeter(). Returning an error reverts every write made to [ws]; the
// sender still pays for the gas used.
type Dispatcher interface {
	Dispatch(call auth.Call, ctx *Context, ws *state.WorkingSet) error
}

// ModuleDispatcher routes calls to the modules of the runtime.
type ModuleDispatcher struct {
	bank *bank.Module
}

func NewModuleDispatcher(bank *bank.Module) *ModuleDispatcher {
	return &ModuleDispatcher{bank: bank}
}

func (d *ModuleDispatcher) Dispatch(call auth.Call, ctx *Context, ws *state.WorkingSet) error {
	return d.bank.Call(call, ctx.Sender, ws)
}
