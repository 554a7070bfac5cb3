package api

import "golang.org/x/sync/errgroup"

// RunStage implements the stage-building algorithm of spec §4.7: collect
// the ancestors of action whose data is not yet materialized (State ==
// StateNew), topologically order them, and for each run StartPreOp, ask
// its already-executed parents (StateExecuted or StatePushed) to
// PushData(false), then Execute. Finally
// action.PushData(consume) delivers the action's results.
//
// A node's distinct parents are pushed concurrently (bounded by however
// many parents it has, e.g. Merge/Zip's two inputs) via errgroup, since
// those pushes are independent; the stage sequence itself runs nodes one
// at a time in topological order rather than attempting cross-subtree
// concurrency, which would need per-node completion signaling this
// engine's scale doesn't warrant (see DESIGN.md).
func RunStage(action Node, consume bool) error {
	order := topoOrder(action)

	for _, n := range order {
		if n.State() != StateNew {
			continue
		}
		n.SetState(StatePreOpsStarted)
		n.StartPreOp()

		var g errgroup.Group
		for _, p := range n.Parents() {
			p := p
			if p.State() == StateExecuted || p.State() == StatePushed {
				g.Go(func() error { return p.PushData(false) })
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := n.Execute(); err != nil {
			return err
		}
		n.SetState(StateExecuted)
	}

	if err := action.PushData(consume); err != nil {
		return err
	}
	action.SetState(StatePushed)
	return nil
}

// RunAction is RunStage with consume=true, the common case for a
// terminal action whose result the caller takes ownership of.
func RunAction(ctx *Context, action Node) error {
	return RunStage(action, true)
}

// topoOrder returns action's not-yet-materialized ancestors followed by
// action itself, in dependency order (every node after all of its
// StateNew parents).
func topoOrder(action Node) []Node {
	var order []Node
	visited := make(map[uint64]bool)
	var visit func(n Node)
	visit = func(n Node) {
		if visited[n.ID()] {
			return
		}
		visited[n.ID()] = true
		for _, p := range n.Parents() {
			if p.State() == StateNew {
				visit(p)
			}
		}
		order = append(order, n)
	}
	visit(action)
	return order
}
