package api

// DIA[T] is a handle carrying a pointer to its producing node, the fused
// function stack describing every Map/Filter/FlatMap composed since that
// node, and the Context it was built against (spec §4.7: "A DIA value is
// a handle carrying a pointer to its producing node, a function stack
// ... and a type tag"). Applying Map/Filter/FlatMap never creates a node;
// it only appends to stack and returns a new DIA[T] over the same node.
type DIA[T any] struct {
	ctx   *Context
	node  Node
	reg   childRegistrar
	stack stageChain
}

// Node returns the underlying DAG node, for handing an action's DIA to
// RunStage.
func (d DIA[T]) Node() Node { return d.node }

// nodeAndRegistrar is satisfied by every concrete node pointer, which
// embeds nodeBase to get both Node and childRegistrar for free.
type nodeAndRegistrar interface {
	Node
	childRegistrar
}

func newDIA[T any](ctx *Context, n nodeAndRegistrar) DIA[T] {
	return DIA[T]{ctx: ctx, node: n, reg: n}
}

// attach registers a new child consuming d: every item the parent pushes
// is run through d's fused stack first, and preOp is called with the
// resulting, already-unboxed T. child is recorded as a DAG child of d's
// node for stage-building. Node-creating operators use this to wire
// themselves beneath their parent DIA.
func attach[T any](d DIA[T], child nodeAndRegistrar, preOp func(T)) {
	link := childLink{
		node: child,
		slow: func(item any) {
			d.stack.apply(item, func(v any) { preOp(v.(T)) })
		},
	}
	if d.stack.empty() {
		if acceptor, ok := any(child).(FileAcceptor); ok {
			link.fast = acceptor.AcceptFile
		}
	}
	d.reg.registerChild(link)
	d.reg.addChild(child)
}

// stackEmpty reports whether d carries no Map/Filter/FlatMap since its
// node, the precondition for the whole-block pre-op fast path.
func stackEmpty[T any](d DIA[T]) bool { return d.stack.empty() }
