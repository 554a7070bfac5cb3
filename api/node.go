package api

import "github.com/grafana/fluxmesh/data"

// NodeType classifies a DIA node for stage-building and child-pruning
// decisions (spec §4.7).
type NodeType int

const (
	SourceNode NodeType = iota
	DOPNode
	ActionNode
	CacheNode
	CollapseNode
)

func (t NodeType) String() string {
	switch t {
	case SourceNode:
		return "source"
	case DOPNode:
		return "dop"
	case ActionNode:
		return "action"
	case CacheNode:
		return "cache"
	case CollapseNode:
		return "collapse"
	default:
		return "unknown"
	}
}

// State is a node's position in its lifecycle. Transitions are driven
// exclusively by the stage runtime (spec §4.7: "NEW -> PRE_OPS_STARTED ->
// EXECUTED -> PUSHED -> DISPOSED").
type State int

const (
	StateNew State = iota
	StatePreOpsStarted
	StateExecuted
	StatePushed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePreOpsStarted:
		return "pre_ops_started"
	case StateExecuted:
		return "executed"
	case StatePushed:
		return "pushed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Node is the untyped DAG base every operation implements, so the stage
// runtime (RunStage, in this package) can topologically order and drive arbitrary
// chains of differently-typed DIAs without itself being generic (spec
// §4.7). A concrete node's typed behavior (decode/encode, per-item
// processing) lives behind the generic DIA[T]/stageChain machinery in
// this package; Node only exposes what RunStage needs.
type Node interface {
	ID() uint64
	Type() NodeType
	State() State
	SetState(State)
	Parents() []Node

	// StartPreOp sets up whatever this node needs to receive pushed
	// items from its parents (spec §4.7 "start_pre_op").
	StartPreOp()
	// Execute runs the node's main-op: shuffle/sort/reduce/etc. using
	// the node's own stream(s) (spec §4.7 "execute").
	Execute() error
	// PushData delivers this node's materialized items to every
	// registered child by applying each child's fused function stack
	// per item, optionally releasing backing storage as it goes (spec
	// §4.7 "push_data").
	PushData(consume bool) error
	// Dispose releases any File/stream storage this node still holds.
	Dispose()
}

// childRegistrar is implemented by every concrete node alongside Node,
// letting DIA[T] operator constructors (which know the node's produced
// element type T) register a type-erased push callback without Node
// itself needing a generic method (Go disallows those on interfaces).
type childRegistrar interface {
	registerChild(link childLink)
	addChild(n Node)
}

// FileAcceptor is implemented by node-creating ops whose pre-op collects
// into a fileSink[T] (ReduceByKey, GroupByKey, Sort, Cache, Collapse...).
// attach wires it in as the whole-block pre-op fast path whenever the
// parent DIA's fused stack is empty (spec §4.7 "on_pre_op_file"):
// AcceptFile takes ownership of f and returns true to opt in, letting the
// parent skip decoding and re-encoding every item individually.
type FileAcceptor interface {
	AcceptFile(f *data.File) bool
}

// childLink is one registered child of a node: slow is the always-
// present per-item path (running the stack between parent and child,
// then the child's pre-op); fast, when non-nil, lets PushData hand the
// child a whole File directly instead of calling slow per item.
type childLink struct {
	node Node
	fast func(f *data.File) bool
	slow func(item any)
}

// nodeBase is embedded by every concrete node and implements the
// bookkeeping shared across all of them: id/type/state, parent list, and
// the list of registered children invoked from PushData.
type nodeBase struct {
	ctx     *Context
	id      uint64
	ntype   NodeType
	state   State
	parents []Node

	children []Node
	links    []childLink
}

func newNodeBase(ctx *Context, ntype NodeType, parents ...Node) nodeBase {
	return nodeBase{ctx: ctx, id: ctx.newNodeID(), ntype: ntype, state: StateNew, parents: parents}
}

func (b *nodeBase) ID() uint64       { return b.id }
func (b *nodeBase) Type() NodeType   { return b.ntype }
func (b *nodeBase) State() State     { return b.state }
func (b *nodeBase) SetState(s State) { b.state = s }
func (b *nodeBase) Parents() []Node  { return b.parents }
func (b *nodeBase) Children() []Node { return b.children }

func (b *nodeBase) registerChild(link childLink) { b.links = append(b.links, link) }
func (b *nodeBase) addChild(n Node)               { b.children = append(b.children, n) }

// pushItem fans one item out to every registered child's slow path. No
// node in this package calls it: every node's output is File-backed and
// is pushed through pushFile.
func (b *nodeBase) pushItem(item any) {
	for _, l := range b.links {
		l.slow(item)
	}
}

// pushFile is the common PushData body for any node whose materialized
// output lives in a data.File: each child with a fast link gets the
// whole file (by zero-copy reference); every other child is driven by
// decoding the file item-by-item through Reader[T] and calling its slow
// path (spec §4.7 "push_data").
func pushFile[T any](b *nodeBase, file *data.File, ser data.Serializer[T], selfVerify bool) error {
	for _, l := range b.links {
		if l.fast != nil && l.fast(file.Copy()) {
			continue
		}
		r := data.NewReader[T](file.Copy().GetReader(true), ser, selfVerify)
		for {
			v, err := r.Next()
			if err != nil {
				break
			}
			l.slow(any(v))
		}
	}
	return nil
}
