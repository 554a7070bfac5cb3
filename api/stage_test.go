package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeNode is a minimal Node for exercising topoOrder/RunStage directly,
// without pulling in the BlockPool/network machinery every real node
// needs. executeCalls/pushCalls count calls and log records their order
// for assertions.
type fakeNode struct {
	id      uint64
	parents []Node
	log     *[]string
	name    string

	state        State
	executeErr   error
	executeCalls int
	pushCalls    int
}

func newFakeNode(id uint64, name string, log *[]string, parents ...Node) *fakeNode {
	return &fakeNode{id: id, name: name, log: log, parents: parents}
}

func (f *fakeNode) ID() uint64       { return f.id }
func (f *fakeNode) Type() NodeType   { return DOPNode }
func (f *fakeNode) State() State     { return f.state }
func (f *fakeNode) SetState(s State) { f.state = s }
func (f *fakeNode) Parents() []Node  { return f.parents }

func (f *fakeNode) StartPreOp() { *f.log = append(*f.log, "preop:"+f.name) }
func (f *fakeNode) Execute() error {
	f.executeCalls++
	*f.log = append(*f.log, "execute:"+f.name)
	return f.executeErr
}
func (f *fakeNode) PushData(consume bool) error {
	f.pushCalls++
	*f.log = append(*f.log, "push:"+f.name)
	return nil
}
func (f *fakeNode) Dispose() {}

func TestTopoOrderVisitsAncestorsBeforeDescendantsOnce(t *testing.T) {
	var log []string
	root := newFakeNode(1, "root", &log)
	left := newFakeNode(2, "left", &log, root)
	right := newFakeNode(3, "right", &log, root)
	join := newFakeNode(4, "join", &log, left, right)

	order := topoOrder(join)
	require.Len(t, order, 4)

	pos := make(map[uint64]int)
	for i, n := range order {
		pos[n.ID()] = i
	}
	require.Less(t, pos[root.ID()], pos[left.ID()])
	require.Less(t, pos[root.ID()], pos[right.ID()])
	require.Less(t, pos[left.ID()], pos[join.ID()])
	require.Less(t, pos[right.ID()], pos[join.ID()])
	// root must appear exactly once even though both left and right
	// depend on it.
	count := 0
	for _, n := range order {
		if n.ID() == root.ID() {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestRunStageSkipsAlreadyExecutedAncestors(t *testing.T) {
	var log []string
	root := newFakeNode(1, "root", &log)
	child := newFakeNode(2, "child", &log, root)

	require.NoError(t, RunStage(child, true))
	require.Equal(t, 1, root.executeCalls)
	require.Equal(t, 1, child.executeCalls)
	require.Equal(t, StatePushed, child.State())
	require.Equal(t, StateExecuted, root.State())

	next := newFakeNode(3, "next", &log, root)
	require.NoError(t, RunStage(next, true))
	// root was already StateExecuted, so a second action over it must not
	// re-run its Execute.
	require.Equal(t, 1, root.executeCalls)
	require.Equal(t, 1, next.executeCalls)
}

func TestRunStagePropagatesExecuteError(t *testing.T) {
	var log []string
	n := newFakeNode(1, "boom", &log)
	n.executeErr = errBoom
	require.ErrorIs(t, RunStage(n, true), errBoom)
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
