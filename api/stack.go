package api

// stage is one fused function-stack layer: Map/Filter/FlatMap each
// compile down to one of these, operating on boxed `any` values since Go
// generics, unlike C++ templates, cannot express a single heterogeneous
// compile-time stack of differently-typed stages (Design Notes, Open
// Question (d)). Each stage receives the previous stage's output and an
// emit callback it may call zero, one, or many times.
type stage func(item any, emit func(any))

// stageChain is the fused function stack between a node's raw produced
// element and the type a DIA[T] handle currently carries. An empty chain
// is the identity transform, which is exactly the condition the
// whole-block pre-op fast path checks for (spec §4.7 "on_pre_op_file").
type stageChain []stage

func (c stageChain) empty() bool { return len(c) == 0 }

// apply runs the full chain over item, invoking done with each value the
// last stage emits (zero or more times).
func (c stageChain) apply(item any, done func(any)) {
	var run func(idx int, it any)
	run = func(idx int, it any) {
		if idx == len(c) {
			done(it)
			return
		}
		c[idx](it, func(next any) { run(idx+1, next) })
	}
	run(0, item)
}

func (c stageChain) append(s stage) stageChain {
	out := make(stageChain, len(c), len(c)+1)
	copy(out, c)
	return append(out, s)
}

// Map appends a one-to-one transform to d's fused function stack; no
// node is created (spec §4.7: map/filter only append to the stack).
func Map[T, U any](d DIA[T], f func(T) U) DIA[U] {
	s := func(item any, emit func(any)) { emit(f(item.(T))) }
	return DIA[U]{ctx: d.ctx, node: d.node, reg: d.reg, stack: d.stack.append(s)}
}

// Filter appends a keep/drop predicate to d's fused function stack.
func Filter[T any](d DIA[T], keep func(T) bool) DIA[T] {
	s := func(item any, emit func(any)) {
		v := item.(T)
		if keep(v) {
			emit(v)
		}
	}
	return DIA[T]{ctx: d.ctx, node: d.node, reg: d.reg, stack: d.stack.append(s)}
}

// FlatMap appends a one-to-many transform to d's fused function stack.
func FlatMap[T, U any](d DIA[T], f func(T, func(U))) DIA[U] {
	s := func(item any, emit func(any)) {
		f(item.(T), func(u U) { emit(u) })
	}
	return DIA[U]{ctx: d.ctx, node: d.node, reg: d.reg, stack: d.stack.append(s)}
}
