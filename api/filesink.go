package api

import "github.com/grafana/fluxmesh/data"

// fileSink collects the items a node's pre-op receives into a pooled
// File, for node implementations whose main-op needs the parent's full
// materialized dataset (ReduceByKey, GroupByKey, Sort, Cache...). It also
// backs the FileAcceptor fast path: AcceptFile merges another File's
// blocks in directly, without touching per-item bytes.
type fileSink[T any] struct {
	ctx    *Context
	ser    data.Serializer[T]
	file   *data.File
	writer *data.Writer[T]
}

func newFileSink[T any](ctx *Context, ser data.Serializer[T]) *fileSink[T] {
	f := data.NewFile()
	return &fileSink[T]{
		ctx:    ctx,
		ser:    ser,
		file:   f,
		writer: data.NewWriter[T](ctx.Pool, f, ser, ctx.SelfVerify),
	}
}

func (s *fileSink[T]) put(item T)   { _ = s.writer.Put(item) }
func (s *fileSink[T]) closeWriter() { _ = s.writer.Close() }

// acceptFile implements the FileAcceptor fast path for embedders.
func (s *fileSink[T]) acceptFile(f *data.File) bool {
	s.file.AppendFrom(f)
	return true
}

func (s *fileSink[T]) reader() *data.Reader[T] {
	return data.NewReader[T](s.file.GetReader(true), s.ser, s.ctx.SelfVerify)
}
