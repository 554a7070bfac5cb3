package main

import (
	"encoding/binary"
	"fmt"

	"github.com/grafana/fluxmesh/data"
)

// int64Codec is the fixed-size Serializer[int64] every scenario below
// uses for its integer DIAs.
type int64Codec struct{}

func (int64Codec) Marshal(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}
func (int64Codec) Unmarshal(b []byte) (int64, error) { return int64(binary.LittleEndian.Uint64(b)), nil }
func (int64Codec) FixedSize() int                    { return 8 }

var _ data.Serializer[int64] = int64Codec{}

// stringCodec is the variable-length Serializer[string] the word-count
// scenario uses for its tokens.
type stringCodec struct{}

func (stringCodec) Marshal(v string) []byte         { return []byte(v) }
func (stringCodec) Unmarshal(b []byte) (string, error) { return string(b), nil }
func (stringCodec) FixedSize() int                  { return 0 }

var _ data.Serializer[string] = stringCodec{}

// wordCount pairs a token with an occurrence count, the element type
// ReduceByKey folds over in the word-count scenario.
type wordCount struct {
	Word  string
	Count int64
}

type wordCountCodec struct{}

func (wordCountCodec) Marshal(v wordCount) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(v.Word)))
	out := make([]byte, 0, 4+len(v.Word)+8)
	out = append(out, lenBuf...)
	out = append(out, v.Word...)
	countBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(countBuf, uint64(v.Count))
	return append(out, countBuf...)
}

func (wordCountCodec) Unmarshal(b []byte) (wordCount, error) {
	if len(b) < 4 {
		return wordCount{}, fmt.Errorf("fluxctl: truncated wordCount")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n+8 {
		return wordCount{}, fmt.Errorf("fluxctl: truncated wordCount payload")
	}
	word := string(b[:n])
	count := int64(binary.LittleEndian.Uint64(b[n : n+8]))
	return wordCount{Word: word, Count: count}, nil
}

func (wordCountCodec) FixedSize() int { return 0 }

var _ data.Serializer[wordCount] = wordCountCodec{}
