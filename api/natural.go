package api

import "github.com/facette/natsort"

// NaturalLess orders strings the way a person reading a directory listing
// would: embedded digit runs compare by numeric value rather than
// lexicographically, so "item2" sorts before "item10". It is the less
// function callers of Sort reach for when the elements are names/keys
// rather than a domain type with its own ordering.
func NaturalLess(a, b string) bool {
	return natsort.Compare(a, b)
}
