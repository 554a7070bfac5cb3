package stream

import "github.com/grafana/fluxmesh/data"

// CatStream restores sender-rank order: it drains each peer's substream
// queue to exhaustion, in rank order, before moving to the next (spec
// §4.6, §5 "cat-streams restore deterministic order by sender rank").
type CatStream struct {
	set *set
	idx int
}

// Writers returns one Sink per destination peer, for this local worker's
// outbound side (senderWorker identifies which local worker is sending,
// carried in the header's SenderLocalWorker field).
func (c *CatStream) Writers(senderWorker int) []data.Sink {
	return c.set.Writers(senderWorker)
}

// NextBlock implements data.Source, reading in sender-rank order.
func (c *CatStream) NextBlock() (*data.Block, error) {
	for c.idx < c.set.peers {
		blk, err := c.set.queues[c.idx].NextBlock()
		if err != nil {
			return nil, err
		}
		if blk == nil {
			c.idx++
			continue
		}
		return blk, nil
	}
	return nil, nil
}
