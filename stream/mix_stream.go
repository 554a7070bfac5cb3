package stream

import (
	"sync"

	"github.com/grafana/fluxmesh/data"
)

// MixStream exposes arrival order across senders: a fan-in of every
// peer's substream queue into one shared queue, read back in whatever
// order blocks actually arrive (spec §4.6, §5 "mix-streams expose arrival
// order").
type MixStream struct {
	set *set

	startOnce sync.Once
	out       *data.BlockQueue
}

func newMixStream(s *set) *MixStream {
	return &MixStream{set: s, out: data.NewBlockQueue(4 * maxInt(s.peers, 1))}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Writers returns one Sink per destination peer, for this local worker's
// outbound side.
func (m *MixStream) Writers(senderWorker int) []data.Sink {
	return m.set.Writers(senderWorker)
}

// start spawns one forwarder goroutine per sender rank, each draining
// that rank's substream queue into the shared fan-in queue; the fan-in
// queue closes once every forwarder's source has closed.
func (m *MixStream) start() {
	m.startOnce.Do(func() {
		var wg sync.WaitGroup
		wg.Add(m.set.peers)
		for r := 0; r < m.set.peers; r++ {
			go func(r int) {
				defer wg.Done()
				q := m.set.queues[r]
				for {
					blk, err := q.NextBlock()
					if err != nil || blk == nil {
						return
					}
					_ = m.out.Append(blk)
				}
			}(r)
		}
		go func() {
			wg.Wait()
			_ = m.out.Close()
		}()
	})
}

// NextBlock implements data.Source in arrival order.
func (m *MixStream) NextBlock() (*data.Block, error) {
	m.start()
	return m.out.NextBlock()
}
