// Command fluxctl is a single-process demonstration harness: it brings up
// several in-process hosts over the mock transport and runs each of the
// representative end-to-end scenarios (spec §8) across them, printing the
// result each scenario promises.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	fluxmesh "github.com/grafana/fluxmesh"
	"github.com/grafana/fluxmesh/api"
	"github.com/grafana/fluxmesh/core"
)

func main() {
	hosts := flag.Int("hosts", 4, "Number of in-process mock hosts to run scenarios across.")
	configFile := flag.String("config-file", "", "Optional YAML config file to load before flag defaults are applied.")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())

	cfg := fluxmesh.Config{NumHosts: *hosts, WorkersPerHost: 1}
	if *configFile != "" {
		if err := fluxmesh.LoadConfigFile(*configFile, &cfg); err != nil {
			level.Error(logger).Log("msg", "failed to load config file", "err", err)
			os.Exit(1)
		}
	}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.ContinueOnError))
	cfg.NumHosts = *hosts

	ctxs, err := core.RunLocalMock(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to bring up mock hosts", "err", err)
		os.Exit(1)
	}
	defer func() { _ = core.CloseAll(ctxs...) }()

	scenarios := []struct {
		name string
		run  func([]*api.Context) (string, error)
	}{
		{"generate-sum", scenarioSum},
		{"generate-prefixsum", scenarioPrefixSum},
		{"wordcount", scenarioWordCount},
		{"write-read-binary-allgather", scenarioBinaryRoundTrip},
		{"sort", scenarioSort},
		{"merge", scenarioMerge},
	}

	for _, sc := range scenarios {
		out, err := sc.run(ctxs)
		if err != nil {
			level.Error(logger).Log("msg", "scenario failed", "scenario", sc.name, "err", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", sc.name, out)
	}
}

// scenarioSum is spec §8 scenario 1: Generate(n=0..8) -> Sum(0,+) -> 28.
func scenarioSum(ctxs []*api.Context) (string, error) {
	results := make([]int64, len(ctxs))
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 8, int64Codec{}, func(idx int) int64 { return int64(idx) })
			sum, err := api.Sum(d, int64Codec{}, func(a, b int64) int64 { return a + b }, 0)
			if err != nil {
				return err
			}
			results[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", results[0]), nil
}

// scenarioPrefixSum is spec §8 scenario 2: Generate(0..10) -> PrefixSum(0,+)
// -> cat output [0,0,1,3,6,10,15,21,28,36].
func scenarioPrefixSum(ctxs []*api.Context) (string, error) {
	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 10, int64Codec{}, func(idx int) int64 { return int64(idx) })
			ps := api.PrefixSum(d, int64Codec{}, func(a, b int64) int64 { return a + b }, 0, false)
			all, err := api.Gather(ps, int64Codec{}, 0)
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}

// scenarioWordCount is spec §8 scenario 3: WordCount over "a b a c a b" ->
// multiset {(a,3),(b,2),(c,1)}. Composed from existing operators rather
// than a dedicated node, the way the spec frames it as a representative
// pipeline rather than a primitive.
func scenarioWordCount(ctxs []*api.Context) (string, error) {
	const text = "a b a c a b"
	var result []wordCount
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			var local []string
			if i == 0 {
				local = []string{text}
			}
			lines := api.Distribute[string](ctx, stringCodec{}, local)
			words := api.FlatMap[string, string](lines, func(line string, emit func(string)) {
				for _, w := range strings.Fields(line) {
					emit(w)
				}
			})
			pairs := api.Map[string, wordCount](words, func(w string) wordCount { return wordCount{Word: w, Count: 1} })
			counted := api.ReduceByKey[wordCount, string](pairs, wordCountCodec{},
				func(wc wordCount) string { return wc.Word },
				func(a, b wordCount) wordCount { return wordCount{Word: a.Word, Count: a.Count + b.Count} },
			)
			all, err := api.AllGather(counted, wordCountCodec{})
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	sort.Slice(result, func(i, j int) bool { return api.NaturalLess(result[i].Word, result[j].Word) })
	parts := make([]string, len(result))
	for i, wc := range result {
		parts[i] = fmt.Sprintf("(%s,%d)", wc.Word, wc.Count)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// scenarioBinaryRoundTrip is spec §8 scenario 4: Generate(0..16) ->
// WriteBinary -> ReadBinary -> AllGather -> sorted output [0,1,...,15].
func scenarioBinaryRoundTrip(ctxs []*api.Context) (string, error) {
	dir, err := os.MkdirTemp("", "fluxctl-binary-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	path := dir + "/shard"

	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 16, int64Codec{}, func(idx int) int64 { return int64(idx) })
			if err := api.WriteBinary[int64](d, int64Codec{}, path); err != nil {
				return err
			}
			back := api.ReadBinary[int64](ctx, int64Codec{}, path)
			all, err := api.AllGather(back, int64Codec{})
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return fmt.Sprintf("%v", result), nil
}

// scenarioSort is spec §8 scenario 5.
func scenarioSort(ctxs []*api.Context) (string, error) {
	input := []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}
	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			var local []int64
			if i == 0 {
				local = input
			}
			d := api.Distribute[int64](ctx, int64Codec{}, local)
			sorted := api.Sort(d, int64Codec{}, func(a, b int64) bool { return a < b })
			all, err := api.Gather(sorted, int64Codec{}, 0)
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}

// scenarioMerge is spec §8 scenario 6.
func scenarioMerge(ctxs []*api.Context) (string, error) {
	var evens, odds []int64
	for v := int64(0); v < 100; v += 2 {
		evens = append(evens, v)
	}
	for v := int64(1); v < 100; v += 2 {
		odds = append(odds, v)
	}

	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			var le, lo []int64
			if i == 0 {
				le, lo = evens, odds
			}
			a := api.Distribute[int64](ctx, int64Codec{}, le)
			b := api.Distribute[int64](ctx, int64Codec{}, lo)
			merged := api.Merge(a, b, int64Codec{}, func(x, y int64) bool { return x < y })
			all, err := api.Gather(merged, int64Codec{}, 0)
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", result), nil
}
