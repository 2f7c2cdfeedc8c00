// Bench is a benchmarking tool for measuring n-gram value store build time,
// packed and compressed sizes, and cached scoring throughput.
//
// It plays the part of a language model wrapper: synthetic n-grams are
// resolved to offsets through a trie, their values are stored in a
// rank-quantized container, and scoring goes through per-worker caches.
//
// Usage:
//
//	go run ./cmd/bench -orders 3 -ngrams 200000 -workers 4
//
// Flags:
//
//	-orders      Number of n-gram orders (default: 3)
//	-ngrams      N-grams per order (default: 200,000)
//	-vocab       Vocabulary size (default: 20,000)
//	-queries     Scoring queries per worker (default: 1,000,000)
//	-workers     Number of parallel workers (default: 1)
//	-cachebits   log2 of the cache bucket count (default: 16)
//	-radix       Compression block width (default: 6)
//	-out         Write the values to this file and score from the mapping
//	-json        Print the report as JSON
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/derekparker/trie"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/ngramstore"
	"github.com/tamirms/ngramstore/cache"
	"github.com/tamirms/ngramstore/rank"
)

// report is the benchmark summary, printed as text or JSON.
type report struct {
	Orders          int       `json:"orders"`
	NgramsPerOrder  int       `json:"ngrams_per_order"`
	Workers         int       `json:"workers"`
	DistinctProbs   int       `json:"distinct_probs"`
	DistinctBackoff int       `json:"distinct_backoffs"`
	PackedBits      []int     `json:"packed_bits_per_order"`
	CompressedBits  []float64 `json:"compressed_bits_per_order"`
	BuildSeconds    float64   `json:"build_seconds"`
	CompressSeconds float64   `json:"compress_seconds"`
	FileBytes       int64     `json:"file_bytes,omitempty"`
	Queries         int64     `json:"queries"`
	QueriesPerSec   float64   `json:"queries_per_sec"`
	NgramHitRate    float64   `json:"ngram_cache_hit_rate"`
	ContextHitRate  float64   `json:"context_cache_hit_rate"`
	MaxRSSBytes     uint64    `json:"max_rss_bytes"`
}

// getMaxRSS returns the maximum resident set size in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// corpus is a synthetic model: n-grams per order, their values, and the
// trie that resolves an n-gram key to its offset.
type corpus struct {
	ngrams   [][][]int32
	values   [][]rank.ProbBackoff
	suffixes [][]int64
	offsets  *trie.Trie
}

func ngramKey(order int, ngram []int32) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(order))
	for _, w := range ngram {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(int(w)))
	}
	return sb.String()
}

// generateCorpus builds each order by prefixing a word to an n-gram of the
// order below, so every n-gram's suffix exists.
func generateCorpus(rng *rand.Rand, orders, perOrder, vocab int) *corpus {
	c := &corpus{
		ngrams:   make([][][]int32, orders),
		values:   make([][]rank.ProbBackoff, orders),
		suffixes: make([][]int64, orders),
		offsets:  trie.New(),
	}
	zipf := rand.NewZipf(rng, 1.2, 1, uint64(vocab-1))
	probs := make([]float32, 4096)
	for i := range probs {
		probs[i] = -float32(rng.IntN(7000)+1) / 1000
	}
	backoffs := make([]float32, 256)
	for i := range backoffs {
		backoffs[i] = -float32(rng.IntN(1000)) / 1000
	}
	probZipf := rand.NewZipf(rng, 1.1, 4, uint64(len(probs)-1))

	for order := range orders {
		limit := perOrder
		if order == 0 {
			limit = min(perOrder, vocab)
		}
		for attempts := 0; len(c.ngrams[order]) < limit && attempts < 4*perOrder; attempts++ {
			word := int32(zipf.Uint64())
			ngram := []int32{word}
			var suffix int64
			if order > 0 {
				suffix = rng.Int64N(int64(len(c.ngrams[order-1])))
				ngram = append(ngram, c.ngrams[order-1][suffix]...)
			}
			key := ngramKey(order, ngram)
			if _, ok := c.offsets.Find(key); ok {
				continue
			}
			offset := int64(len(c.ngrams[order]))
			c.offsets.Add(key, offset)
			c.ngrams[order] = append(c.ngrams[order], ngram)
			c.suffixes[order] = append(c.suffixes[order], suffix)

			pb := rank.ProbBackoff{Prob: probs[probZipf.Uint64()]}
			if order < orders-1 {
				pb.Backoff = backoffs[rng.IntN(len(backoffs))]
			}
			c.values[order] = append(c.values[order], pb)
		}
	}
	return c
}

// resolve looks an n-gram up in the trie.
func (c *corpus) resolve(order int, ngram []int32) (int64, bool) {
	node, ok := c.offsets.Find(ngramKey(order, ngram))
	if !ok {
		return 0, false
	}
	return node.Meta().(int64), true
}

func main() {
	ordersFlag := flag.Int("orders", 3, "number of n-gram orders")
	ngramsFlag := flag.Int("ngrams", 200_000, "n-grams per order")
	vocabFlag := flag.Int("vocab", 20_000, "vocabulary size")
	queriesFlag := flag.Int("queries", 1_000_000, "scoring queries per worker")
	workersFlag := flag.Int("workers", 1, "number of parallel workers")
	cacheBitsFlag := flag.Int("cachebits", 16, "log2 of the cache bucket count")
	radixFlag := flag.Int("radix", 6, "compression block width")
	outFlag := flag.String("out", "", "write values to this file and score from the mapping")
	jsonFlag := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	if err := run(benchConfig{
		orders:    *ordersFlag,
		ngrams:    *ngramsFlag,
		vocab:     *vocabFlag,
		queries:   *queriesFlag,
		workers:   max(*workersFlag, 1),
		cacheBits: *cacheBitsFlag,
		radix:     *radixFlag,
		out:       *outFlag,
		json:      *jsonFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		os.Exit(1)
	}
}

type benchConfig struct {
	orders, ngrams, vocab, queries, workers, cacheBits, radix int
	out                                                       string
	json                                                      bool
}

func run(cfg benchConfig) error {
	rng := rand.New(rand.NewPCG(0x1234, 0x5678))
	rep := report{Orders: cfg.orders, NgramsPerOrder: cfg.ngrams, Workers: cfg.workers}

	progress("Generating n-grams...", cfg.json)
	corp := generateCorpus(rng, cfg.orders, cfg.ngrams, cfg.vocab)

	progress("Building values...", cfg.json)
	buildStart := time.Now()
	counter := rank.NewProbBackoffCounter(4096)
	numNgrams := make([]int64, cfg.orders)
	for order, vals := range corp.values {
		numNgrams[order] = int64(len(vals))
		for _, pb := range vals {
			if err := counter.Observe(pb, 1); err != nil {
				return err
			}
		}
	}
	b, err := ngramstore.NewProbBackoffBuilder(counter, cfg.orders,
		ngramstore.WithSuffixOffsets(numNgrams),
		ngramstore.WithCompressionRadix(cfg.radix),
		ngramstore.WithWorkers(cfg.workers),
	)
	if err != nil {
		return err
	}
	for order, vals := range corp.values {
		for i, pb := range vals {
			ngram := corp.ngrams[order][i]
			b.Add(ngram, 0, len(ngram), order, int64(i), -1, ngram[0], pb, corp.suffixes[order][i], true)
		}
	}
	values, err := b.Freeze()
	if err != nil {
		return err
	}
	rep.BuildSeconds = time.Since(buildStart).Seconds()
	if tables, ok := values.Quantizer().(*rank.ProbBackoffTables); ok {
		rep.DistinctProbs = tables.NumProbs()
		rep.DistinctBackoff = tables.NumBackoffs()
	}

	progress("Compressing...", cfg.json)
	compressStart := time.Now()
	compressed, err := values.CompressAll(context.Background())
	if err != nil {
		return err
	}
	rep.CompressSeconds = time.Since(compressStart).Seconds()
	for order, c := range compressed {
		rep.PackedBits = append(rep.PackedBits, values.NumValueBits(order))
		rep.CompressedBits = append(rep.CompressedBits, c.BitsPerRecord())
	}

	if cfg.out != "" {
		progress("Writing "+cfg.out+"...", cfg.json)
		if err := ngramstore.WriteFile(cfg.out, values); err != nil {
			return err
		}
		mapped, err := ngramstore.OpenProbBackoff(cfg.out)
		if err != nil {
			return err
		}
		defer func() { _ = mapped.Close() }()
		if err := mapped.Verify(); err != nil {
			return err
		}
		if st, err := os.Stat(cfg.out); err == nil {
			rep.FileBytes = st.Size()
		}
		values = mapped
	}

	progress("Scoring...", cfg.json)
	if err := score(cfg, corp, values, &rep); err != nil {
		return err
	}
	rep.MaxRSSBytes = getMaxRSS()

	if cfg.json {
		out, err := sonnet.Marshal(rep)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	printReport(&rep)
	return nil
}

// score runs cfg.workers scoring loops, each with its own caches. A query
// scores the highest-order n-gram and walks its suffix chain down to the
// unigram, as backoff scoring does.
func score(cfg benchConfig, corp *corpus, values *ngramstore.Values[rank.ProbBackoff], rep *report) error {
	ngramCaches, err := cache.NewNgramFactory(cache.PerWorker, cfg.cacheBits, cfg.orders)
	if err != nil {
		return err
	}
	contextCaches, err := cache.NewContextFactory(cache.PerWorker, cfg.cacheBits)
	if err != nil {
		return err
	}

	var ngramHits, contextHits, contextLookups atomic.Int64
	top := cfg.orders - 1
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	for w := range cfg.workers {
		g.Go(func() error {
			ngc, err := ngramCaches.Handle()
			if err != nil {
				return err
			}
			cxc, err := contextCaches.Handle()
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(w), 0x9abc))
			zipf := rand.NewZipf(rng, 1.3, 1, uint64(len(corp.ngrams[top])-1))
			var pb rank.ProbBackoff
			for q := 0; q < cfg.queries; q++ {
				if q%4096 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				ngram := corp.ngrams[top][zipf.Uint64()]
				h := cache.HashNgram(ngram)
				if p := ngc.GetCached(ngram, 0, len(ngram), h); !cache.IsAbsent(p) {
					ngramHits.Add(1)
					continue
				}
				offset, ok := corp.resolve(top, ngram)
				if !ok {
					return fmt.Errorf("n-gram %v not in trie", ngram)
				}
				if err := values.GetFromOffset(offset, top, &pb); err != nil {
					return err
				}
				total := pb.Prob

				// walk the suffix chain through the context cache
				word := ngram[len(ngram)-1]
				for order := top; order > 0; order-- {
					contextLookups.Add(1)
					ch := cache.HashContext(offset, order, word)
					p, next := cxc.GetCached(offset, order, word, ch)
					if cache.IsAbsent(p) {
						suffix, err := values.SuffixOffset(offset, order)
						if err != nil {
							return err
						}
						if err := values.GetFromOffset(suffix, order-1, &pb); err != nil {
							return err
						}
						p, next = pb.Backoff, cache.ContextOutput{Offset: suffix, Order: order - 1}
						cxc.PutCached(offset, order, word, p, next, ch)
					} else {
						contextHits.Add(1)
					}
					total += p
					offset = next.Offset
				}
				ngc.PutCached(ngram, 0, len(ngram), total, h)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start).Seconds()

	rep.Queries = int64(cfg.queries) * int64(cfg.workers)
	rep.QueriesPerSec = float64(rep.Queries) / elapsed
	rep.NgramHitRate = float64(ngramHits.Load()) / float64(max(rep.Queries, 1))
	rep.ContextHitRate = float64(contextHits.Load()) / float64(max(contextLookups.Load(), 1))
	return nil
}

func progress(msg string, quiet bool) {
	if !quiet {
		fmt.Println(msg)
	}
}

func printReport(rep *report) {
	fmt.Println()
	fmt.Printf("Orders:            %d x %d n-grams\n", rep.Orders, rep.NgramsPerOrder)
	fmt.Printf("Distinct values:   %d probs, %d backoffs\n", rep.DistinctProbs, rep.DistinctBackoff)
	for order := range rep.PackedBits {
		fmt.Printf("Order %d:           %d bits packed, %.2f bits compressed\n",
			order, rep.PackedBits[order], rep.CompressedBits[order])
	}
	fmt.Printf("Build:             %.3fs\n", rep.BuildSeconds)
	fmt.Printf("Compress:          %.3fs\n", rep.CompressSeconds)
	if rep.FileBytes > 0 {
		fmt.Printf("File:              %d bytes\n", rep.FileBytes)
	}
	fmt.Printf("Scoring:           %d queries, %.0f q/s (%d workers)\n", rep.Queries, rep.QueriesPerSec, rep.Workers)
	fmt.Printf("Cache hit rates:   n-gram %.1f%%, context %.1f%%\n", rep.NgramHitRate*100, rep.ContextHitRate*100)
	fmt.Printf("Max RSS:           %.1f MB\n", float64(rep.MaxRSSBytes)/(1<<20))
}
