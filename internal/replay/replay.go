// Package replay re-evaluates captured function inputs in bulk and reports
// what the bundle discount would have granted.
package replay

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
	"github.com/xenking/bundle-discount/internal/function"
)

const (
	maxLineSize     = 4 << 20
	defaultExpected = 1_000_000
	dedupFPR        = 0.001
	progressEvery   = 100_000
)

// Options configures a Replayer.
type Options struct {
	// Configuration replaces the configuration of every input when set.
	Configuration *bundle.RawConfiguration
	// Dedup skips documents already replayed from any file.
	Dedup bool
	// Expected sizes the dedup filter.
	Expected uint
	// Output receives every output document as one NDJSON line.
	Output io.Writer
	Logger *slog.Logger
}

// Stats aggregates replay results.
type Stats struct {
	Documents  int64
	Discounted int64
	Discounts  int64
	Skipped    int64
	Malformed  int64
	// Amount is the total discount: per-unit amount times line quantity.
	Amount decimal.Decimal
}

func (s *Stats) merge(o Stats) {
	s.Documents += o.Documents
	s.Discounted += o.Discounted
	s.Discounts += o.Discounts
	s.Skipped += o.Skipped
	s.Malformed += o.Malformed
	s.Amount = s.Amount.Add(o.Amount)
}

// Replayer evaluates function inputs. It is safe for concurrent use.
type Replayer struct {
	opts Options
	lg   *slog.Logger

	filterMu sync.Mutex
	filter   *bloom.BloomFilter

	outMu sync.Mutex
}

// New returns a Replayer configured by opts.
func New(opts Options) *Replayer {
	r := &Replayer{opts: opts, lg: opts.Logger}
	if r.lg == nil {
		r.lg = slog.Default()
	}
	if opts.Dedup {
		expected := opts.Expected
		if expected == 0 {
			expected = defaultExpected
		}
		r.filter = bloom.NewWithEstimates(expected, dedupFPR)
	}
	return r
}

// Files replays gzip compressed NDJSON files concurrently, one goroutine per
// file, and returns the combined statistics.
func (r *Replayer) Files(ctx context.Context, paths []string) (Stats, error) {
	results := make([]Stats, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			st, err := r.file(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "replay %s", path)
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var total Stats
	for _, st := range results {
		total.merge(st)
	}
	return total, nil
}

func (r *Replayer) file(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return Stats{}, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	st, err := r.Stream(ctx, gz)
	if err != nil {
		return Stats{}, err
	}
	r.lg.Info("file replayed",
		slog.String("path", path),
		slog.Int64("documents", st.Documents),
		slog.Int64("discounted", st.Discounted),
		slog.Int64("skipped", st.Skipped),
		slog.Int64("malformed", st.Malformed),
	)
	return st, nil
}

// Stream replays one function input per line of rd. Blank lines are ignored.
func (r *Replayer) Stream(ctx context.Context, rd io.Reader) (Stats, error) {
	st := Stats{Amount: decimal.Zero}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if r.seen(line) {
			st.Skipped++
			continue
		}
		if err := r.evaluate(line, &st); err != nil {
			return st, err
		}
		if st.Documents > 0 && st.Documents%progressEvery == 0 {
			r.lg.Info("replay progress", slog.Int64("documents", st.Documents))
		}
	}
	if err := scanner.Err(); err != nil {
		return st, errors.Wrap(err, "scan")
	}
	return st, nil
}

func (r *Replayer) seen(line []byte) bool {
	if r.filter == nil {
		return false
	}
	r.filterMu.Lock()
	defer r.filterMu.Unlock()
	return r.filter.TestAndAdd(line)
}

func (r *Replayer) evaluate(line []byte, st *Stats) error {
	in, err := function.DecodeInput(line)
	if err != nil {
		st.Malformed++
		return nil
	}
	if r.opts.Configuration != nil {
		in.Configuration = *r.opts.Configuration
		in.HasConfiguration = true
	}

	res := function.Evaluate(in)
	st.Documents++
	if !res.Empty() {
		st.Discounted++
	}
	st.Discounts += int64(len(res.Discounts))

	quantities := make(map[string]int, len(in.Lines))
	for _, l := range in.Lines {
		quantities[l.ID] += l.Quantity
	}
	for _, d := range res.Discounts {
		st.Amount = st.Amount.Add(d.Amount.Mul(decimal.NewFromInt(int64(quantities[d.TargetLineID]))))
	}

	if r.opts.Output == nil {
		return nil
	}
	out := append(function.EncodeResult(res), '\n')
	r.outMu.Lock()
	defer r.outMu.Unlock()
	if _, err := r.opts.Output.Write(out); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
