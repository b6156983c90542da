// Command coupon-import loads coupon definitions from gzipped JSON-lines
// files. A code defined in more than one file is ambiguous and is skipped;
// within one file the last definition wins.
package main

import (
	"bufio"
	"context"
	"flag"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	maxFiles      = 64
	maxLineBytes  = 64 << 10
	progressEvery = 100_000
	writeWorkers  = 8
)

type options struct {
	databaseURL   string
	files         []string
	bloomCapacity uint
	dryRun        bool
}

// fileResult holds the coupons parsed from one file and the codes that may
// also appear in another file.
type fileResult struct {
	coupons    map[string]*coupon.Coupon
	candidates map[string]uint
	invalid    int
}

func main() {
	var (
		opts    options
		dataDir string
	)
	flag.StringVar(&dataDir, "data-dir", "", "directory with *.jsonl.gz files (alternative to positional args)")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.bloomCapacity, "bloom-capacity", 1_000_000, "expected codes per file")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	opts.files = flag.Args()
	if dataDir != "" {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			lg.Fatal("Glob data dir", zap.Error(err))
		}
		opts.files = append(opts.files, matches...)
	}
	if len(opts.files) == 0 {
		lg.Fatal("No input files: pass paths or --data-dir")
	}
	if len(opts.files) > maxFiles {
		lg.Fatal("Too many input files", zap.Int("files", len(opts.files)), zap.Int("max", maxFiles))
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
	lg.Info("Coupon import completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	for _, f := range opts.files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: one bloom filter of codes per file.
	lg.Info("Pass 1: building bloom filters", zap.Int("files", len(opts.files)))
	filters, err := buildBloomFilters(ctx, lg, opts.files, opts.bloomCapacity)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: parse coupons and flag codes other files may also define.
	lg.Info("Pass 2: parsing coupons")
	results, err := parseFiles(ctx, lg, opts.files, filters, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	unique, duplicates := mergeResults(results)
	lg.Info("Coupons parsed",
		zap.Int("unique", len(unique)),
		zap.Int("duplicates", len(duplicates)),
	)
	for _, code := range duplicates {
		lg.Warn("Code defined in several files, skipped", zap.String("code", code))
	}

	if opts.dryRun || len(unique) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, lg, postgres.NewCouponRepository(pool), unique); err != nil {
		return errors.Wrap(err, "write coupons")
	}
	return nil
}

func buildBloomFilters(ctx context.Context, lg *zap.Logger, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count int
			if err := streamGzFile(ctx, path, func(line []byte) error {
				code, ok := peekCode(line)
				if ok {
					filter.AddString(code)
					count++
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			lg.Info("Pass 1 complete", zap.String("file", path), zap.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func parseFiles(ctx context.Context, lg *zap.Logger, files []string, filters []*bloom.BloomFilter, now time.Time) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			res := fileResult{
				coupons:    make(map[string]*coupon.Coupon),
				candidates: make(map[string]uint),
			}
			fileBit := uint(1) << uint(i)
			var lineNo int

			if err := streamGzFile(ctx, path, func(line []byte) error {
				lineNo++
				if lineNo%progressEvery == 0 {
					lg.Info("Pass 2 progress", zap.String("file", path), zap.Int("lines", lineNo))
				}
				c, err := decodeCoupon(line, now)
				if err != nil {
					res.invalid++
					lg.Warn("Skipping invalid line",
						zap.String("file", path),
						zap.Int("line", lineNo),
						zap.Error(err),
					)
					return nil
				}
				res.coupons[c.Code] = c
				for j, f := range filters {
					if j != i && f.TestString(c.Code) {
						res.candidates[c.Code] |= fileBit
						break
					}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}

			lg.Info("Pass 2 complete",
				zap.String("file", path),
				zap.Int("coupons", len(res.coupons)),
				zap.Int("candidates", len(res.candidates)),
				zap.Int("invalid", res.invalid),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// mergeResults confirms bloom candidates exactly: a code is a duplicate only
// when at least two files flagged it. Bloom false positives flag a code in
// one file only and are kept.
func mergeResults(results []fileResult) (unique []*coupon.Coupon, duplicates []string) {
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			duplicates = append(duplicates, code)
		}
	}
	slices.Sort(duplicates)

	for _, r := range results {
		for code, c := range r.coupons {
			if _, dup := slices.BinarySearch(duplicates, code); dup {
				continue
			}
			unique = append(unique, c)
		}
	}
	slices.SortFunc(unique, func(a, b *coupon.Coupon) int {
		switch {
		case a.Code < b.Code:
			return -1
		case a.Code > b.Code:
			return 1
		default:
			return 0
		}
	})
	return unique, duplicates
}

func writeCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, coupons []*coupon.Coupon) error {
	lg.Info("Writing coupons", zap.Int("count", len(coupons)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writeWorkers)
	for _, c := range coupons {
		g.Go(func() error {
			return repo.Upsert(ctx, c)
		})
	}
	return g.Wait()
}

// streamGzFile calls fn for each non-empty line of a gzip-compressed file.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
