package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/booking-orders/internal/domain/catalog"
	"github.com/xenking/booking-orders/internal/storage/postgres"
	"github.com/xenking/booking-orders/internal/storage/redis"
)

const (
	servicesFile = "services.ndjson.gz"
	extrasFile   = "extras.ndjson.gz"
	batchSize    = 500
	maxLineBytes = 1 << 20
)

type options struct {
	dataDir     string
	databaseURL string
	redisAddr   string
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing services.ndjson.gz and extras.ndjson.gz")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address of the catalog cache to invalidate (optional)")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}

	lg.Info("Catalog import completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	servicesPath := filepath.Join(opts.dataDir, servicesFile)
	extrasPath := filepath.Join(opts.dataDir, extrasFile)
	for _, p := range []string{servicesPath, extrasPath} {
		if _, err := os.Stat(p); err != nil {
			return errors.Wrapf(err, "check file %s", p)
		}
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	repo := postgres.NewCatalogRepository(pool)

	var serviceIDs, extraIDs []string

	// Both catalogs stream concurrently; each file is upserted in batches.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := importFile(gctx, servicesPath, func(batch []catalog.Service) error {
			for _, s := range batch {
				serviceIDs = append(serviceIDs, s.ID)
			}
			return repo.UpsertServices(gctx, batch)
		})
		if err != nil {
			return errors.Wrap(err, "import services")
		}
		lg.Info("Imported services", zap.Int("count", n))
		return nil
	})
	g.Go(func() error {
		n, err := importFile(gctx, extrasPath, func(batch []catalog.Extra) error {
			for _, e := range batch {
				extraIDs = append(extraIDs, e.ID)
			}
			return repo.UpsertExtras(gctx, batch)
		})
		if err != nil {
			return errors.Wrap(err, "import extras")
		}
		lg.Info("Imported extras", zap.Int("count", n))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.redisAddr == "" {
		return nil
	}
	return invalidate(ctx, lg, opts.redisAddr, repo, serviceIDs, extraIDs)
}

// invalidate drops the imported ids from the catalog cache so the API reads
// the new prices on its next lookup.
func invalidate(ctx context.Context, lg *zap.Logger, addr string, repo catalog.Repository, serviceIDs, extraIDs []string) error {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	cache := redis.NewCatalogCache(client, repo, 0)
	if err := cache.InvalidateServices(ctx, serviceIDs...); err != nil {
		return errors.Wrap(err, "invalidate cached services")
	}
	if err := cache.InvalidateExtras(ctx, extraIDs...); err != nil {
		return errors.Wrap(err, "invalidate cached extras")
	}

	lg.Info("Invalidated catalog cache",
		zap.String("redis", addr),
		zap.Int("services", len(serviceIDs)),
		zap.Int("extras", len(extraIDs)),
	)
	return nil
}

// importFile streams a gzip-compressed NDJSON file into flush.
func importFile[T any](ctx context.Context, path string, flush func([]T) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return decodeBatches(ctx, gz, batchSize, flush)
}

// decodeBatches decodes one JSON document per line, skipping blank lines,
// and hands them to flush at most size at a time.
func decodeBatches[T any](ctx context.Context, r io.Reader, size int, flush func([]T) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		batch = make([]T, 0, size)
		total int
		line  int
	)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return total, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return total, errors.Wrapf(err, "decode line %d", line)
		}
		batch = append(batch, v)

		if len(batch) == size {
			if err := flush(batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = make([]T, 0, size)
		}
	}
	if err := scanner.Err(); err != nil {
		return total, errors.Wrap(err, "scan")
	}

	if len(batch) > 0 {
		if err := flush(batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}
