package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gatekeeper/internal/config"
	"gatekeeper/internal/dsl"
	"gatekeeper/internal/gqlgen"
	"gatekeeper/internal/pg"
)

func main() {
	os.Exit(run())
}

func run() int {
	watch := flag.Bool("watch", false, "Regenerate on every change of the descriptor file")
	dialect := flag.String("dialect", "", "Generate only one dialect (graphql/go)")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := gqlgen.NewDriver(
		gqlgen.NewRenderer(cfg.Generator.Package),
		gqlgen.NewEmitter(cfg.Generator.OutDir),
		log,
	)
	if *dialect != "" {
		d, err := gqlgen.ParseDialect(*dialect)
		if err != nil {
			log.Error("bad -dialect", zap.Error(err))
			return 2
		}
		driver = driver.WithDialects(d)
	}

	generate := func(ctx context.Context) error {
		// 1. описания: каталог Postgres или файл
		entities, err := loadEntities(ctx, cfg)
		if err != nil {
			return err
		}
		log.Info("loaded entities", zap.Int("count", len(entities)))

		// 2. замечания не останавливают генерацию
		for _, is := range dsl.Lint(entities) {
			log.Warn(is.Message,
				zap.String("entity", is.Entity),
				zap.String("field", is.Field),
				zap.String("code", is.Code),
			)
		}

		// 3. рендер и запись
		_, err = driver.Run(ctx, entities)
		return err
	}

	if err := generate(ctx); err != nil {
		log.Error("generate failed", zap.Error(err))
		if !*watch {
			return 1
		}
	}
	if !*watch {
		return 0
	}

	if cfg.DBURL != "" {
		log.Error("-watch works with descriptor files only, unset -db")
		return 2
	}
	if err := gqlgen.Watch(ctx, cfg.Generator.TypesPath, log, generate); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("watch failed", zap.Error(err))
		return 1
	}
	return 0
}

func loadEntities(ctx context.Context, cfg config.Config) ([]*dsl.Entity, error) {
	if cfg.DBURL == "" {
		return dsl.LoadAllEntities(cfg.Generator.TypesPath)
	}
	db, err := pg.Open(ctx, cfg.DBURL, cfg.Generator.DBSchema)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return pg.Introspect(ctx, db, cfg.Generator.DBSchema, cfg.Generator.Tables)
}
