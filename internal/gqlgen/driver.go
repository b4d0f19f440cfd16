package gqlgen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gatekeeper/internal/dsl"
)

// Driver прогоняет список сущностей через Renderer и Emitter.
// Строго последовательно; первая ошибка останавливает пачку, уже записанные файлы остаются.
type Driver struct {
	renderer *Renderer
	emitter  *Emitter
	dialects []Dialect
	log      *zap.Logger
}

func NewDriver(r *Renderer, em *Emitter, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{renderer: r, emitter: em, dialects: Dialects, log: log}
}

// WithDialects ограничивает набор диалектов (порядок сохраняется)
func (d *Driver) WithDialects(ds ...Dialect) *Driver {
	if len(ds) > 0 {
		d.dialects = ds
	}
	return d
}

// Run возвращает пути записанных файлов в порядке записи
func (d *Driver) Run(ctx context.Context, entities []*dsl.Entity) ([]string, error) {
	var written []string
	for _, e := range entities {
		for _, dl := range d.dialects {
			if err := ctx.Err(); err != nil {
				return written, err
			}

			a, err := d.renderer.Render(e, dl)
			if err != nil {
				return written, fmt.Errorf("render %s (%s): %w", e.Plural, dl, err)
			}
			path, err := d.emitter.Emit(a)
			if err != nil {
				return written, fmt.Errorf("emit %s (%s): %w", e.Plural, dl, err)
			}
			d.log.Info("generated", zap.String("entity", e.Singular), zap.String("dialect", dl.String()), zap.String("path", path))
			written = append(written, path)
		}
	}
	return written, nil
}
