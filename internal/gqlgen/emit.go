package gqlgen

import (
	"fmt"
	"os"
	"path/filepath"
)

// Emitter форматирует артефакт и пишет его в Dir/{Plural}.{ext}, перезаписывая без вопросов
type Emitter struct {
	Dir string
}

func NewEmitter(dir string) *Emitter {
	return &Emitter{Dir: dir}
}

// Path: куда ляжет артефакт
func (em *Emitter) Path(a *Artifact) string {
	return filepath.Join(em.Dir, a.Entity.Plural+"."+a.Dialect.Ext())
}

// Emit возвращает путь записанного файла
func (em *Emitter) Emit(a *Artifact) (string, error) {
	path := em.Path(a)

	body, err := Format(a.Dialect, filepath.Base(path), a.Body)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(em.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
