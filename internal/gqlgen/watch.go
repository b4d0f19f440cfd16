package gqlgen

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"gatekeeper/internal/dsl"
)

// debounce склеивает серию событий от одного сохранения в редакторе
const debounce = 200 * time.Millisecond

// Watch вызывает run при каждом изменении path (файла или каталога описаний), пока жив ctx.
// Каталог отслеживается со всеми подкаталогами, как его обходит dsl.LoadAllEntities.
// Ошибки run логируются и не прерывают наблюдение.
func Watch(ctx context.Context, path string, log *zap.Logger, run func(context.Context) error) error {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dirs := map[string]bool{}
	if st.IsDir() {
		if err := addTree(w, abs, dirs); err != nil {
			return err
		}
	} else {
		// редакторы пишут через rename, поэтому для файла следим за его каталогом
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
		}
	}
	log.Info("watching descriptors", zap.String("path", abs), zap.Int("dirs", len(dirs)))

	relevant := func(ev fsnotify.Event) bool {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
			return false
		}
		name := filepath.Clean(ev.Name)
		if !st.IsDir() {
			return name == abs
		}
		if ev.Has(fsnotify.Create) {
			if fi, err := os.Stat(name); err == nil && fi.IsDir() {
				// в новый каталог могли сразу переместить файлы описаний
				if err := addTree(w, name, dirs); err != nil {
					log.Warn("watch new directory", zap.String("dir", name), zap.Error(err))
				}
				return true
			}
		}
		if dirs[name] && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
			delete(dirs, name)
			return true
		}
		return dsl.IsDescriptorFile(name)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			if err := run(ctx); err != nil {
				log.Error("regenerate failed", zap.Error(err))
				continue
			}
			log.Info("regenerated")
		}
	}
}

// addTree ставит наблюдение на root и все его подкаталоги
func addTree(w *fsnotify.Watcher, root string, dirs map[string]bool) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || dirs[p] {
			return nil
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		dirs[p] = true
		return nil
	})
}
