package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"gatekeeper/internal/upstream"
)

// LocalStore: хранилище объектов на диске для разработки: Root/<bucket>/<key>.
// Отдаётся роутером по BaseURL + "/files/<bucket>/<key>".
type LocalStore struct {
	Root    string // например, "./uploads"
	BaseURL string // например, "http://localhost:3000"
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func notFound(msg string) error {
	return &upstream.Error{Service: upstream.ServiceStorage, Status: http.StatusNotFound, Code: "not_found", Message: msg}
}

// diskErr: ошибка файловой системы без абсолютного пути на диске, только bucket/key
func diskErr(op, bucket, key string, err error) error {
	cause := err
	var pe *fs.PathError
	if errors.As(err, &pe) {
		cause = pe.Err
	}
	return &upstream.Error{
		Service:   upstream.ServiceStorage,
		Status:    http.StatusInternalServerError,
		Code:      "internal",
		Message:   fmt.Sprintf("%s %s: %v", op, path.Join(bucket, key), cause),
		Transport: true,
		Err:       err,
	}
}

// resolve превращает bucket/key в путь на диске, не выпуская его за пределы Root
func (s *LocalStore) resolve(bucket, key string) (string, error) {
	joined := path.Join(bucket, strings.Trim(key, "/"))
	inBucket := joined == bucket || strings.HasPrefix(joined, bucket+"/")
	rel := filepath.FromSlash(joined)
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) || !inBucket || !filepath.IsLocal(rel) {
		return "", &upstream.Error{
			Service: upstream.ServiceStorage,
			Status:  http.StatusBadRequest,
			Code:    "invalid_key",
			Message: fmt.Sprintf("invalid object key %q", key),
		}
	}
	return filepath.Join(s.Root, rel), nil
}

// Upload пишет объект; существующий ключ не перезаписывается
func (s *LocalStore) Upload(_ context.Context, bucket, key string, r io.Reader, _ string) error {
	full, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return diskErr("upload", bucket, key, err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return &upstream.Error{Service: upstream.ServiceStorage, Status: http.StatusConflict, Code: "Duplicate", Message: "The resource already exists"}
	}
	if err != nil {
		return diskErr("upload", bucket, key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return diskErr("upload", bucket, key, err)
	}
	if err := f.Close(); err != nil {
		return diskErr("upload", bucket, key, err)
	}
	return nil
}

// List: объекты непосредственно под prefix (без рекурсии), как storage-api.
// Подкаталоги отдаются папками: только имя, без метаданных.
func (s *LocalStore) List(_ context.Context, bucket, prefix string, opts upstream.ListOptions) ([]upstream.Object, error) {
	dir, err := s.resolve(bucket, prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []upstream.Object{}, nil
	}
	if err != nil {
		return nil, diskErr("list", bucket, prefix, err)
	}

	out := make([]upstream.Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, upstream.Object{Name: e.Name()})
			continue
		}
		obj, err := describe(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, diskErr("list", bucket, path.Join(prefix, e.Name()), err)
		}
		out = append(out, obj)
	}

	// ReadDir уже отсортирован по имени
	if strings.EqualFold(opts.SortBy.Order, "desc") {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []upstream.Object{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// describe: метаданные файла в форме storage-api: размер, mimetype, eTag (sha256)
func describe(full string) (upstream.Object, error) {
	f, err := os.Open(full)
	if err != nil {
		return upstream.Object{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return upstream.Object{}, err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return upstream.Object{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return upstream.Object{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return upstream.Object{}, err
	}

	mod := st.ModTime().UTC()
	return upstream.Object{
		Name:      st.Name(),
		UpdatedAt: &mod,
		Metadata: map[string]any{
			"size":     st.Size(),
			"mimetype": mt.String(),
			"eTag":     hex.EncodeToString(h.Sum(nil)),
		},
	}, nil
}

// Remove удаляет объекты; отсутствующие ключи и папки пропускаются, как в storage-api
func (s *LocalStore) Remove(_ context.Context, bucket string, keys []string) error {
	for _, k := range keys {
		full, err := s.resolve(bucket, k)
		if err != nil {
			return err
		}
		st, err := os.Lstat(full)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return diskErr("remove", bucket, k, err)
		}
		if st.IsDir() {
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return diskErr("remove", bucket, k, err)
		}
	}
	return nil
}

func (s *LocalStore) PublicURL(bucket, key string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.BaseURL + "/files/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Open открывает объект на чтение (для раздачи через /files)
func (s *LocalStore) Open(bucket, key string) (*os.File, error) {
	full, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("Object not found")
	}
	return f, err
}
