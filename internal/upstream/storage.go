package upstream

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Object: элемент листинга storage-api
type Object struct {
	Name      string         `json:"name"`
	ID        string         `json:"id,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type SortBy struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

type ListOptions struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy SortBy `json:"sortBy"`
}

// StorageClient: клиент storage-api (/storage/v1) под сервисным ключом
type StorageClient struct {
	client
	publicBase string
}

func NewStorageClient(baseURL, apiKey string, hc *http.Client) *StorageClient {
	base := strings.TrimRight(baseURL, "/") + "/storage/v1"
	return &StorageClient{
		client:     newClient(ServiceStorage, base, apiKey, hc),
		publicBase: base + "/object/public",
	}
}

// escapePath экранирует сегменты ключа, сохраняя "/"
func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// List возвращает объекты непосредственно под prefix
func (s *StorageClient) List(ctx context.Context, bucket, prefix string, opts ListOptions) ([]Object, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.SortBy.Column == "" {
		opts.SortBy = SortBy{Column: "name", Order: "asc"}
	}
	body := struct {
		Prefix string `json:"prefix"`
		ListOptions
	}{Prefix: prefix, ListOptions: opts}

	var out []Object
	if err := s.doJSON(ctx, http.MethodPost, "/object/list/"+url.PathEscape(bucket), nil, "", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove удаляет объекты по полным ключам
func (s *StorageClient) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.doJSON(ctx, http.MethodDelete, "/object/"+url.PathEscape(bucket), nil, "",
		map[string][]string{"prefixes": paths}, nil)
}

// Upload кладёт объект; существующий ключ не перезаписывается (x-upsert: false)
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	_, err := s.do(ctx, request{
		method:      http.MethodPost,
		path:        "/object/" + url.PathEscape(bucket) + "/" + escapePath(path),
		body:        body,
		contentType: contentType,
		header: http.Header{
			"Cache-Control": {"max-age=3600"},
			"X-Upsert":      {"false"},
		},
	})
	return err
}

// PublicURL считается локально, без запроса
func (s *StorageClient) PublicURL(bucket, path string) string {
	return s.publicBase + "/" + url.PathEscape(bucket) + "/" + escapePath(path)
}
