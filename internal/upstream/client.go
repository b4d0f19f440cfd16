package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody: сколько максимум читаем из ответа внешнего сервиса
const maxBody = 8 << 20

// NewHTTPClient: общий клиент для всех внешних сервисов
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// client: общая часть REST-клиентов платформы: базовый URL, apikey и http.Client.
// Не хранит ничего, что относится к конкретному запросу.
type client struct {
	service Service
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(svc Service, baseURL, apiKey string, hc *http.Client) client {
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	return client{
		service: svc,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}
}

// request описывает один вызов; при пустом token авторизуемся сервисным ключом
type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
	header      http.Header
}

func jsonBody(v any) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// do выполняет запрос и возвращает тело успешного ответа.
// Не-2xx превращается в *Error.
func (c *client) do(ctx context.Context, r request) ([]byte, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, transportErr(c.service, err)
	}

	token := r.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportErr(c.service, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, transportErr(c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(c.service, resp.StatusCode, body)
	}
	return body, nil
}

// readBody читает не больше maxBody; более длинный ответ считается ошибкой, а не обрезается
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBody)
	}
	return body, nil
}

// doJSON: тело in кодируется в JSON, ответ декодируется в out (если не nil)
func (c *client) doJSON(ctx context.Context, method, path string, query url.Values, token string, in, out any) error {
	body, err := jsonBody(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.service, err)
	}
	data, err := c.do(ctx, request{method: method, path: path, query: query, token: token, body: body})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return transportErr(c.service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
