package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// UserRecord: строка таблицы users
type UserRecord struct {
	ID                string  `json:"id"`
	FirstName         string  `json:"firstName"`
	LastName          *string `json:"lastName"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	AvatarURL         *string `json:"avatarUrl"`
	Bio               *string `json:"bio"`
	IsDeleted         *bool   `json:"isDeleted"`
	Role              string  `json:"role"`
	Suspended         *bool   `json:"suspended"`
	LastNameChangedAt *string `json:"lastNameChangedAt"`
	ModeratorID       *string `json:"moderatorId"`
	CreatedAt         *string `json:"createdAt"`
	UpdatedAt         *string `json:"updatedAt"`
}

// UserInput: переменные upsert'а пользователя
type UserInput struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Role        string  `json:"role"`
	ModeratorID *string `json:"moderatorId"`
}

// GraphQLClient ходит в Hasura под admin secret
type GraphQLClient struct {
	endpoint string
	secret   string
	http     *http.Client
}

func NewGraphQLClient(endpoint, adminSecret string, hc *http.Client) *GraphQLClient {
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	return &GraphQLClient{
		endpoint: strings.TrimRight(endpoint, "/") + "/v1/graphql",
		secret:   adminSecret,
		http:     hc,
	}
}

// Do выполняет запрос и возвращает поле data целиком.
// Непустой errors[] означает ошибку API с сообщением первой ошибки.
func (g *GraphQLClient) Do(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return nil, fmt.Errorf("graphql: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, transportErr(ServiceGraphQL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-hasura-admin-secret", g.secret)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, transportErr(ServiceGraphQL, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, transportErr(ServiceGraphQL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := decodeError(ServiceGraphQL, resp.StatusCode, body)
		e.Transport = true
		return nil, e
	}

	res := gjson.ParseBytes(body)
	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		first := errs.Array()[0]
		return nil, &Error{
			Service: ServiceGraphQL,
			Status:  resp.StatusCode,
			Code:    first.Get("extensions.code").String(),
			Message: first.Get("message").String(),
			Body:    json.RawMessage(errs.Raw),
		}
	}
	return json.RawMessage(res.Get("data").Raw), nil
}

// Request возвращает значение первого поля data: Hasura кладёт результат под имя корневого поля.
// null и отсутствие data дают nil.
func (g *GraphQLClient) Request(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	data, err := g.Do(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	var first gjson.Result
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		first = v
		return false
	})
	if !first.Exists() || first.Type == gjson.Null {
		return nil, nil
	}
	return json.RawMessage(first.Raw), nil
}

func (g *GraphQLClient) requestInto(ctx context.Context, query string, vars map[string]any, out any) (bool, error) {
	raw, err := g.Request(ctx, query, vars)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, transportErr(ServiceGraphQL, fmt.Errorf("decode response: %w", err))
	}
	return true, nil
}

// UpsertUser создаёт строку users или обновляет профильные поля существующей
func (g *GraphQLClient) UpsertUser(ctx context.Context, in UserInput) (*UserRecord, error) {
	vars := map[string]any{
		"id":          in.ID,
		"firstName":   in.FirstName,
		"lastName":    in.LastName,
		"email":       in.Email,
		"phone":       in.Phone,
		"role":        in.Role,
		"moderatorId": in.ModeratorID,
	}
	var u UserRecord
	ok, err := g.requestInto(ctx, upsertUserMutation, vars, &u)
	if !ok {
		return nil, err
	}
	return &u, nil
}
