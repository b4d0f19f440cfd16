package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// Session: ответ GoTrue на выдачу токенов
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// MetaString: строковое поле user_metadata (пустая строка, если нет)
func (u *User) MetaString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// UserAttributes: тело PUT /user; пустые поля не отправляются
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type SignUpParams struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type VerifyParams struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// AuthClient: клиент GoTrue (/auth/v1). Один на процесс.
type AuthClient struct {
	client
	now func() time.Time
}

func NewAuthClient(baseURL, apiKey string, hc *http.Client) *AuthClient {
	return &AuthClient{
		client: newClient(ServiceAuth, baseURL+"/auth/v1", apiKey, hc),
		now:    time.Now,
	}
}

// SignUp регистрирует пользователя. При включённом подтверждении почты GoTrue
// отдаёт только пользователя, тогда в Session заполнен лишь User.
func (a *AuthClient) SignUp(ctx context.Context, p SignUpParams) (*Session, error) {
	var raw json.RawMessage
	if err := a.doJSON(ctx, http.MethodPost, "/signup", nil, "", p, &raw); err != nil {
		return nil, err
	}
	if gjson.GetBytes(raw, "access_token").Exists() {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, transportErr(ServiceAuth, err)
		}
		return &s, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, transportErr(ServiceAuth, err)
	}
	return &Session{User: &u}, nil
}

func (a *AuthClient) token(ctx context.Context, grant string, body any) (*Session, error) {
	var s Session
	q := url.Values{"grant_type": {grant}}
	if err := a.doJSON(ctx, http.MethodPost, "/token", q, "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.token(ctx, "password", map[string]string{"email": email, "password": password})
}

func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (a *AuthClient) VerifyOTP(ctx context.Context, p VerifyParams) (*Session, error) {
	var s Session
	if err := a.doJSON(ctx, http.MethodPost, "/verify", nil, "", p, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resend повторно отправляет код (type: signup, email_change, ...)
func (a *AuthClient) Resend(ctx context.Context, typ, email string) error {
	return a.doJSON(ctx, http.MethodPost, "/resend", nil, "", map[string]string{"type": typ, "email": email}, nil)
}

// GetUser: пользователь по его access token
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := a.doJSON(ctx, http.MethodGet, "/user", nil, accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *AuthClient) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error) {
	var u User
	if err := a.doJSON(ctx, http.MethodPut, "/user", nil, accessToken, attrs, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

var errMissingExp = errors.New("access token has no exp claim")

// SetSession восстанавливает сессию из пары токенов. Подпись не проверяем: это делает платформа.
// Истёкший access token обменивается на новую сессию по refresh token,
// а живой проверяется запросом пользователя.
func (a *AuthClient) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, &Error{Service: ServiceAuth, Code: "bad_jwt", Message: "invalid access token", Err: err}
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp == nil {
		err = errMissingExp
	}
	if err != nil {
		return nil, &Error{Service: ServiceAuth, Code: "bad_jwt", Message: "invalid access token", Err: err}
	}

	now := a.now()
	if !exp.After(now) {
		if refreshToken == "" {
			return nil, &Error{Service: ServiceAuth, Code: "session_expired", Message: "access token expired and no refresh token given"}
		}
		return a.RefreshSession(ctx, refreshToken)
	}

	u, err := a.GetUser(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("set session: %w", err)
	}
	return &Session{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresAt:    exp.Unix(),
		ExpiresIn:    int64(exp.Sub(now).Seconds()),
		RefreshToken: refreshToken,
		User:         u,
	}, nil
}
