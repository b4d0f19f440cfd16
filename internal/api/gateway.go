package api

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gatekeeper/internal/blob"
	"gatekeeper/internal/config"
	"gatekeeper/internal/upstream"
)

// AuthService: то, что гейтвей использует из GoTrue
type AuthService interface {
	SignUp(ctx context.Context, p upstream.SignUpParams) (*upstream.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*upstream.Session, error)
	VerifyOTP(ctx context.Context, p upstream.VerifyParams) (*upstream.Session, error)
	Resend(ctx context.Context, typ, email string) error
	RefreshSession(ctx context.Context, refreshToken string) (*upstream.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*upstream.Session, error)
	GetUser(ctx context.Context, accessToken string) (*upstream.User, error)
	UpdateUser(ctx context.Context, accessToken string, attrs upstream.UserAttributes) (*upstream.User, error)
}

// ObjectStore: storage-api или локальный диск
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string, opts upstream.ListOptions) ([]upstream.Object, error)
	Remove(ctx context.Context, bucket string, keys []string) error
	Upload(ctx context.Context, bucket, key string, r io.Reader, contentType string) error
	PublicURL(bucket, key string) string
}

// UserDirectory: таблица users в Hasura
type UserDirectory interface {
	UpsertUser(ctx context.Context, in upstream.UserInput) (*upstream.UserRecord, error)
}

var (
	_ AuthService   = (*upstream.AuthClient)(nil)
	_ ObjectStore   = (*upstream.StorageClient)(nil)
	_ ObjectStore   = (*blob.LocalStore)(nil)
	_ UserDirectory = (*upstream.GraphQLClient)(nil)
)

// Gateway собирает зависимости обработчиков. Живёт весь процесс,
// изменяемого состояния между запросами нет.
type Gateway struct {
	Cfg   config.Config
	Log   *zap.Logger
	Auth  AuthService
	Store ObjectStore
	Users UserDirectory

	// Files задан только при BLOB_DRIVER=local: роутер раздаёт /files из него
	Files *blob.LocalStore

	newName func() string
}

func NewGateway(cfg config.Config, log *zap.Logger, auth AuthService, store ObjectStore, users UserDirectory) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	gw := &Gateway{
		Cfg:     cfg,
		Log:     log,
		Auth:    auth,
		Store:   store,
		Users:   users,
		newName: func() string { return uuid.NewString() },
	}
	if ls, ok := store.(*blob.LocalStore); ok {
		gw.Files = ls
	}
	return gw
}
