package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func NewRouter(gw *Gateway) *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		AccessLog(gw.Log),
		Recovery(gw.Log),
		CORS(gw.Cfg.CORSOrigins),
		BodyLimit(gw.Cfg.BodyLimitBytes),
	)

	r.GET("/health", HealthHandler(gw))

	auth := r.Group("/auth")
	{
		auth.POST("/register", RegisterHandler(gw))
		auth.POST("/login", LoginHandler(gw))
		auth.POST("/verify-otp-email", VerifyOTPHandler(gw))
		auth.POST("/resend-otp-email", ResendOTPHandler(gw))
		auth.POST("/refresh-token", RefreshTokenHandler(gw))
		auth.POST("/change-email", ChangeEmailHandler(gw))
		auth.POST("/change-phone", ChangePhoneHandler(gw))
		auth.POST("/change-password", ChangePasswordHandler(gw))
	}

	r.POST("/upload", UploadHandler(gw))

	// локальное хранилище отдаём сами, у storage-api свои публичные URL
	if gw.Files != nil {
		r.GET("/files/:bucket/*key", FileHandler(gw.Files))
		r.HEAD("/files/:bucket/*key", FileHandler(gw.Files))
	}

	r.NoRoute(StaticHandler(gw.Cfg.PublicDir))
	return r
}

// RunServer слушает addr до отмены ctx, затем даёт активным запросам завершиться
func RunServer(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}
