package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gatekeeper/internal/upstream"
)

const (
	msgCheckEmail   = "Please check your email for the verification code"
	msgPhoneUpdated = "Phone number updated successfully"

	// формулировка старых версий GoTrue, у которых ещё нет error_code
	msgAlreadyRegistered = "User already registered"
)

type registerReq struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"  binding:"required"`
	Email     string `json:"email"     binding:"required"`
	Phone     string `json:"phone"     binding:"required"`
	Password  string `json:"password"  binding:"required"`
	Role      string `json:"role"      binding:"required"`
}

type loginReq struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyReq struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code"  binding:"required"`
	Type  string `json:"type"`
}

type resendReq struct {
	Email string `json:"email" binding:"required"`
	Type  string `json:"type"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changeEmailReq struct {
	AccessToken  string `json:"accessToken"  binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
	NewEmail     string `json:"newEmail"     binding:"required"`
}

type changePhoneReq struct {
	AccessToken  string `json:"accessToken"  binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
	Phone        string `json:"phone"        binding:"required"`
}

type changePasswordReq struct {
	Email       string `json:"email"       binding:"required"`
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func alreadyRegistered(err error) bool {
	if upstream.HasCode(err, upstream.CodeUserAlreadyExists) {
		return true
	}
	var ue *upstream.Error
	return errors.As(err, &ue) && !ue.Transport && strings.EqualFold(ue.Message, msgAlreadyRegistered)
}

// POST /auth/register
// Повторная регистрация не считается ошибкой: ответ тот же, что и для новой,
// чтобы по нему нельзя было проверить, занят ли email.
func RegisterHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerReq
		if err := bindBody(c, &req, fieldRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		phone, err := normalizePhone(req.Phone, gw.Cfg.PhoneRegion)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}

		_, err = gw.Auth.SignUp(c.Request.Context(), upstream.SignUpParams{
			Email:    req.Email,
			Password: req.Password,
			Data: map[string]any{
				"firstName": req.FirstName,
				"lastName":  req.LastName,
				"email":     req.Email,
				"phone":     phone,
				"role":      req.Role,
			},
		})
		if err != nil && !alreadyRegistered(err) {
			respondError(c, gw.Log, err)
			return
		}
		if err != nil {
			gw.Log.Info("register: email already taken", zap.String("email", req.Email))
		}
		respond(c, http.StatusOK, gin.H{"message": msgCheckEmail})
	}
}

// POST /auth/login
func LoginHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := bindBody(c, &req, titleRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		s, err := gw.Auth.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, s)
	}
}

// POST /auth/verify-otp-email
// После подтверждения заводим (или обновляем) строку users из метаданных регистрации.
func VerifyOTPHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyReq
		if err := bindBody(c, &req, titleRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if req.Type == "" {
			req.Type = "email"
		}

		ctx := c.Request.Context()
		s, err := gw.Auth.VerifyOTP(ctx, upstream.VerifyParams{Type: req.Type, Email: req.Email, Token: req.Code})
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if s == nil || s.User == nil {
			respondError(c, gw.Log, errors.New("verification returned no user"))
			return
		}
		if err := upsertProfile(c, gw, s.User, ""); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, s)
	}
}

// POST /auth/resend-otp-email
func ResendOTPHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resendReq
		if err := bindBody(c, &req, titleRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if req.Type == "" {
			req.Type = "signup"
		}
		if err := gw.Auth.Resend(c.Request.Context(), req.Type, req.Email); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"message": msgCheckEmail})
	}
}

// POST /auth/refresh-token
func RefreshTokenHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshReq
		if err := bindBody(c, &req, plainRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		s, err := gw.Auth.RefreshSession(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, s)
	}
}

// POST /auth/change-email
func ChangeEmailHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeEmailReq
		if err := bindBody(c, &req, plainRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		ctx := c.Request.Context()
		s, err := gw.Auth.SetSession(ctx, req.AccessToken, req.RefreshToken)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if _, err := gw.Auth.UpdateUser(ctx, s.AccessToken, upstream.UserAttributes{Email: req.NewEmail}); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"message": msgCheckEmail})
	}
}

// POST /auth/change-phone
// Телефон живёт в user_metadata и в строке users, обновляем оба.
func ChangePhoneHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePhoneReq
		if err := bindBody(c, &req, plainRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		phone, err := normalizePhone(req.Phone, gw.Cfg.PhoneRegion)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}

		ctx := c.Request.Context()
		s, err := gw.Auth.SetSession(ctx, req.AccessToken, req.RefreshToken)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		user, err := gw.Auth.GetUser(ctx, s.AccessToken)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}

		meta := make(map[string]any, len(user.UserMetadata)+1)
		for k, v := range user.UserMetadata {
			meta[k] = v
		}
		meta["phone"] = phone

		updated, err := gw.Auth.UpdateUser(ctx, s.AccessToken, upstream.UserAttributes{Data: meta})
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if updated == nil {
			updated = user
		}
		if err := upsertProfile(c, gw, updated, phone); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"message": msgPhoneUpdated})
	}
}

// POST /auth/change-password
// Старый пароль проверяется входом; новая сессия выдаётся входом с новым паролем.
func ChangePasswordHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordReq
		if err := bindBody(c, &req, plainRequired); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		ctx := c.Request.Context()
		old, err := gw.Auth.SignInWithPassword(ctx, req.Email, req.OldPassword)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		if _, err := gw.Auth.UpdateUser(ctx, old.AccessToken, upstream.UserAttributes{Password: req.NewPassword}); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		s, err := gw.Auth.SignInWithPassword(ctx, req.Email, req.NewPassword)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		respond(c, http.StatusOK, s)
	}
}

// upsertProfile переносит профиль из user_metadata в таблицу users.
// phone, если задан, перекрывает значение из метаданных.
func upsertProfile(c *gin.Context, gw *Gateway, u *upstream.User, phone string) error {
	if phone == "" {
		phone = u.MetaString("phone")
	}
	email := u.Email
	if email == "" {
		email = u.MetaString("email")
	}
	_, err := gw.Users.UpsertUser(c.Request.Context(), upstream.UserInput{
		ID:        u.ID,
		FirstName: u.MetaString("firstName"),
		LastName:  u.MetaString("lastName"),
		Email:     email,
		Phone:     phone,
		Role:      u.MetaString("role"),
	})
	return err
}
