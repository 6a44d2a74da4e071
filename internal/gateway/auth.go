package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 由外部认证服务签发（HS256），sub 为医生用户名
type Claims struct {
	jwt.RegisteredClaims
}

type ctxKey struct{}

// ErrMissingToken 请求未携带令牌
var ErrMissingToken = errors.New("missing bearer token")

// Authenticator 校验 Bearer 令牌；secret 为空时不校验
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled 是否启用校验
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Verify 解析并校验令牌
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// tokenFromRequest Authorization: Bearer xxx，浏览器 WebSocket 无法带头时使用 ?token=xxx
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token := strings.TrimPrefix(h, "Bearer ")
		if token == h || token == "" {
			return "", errors.New("invalid authorization header format")
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// Require 鉴权中间件
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next(w, r)
			return
		}
		tokenString, err := tokenFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Fail(err.Error()))
			return
		}
		claims, err := a.Verify(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeJSON(w, http.StatusUnauthorized, Result[any]{Code: ResultTokenExpired, Type: "error", Message: "token expired"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, Fail("invalid token"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	}
}

// ClaimsFromContext 取出已校验的令牌声明
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok
}
