// Package auth はトークン検証とユーザー解決を提供する。
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity は検証済みトークンから取り出したユーザー情報を表す。
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// TokenVerifier はbearerトークンの検証を抽象化する。
// 将来的に外部IdP（Firebase等）の公開鍵検証に差し替えるための抽象化。
type TokenVerifier interface {
	// Verify はトークンを検証し、クレームからIdentityを取り出す。
	Verify(tokenString string) (*Identity, error)
}

// JWTVerifier はHS256署名のJWTを検証するTokenVerifier実装。
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier はJWTVerifierを生成する。
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// tokenClaims は受け入れるJWTクレーム。subは必須、email/nameは任意。
type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verify はHS256署名と有効期限を検証し、Identityを返す。
// 署名アルゴリズムの取り違え（alg=none等）はWithValidMethodsで拒否する。
func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// compile-time interface check
var _ TokenVerifier = (*JWTVerifier)(nil)
