package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer    = "snapshare-api"
	tokenAudience  = "snapshare-client"
	tokenTTL       = 24 * time.Hour
	tokenCookie    = "token"
	blacklistKey   = "blacklist:"
	revocationWait = 2 * time.Second
)

// authClaims are the claims carried by session tokens.
type authClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// generateToken creates a signed session token for the user.
func (s *Server) generateToken(userID uint, username string) (string, *authClaims, error) {
	if s.config.JWTSecret == "" {
		return "", nil, errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := &authClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// parseToken validates signature, issuer, audience and expiry.
func (s *Server) parseToken(tokenString string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// tokenFromRequest reads the session cookie, falling back to a Bearer header.
func tokenFromRequest(c *fiber.Ctx) string {
	if cookie := c.Cookies(tokenCookie); cookie != "" {
		return cookie
	}
	authHeader := c.Get(fiber.HeaderAuthorization)
	if scheme, token, ok := strings.Cut(authHeader, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, blacklistKey+jti).Result()
	return err == nil && n > 0
}

// revoke blacklists the token's jti until it would have expired anyway.
func (s *Server) revoke(ctx context.Context, claims *authClaims) error {
	if s.redis == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, revocationWait)
	defer cancel()
	return s.redis.Set(ctx, blacklistKey+claims.ID, 1, ttl).Err()
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return models.NewUnauthorizedError("User not authenticated")
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return models.NewUnauthorizedError("Invalid or expired token")
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil || userID == 0 {
			return models.NewUnauthorizedError("Invalid user ID in token")
		}

		if s.isRevoked(c.UserContext(), claims.ID) {
			return models.NewUnauthorizedError("Token has been revoked")
		}

		c.Locals("userID", uint(userID))
		c.SetUserContext(middleware.WithUserID(c.UserContext(), uint(userID)))
		return c.Next()
	}
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(tokenTTL),
		MaxAge:   int(tokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
