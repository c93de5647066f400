package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actorKey = "actor"
	roleKey  = "role"
)

var ErrAuthNotConfigured = errors.New("jwt secret not configured")

// Principal is the authenticated caller.
type Principal struct {
	Actor string
	Role  string
}

// JwtMiddleware authenticates the bearer token and stores the caller under
// Locals("actor") and Locals("role"). Websocket upgrades may pass the token
// as ?token= since browsers cannot set headers on them.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := bearer(ctx)
		if tokenStr == "" && strings.EqualFold(ctx.Get(fiber.HeaderUpgrade), "websocket") {
			tokenStr = ctx.Query("token")
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token", nil))
		}

		p, err := ParseToken(tokenStr, secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token", nil))
		}

		ctx.Locals(actorKey, p.Actor)
		ctx.Locals(roleKey, p.Role)
		return ctx.Next()
	}
}

// RequireRole lets through callers whose role claim is one of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		role, _ := ctx.Locals(roleKey).(string)
		for _, r := range roles {
			if strings.EqualFold(role, r) {
				return ctx.Next()
			}
		}
		return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Insufficient role", nil))
	}
}

func bearer(ctx *fiber.Ctx) string {
	authHeader := ctx.Get(fiber.HeaderAuthorization)
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}

// ParseToken validates an HMAC-signed token. The actor is the "sub" claim;
// "email" and "user_id" are accepted for older tokens.
func ParseToken(tokenStr, secret string) (*Principal, error) {
	if secret == "" {
		return nil, ErrAuthNotConfigured
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	p := &Principal{}
	for _, key := range []string{"sub", "email", "user_id"} {
		if v, ok := claims[key].(string); ok && v != "" {
			p.Actor = v
			break
		}
	}
	if p.Actor == "" {
		return nil, errors.New("token carries no subject")
	}
	p.Role, _ = claims["role"].(string)
	return p, nil
}

// Actor returns the identity set by JwtMiddleware.
func Actor(ctx *fiber.Ctx) string {
	actor, _ := ctx.Locals(actorKey).(string)
	return actor
}
