package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	contextUserID = "auth_user_id"
	contextRole   = "auth_role"
)

var ErrInvalidToken = errors.New("invalid token")

type Identity struct {
	UserID string
	Role   string
}

type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Parse validates an HS256 token and extracts the subject and role claims.
func (a *JWTAuthenticator) Parse(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID := claimString(claims["sub"])
	if userID == "" {
		return nil, ErrInvalidToken
	}
	role := claimString(claims["role"])
	if role == "" {
		role = RoleUser
	}

	return &Identity{UserID: userID, Role: role}, nil
}

// Issue signs a token for the given identity.
func (a *JWTAuthenticator) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity.UserID,
		"role": identity.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token.
func (a *JWTAuthenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if header == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing auth"})
			}
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			identity, err := a.Parse(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(contextUserID, identity.UserID)
			c.Set(contextRole, identity.Role)
			return next(c)
		}
	}
}

func RoleRequired(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			if role == "" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "no role"})
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}

func UserID(c echo.Context) string {
	v, _ := c.Get(contextUserID).(string)
	return v
}

func Role(c echo.Context) string {
	v, _ := c.Get(contextRole).(string)
	return v
}

func claimString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}
