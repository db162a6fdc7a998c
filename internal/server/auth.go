package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/models"
	"gorm.io/gorm"
)

const userKey = "beartank.user"

// identityClaims are the claims the identity provider signs.
type identityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

func authenticateJWT(token, secret string) (curriculum.Identity, error) {
	if strings.TrimSpace(secret) == "" {
		return curriculum.Identity{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &identityClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return curriculum.Identity{}, err
	}
	if !parsed.Valid {
		return curriculum.Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return curriculum.Identity{}, errors.New("subject claim required")
	}
	return curriculum.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        claims.Role,
	}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// requireIdentity resolves the bearer token to a local user. The token's
// role only seeds a new profile; the stored role is authoritative after.
func requireIdentity(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		id, err := authenticateJWT(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		user, err := curriculum.EnsureUser(db, id)
		if errors.Is(err, curriculum.ErrInvalid) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			writeServerError(c, err)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// requireRole admits active users holding one of roles. Admins pass every
// check.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user.Status != models.UserActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is awaiting approval"})
			return
		}
		if user.Role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

func isStaff(u *models.User) bool {
	return u.Role == models.RoleTeacher || u.Role == models.RoleAdmin
}
