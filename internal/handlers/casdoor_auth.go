package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/nexus-academy/catalog-service/internal/models"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

var (
	errUnknownUser         = errors.New("token user does not exist")
	errIdentityUnavailable = errors.New("identity provider unavailable")
)

// TokenParser verifies a Casdoor access token. *casdoorsdk.Client implements it.
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware resolves the viewer from a Casdoor bearer token
type CasdoorAuthMiddleware struct {
	parser   TokenParser
	userRepo repositories.UserRepository
	logger   utils.Logger
}

func NewCasdoorAuthMiddleware(parser TokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		parser:   parser,
		userRepo: userRepo,
		logger:   logger,
	}
}

// AuthMiddleware rejects requests without a valid token
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "authorization header missing or malformed",
			})
			return
		}

		user, err := cam.authenticate(c, token)
		if errors.Is(err, errIdentityUnavailable) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
				Message:   "Service temporarily unavailable, please retry",
				Retryable: true,
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid token",
			})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the viewer when a valid token is present and
// treats the request as anonymous otherwise.
func (cam *CasdoorAuthMiddleware) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		if user, err := cam.authenticate(c, token); err == nil {
			setUser(c, user)
		}

		c.Next()
	}
}

// RequireAdminMiddleware must run after AuthMiddleware.
func (cam *CasdoorAuthMiddleware) RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUserFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Access denied",
				Details: map[string]interface{}{
					"resource": "admin",
					"action":   c.Request.Method,
					"reason":   "admin role required",
				},
			})
			return
		}
		c.Next()
	}
}

func (cam *CasdoorAuthMiddleware) authenticate(c *gin.Context, token string) (*models.User, error) {
	claims, err := cam.parser.ParseJwtToken(token)
	if err != nil {
		utils.FromContext(c, cam.logger).Debug("Rejected token", "error", err)
		return nil, err
	}
	return cam.resolveUser(c, claims)
}

// resolveUser loads the stored user. Roles in the token claims are never
// trusted: a deleted user is rejected and a failed lookup grants nothing.
func (cam *CasdoorAuthMiddleware) resolveUser(c *gin.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id == "" {
		return nil, errors.New("token has no user id")
	}

	user, err := cam.userRepo.GetByID(c.Request.Context(), claims.Id)
	switch {
	case err == nil && user != nil:
		return user, nil
	case err == nil, repositories.IsNotFoundError(err):
		return nil, errUnknownUser
	default:
		utils.FromContext(c, cam.logger).Warn("User lookup failed", "user_id", claims.Id, "error", err)
		return nil, fmt.Errorf("%w: %v", errIdentityUnavailable, err)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func setUser(c *gin.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("user", user)
}

// GetUserFromContext returns the authenticated viewer
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, errors.New("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, errors.New("invalid user type in context")
	}

	return userModel, nil
}

// viewerFromContext returns the viewer or nil for anonymous requests.
func viewerFromContext(c *gin.Context) *models.User {
	user, err := GetUserFromContext(c)
	if err != nil {
		return nil
	}
	return user
}

func viewerID(c *gin.Context) string {
	return c.GetString("user_id")
}
