package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/security"
	"github.com/fleetward/fleetward/internal/pkg/usercontext"
)

var errUnauthenticated = errors.New("unauthenticated")

// Identity authenticates API requests by API key or bearer access token and
// stores the caller in the request's user context.
type Identity struct {
	users     repository.UserRepository
	settings  repository.UserSettingsRepository
	jwtSecret string
	now       func() time.Time
}

func NewIdentity(users repository.UserRepository, settings repository.UserSettingsRepository, jwtSecret string) *Identity {
	return &Identity{users: users, settings: settings, jwtSecret: jwtSecret, now: time.Now}
}

// Handler returns the fiber middleware. A malformed standAloneId is rejected
// here so downstream code only ever sees a valid target or none.
func (m *Identity) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method, credential := extractCredential(c)
		if credential == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing credentials"})
		}

		var (
			user *models.User
			err  error
		)
		if method == usercontext.AuthMethodAPIKey {
			user, err = m.userForAPIKey(c, credential)
		} else {
			user, err = m.userForToken(c, credential)
		}
		if err != nil {
			if errors.Is(err, errUnauthenticated) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid credentials"})
			}
			log.Errorf("[Identity] Credential lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Credential verification failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		target, err := parseTarget(c.Query(usercontext.TargetParam))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "standAloneId must be a positive integer"})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:             user.ID,
			Username:           user.Name,
			Role:               user.Role,
			IsLoggedIn:         true,
			IsAdmin:            user.IsPlatformAdmin(),
			AuthMethod:         method,
			TargetStandAloneID: target,
		})
		return c.Next()
	}
}

func (m *Identity) userForAPIKey(c *fiber.Ctx, raw string) (*models.User, error) {
	ctx := c.UserContext()
	user, settings, err := m.users.GetByAPIKeyHash(ctx, models.HashAPIKey(raw))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	// Refresh last-used timestamp best-effort.
	if err := m.settings.TouchAPIKey(ctx, settings.ID, m.now()); err != nil {
		log.Warnf("[Identity] Failed to update api key usage timestamp for user %d: %v", user.ID, err)
	}
	return user, nil
}

func (m *Identity) userForToken(c *fiber.Ctx, raw string) (*models.User, error) {
	id, err := security.ParseAccessToken(m.jwtSecret, raw)
	if err != nil {
		return nil, errUnauthenticated
	}
	user, err := m.users.GetByID(c.UserContext(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUnauthenticated
	}
	return user, err
}

// extractCredential prefers X-API-Key. A bearer value with the API key
// prefix is treated as an API key, anything else as an access token.
func extractCredential(c *fiber.Ctx) (string, string) {
	if apiKey := strings.TrimSpace(c.Get("X-API-Key")); apiKey != "" {
		return usercontext.AuthMethodAPIKey, apiKey
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", ""
	}
	token := strings.TrimSpace(auth[7:])
	if models.LooksLikeAPIKey(token) {
		return usercontext.AuthMethodAPIKey, token
	}
	return usercontext.AuthMethodBearer, token
}

func parseTarget(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	if v == 0 {
		return nil, strconv.ErrRange
	}
	id := uint(v)
	return &id, nil
}
