package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"chessbot/internal/config"
	"chessbot/internal/core"
)

const (
	eventHeader     = "X-GitHub-Event"
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

var validate = validator.New()

// IssuesEvent is the subset of the GitHub issues event the bot reads
type IssuesEvent struct {
	Action string `json:"action" validate:"required"`
	Issue  struct {
		Number int    `json:"number" validate:"gt=0"`
		Title  string `json:"title" validate:"max=256"`
		State  string `json:"state"`
		User   struct {
			Login string `json:"login" validate:"required,max=39"`
		} `json:"user"`
	} `json:"issue"`
}

// signatureVerifier rejects deliveries whose HMAC-SHA256 signature does not
// match the shared secret
func signatureVerifier(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		sig := c.Get(signatureHeader)
		if !strings.HasPrefix(sig, signaturePrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "missing signature",
				Code:  core.ErrUnauthorized,
			})
		}
		if !ValidSignature(secret, c.Body(), sig) {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "invalid signature",
				Code:  core.ErrUnauthorized,
			})
		}
		return c.Next()
	}
}

// Sign returns the X-Hub-Signature-256 value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares a signature header against body in constant time
func ValidSignature(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// validationMiddleware parses and validates the delivery payload. Ping
// deliveries carry no issue and skip validation.
func validationMiddleware(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost || c.Get(eventHeader) == "ping" {
		return c.Next()
	}

	payload := &IssuesEvent{}
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid request body",
			Code:    core.ErrInvalidRequest,
			Details: err.Error(),
		})
	}

	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "validation failed",
			Code:    core.ErrInvalidRequest,
			Details: config.ValidationDetails(err),
		})
	}

	c.Locals("validatedBody", payload)
	return c.Next()
}
