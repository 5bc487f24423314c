package handlers

import (
	"log/slog"
	"strconv"

	config "github.com/adnaan-2/contentflow/configs"
	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/service"
	"github.com/adnaan-2/contentflow/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type PlatformHandler struct {
	accounts service.AccountService
	cfg      config.Config
}

func NewPlatformHandler(accounts service.AccountService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		accounts: accounts,
		cfg:      cfg,
	}
}

// AddSocialAccount redirects the browser to the platform's consent screen.
// The state query parameter is the caller's session token; it comes back on
// the OAuth 2.0 callback.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	state := c.Query("state")

	userID, err := h.userIDFromState(state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	authURL, err := h.accounts.GetAuthURL(c.Context(), userID, c.Params("platform"), state)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to start platform connection",
		})
	}
	return c.Redirect(authURL)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	platform := c.Params("platform")

	// X comes back with OAuth 1.0a parameters; the handshake state in
	// Redis already knows which user started it.
	if platform == models.PlatformX {
		err := h.accounts.HandleOAuth1Callback(c.Context(), c.Query("oauth_token"), c.Query("oauth_verifier"))
		if err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Something went wrong",
			})
		}
		return c.Redirect(h.cfg.FrontendURL + "/accounts")
	}

	userID, err := h.userIDFromState(c.Query("state"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	err = h.accounts.HandleOAuth2Callback(c.Context(), userID, platform, c.Query("code"))
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Something went wrong",
		})
	}

	return c.Redirect(h.cfg.FrontendURL + "/accounts")
}

func (h *PlatformHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.accounts.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list connected accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *PlatformHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := c.QueryInt("id", 0)

	err := h.accounts.Disconnect(c.Context(), userID, int64(accountID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to disconnect account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) userIDFromState(state string) (int64, error) {
	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(claims.UserID, 10, 64)
}
