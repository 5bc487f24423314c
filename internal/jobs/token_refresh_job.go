package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/adnaan-2/contentflow/internal/service"
)

type TokenRefreshJob struct {
	sr       repository.SocialAccountRepository
	accounts service.AccountService
	notifier service.Notifier
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	accounts service.AccountService,
	notifier service.Notifier) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:       sr,
		accounts: accounts,
		notifier: notifier,
	}
}

// RefreshTokens renews every token expiring within the next half hour.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	deadline := time.Now().Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiringBefore(ctx, deadline)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.accounts.RefreshToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh token", "platform", acc.Platform, "account_id", acc.ID)
				c.notifier.Notify(ctx, acc.UserID, models.NotificationAccountExpiring,
					"Your "+acc.Platform+" connection is expiring and could not be renewed. Please reconnect.")
			}
		}(acc)
	}

	wg.Wait()
}
