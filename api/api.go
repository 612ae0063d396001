package api

import (
	"github.com/gin-gonic/gin"

	"github.com/propadhq/vault"
	"github.com/propadhq/vault/api/middleware"
	"github.com/propadhq/vault/config"
)

type Api struct {
	vault  *vault.Vault
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/entries", a.RecordEntry)
	router.GET("/entries/:id", a.GetLedgerEntry)

	router.GET("/balances/:owner_type/:owner_id/:currency", a.GetBalance)
	router.GET("/statements/:owner_id/:currency", a.GetStatement)

	router.POST("/payout-accounts", a.CreatePayoutAccount)
	router.GET("/payout-accounts/:owner_id", a.GetPayoutAccounts)
	router.POST("/payout-accounts/:id/verify", a.VerifyPayoutAccount)

	router.POST("/payouts", a.CreatePayoutRequest)
	router.GET("/payouts", a.GetPayoutRequests)
	router.GET("/payouts/:id", a.GetPayoutRequest)
	router.POST("/payouts/:id/review", a.MovePayoutToReview)
	router.POST("/payouts/:id/approve", a.ApprovePayout)
	router.POST("/payouts/:id/reject", a.RejectPayout)
	router.POST("/payouts/:id/cancel", a.CancelPayout)
	router.POST("/payouts/:id/process", a.ProcessPayout)
	router.GET("/payouts/:id/transactions", a.GetPayoutTransactions)
	router.GET("/payouts/:id/audit-trail", a.GetAuditTrail)

	router.POST("/source-records", a.RegisterSourceRecord)
	router.POST("/integrity/run", a.RunIntegrityChecks)
	router.POST("/reconciliation/recover-stuck", a.RecoverStuckPayouts)

	return a.router
}

func NewAPI(v *vault.Vault) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{vault: v, router: r}
}
