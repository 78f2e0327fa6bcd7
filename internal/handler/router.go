package handler

import (
	"github.com/gin-gonic/gin"

	"hypeledger/internal/ledger"
)

// SetupRouter wires the ledger API. mode is the gin mode; empty means release.
func SetupRouter(engine *ledger.Engine, mode string) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(engine)

	api := r.Group("/api/v1")
	{
		api.GET("/balance", h.GetBalance)
		api.GET("/transactions", h.ListTransactions)
		api.GET("/transactions/:id", h.GetTransaction)
		api.GET("/catalog", h.GetCatalog)
		api.GET("/sustainability", h.GetSustainability)

		earn := api.Group("/earn")
		{
			earn.POST("", h.Earn)
			earn.GET("/opportunities", h.GetEarningOpportunities)
		}

		api.POST("/spend", h.Spend)
		api.POST("/purchase", h.Purchase)
		api.POST("/gift", h.Gift)
		api.GET("/health", health)
	}

	r.GET("/health", health)

	return r
}

func health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
