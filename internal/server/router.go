// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"hisaab/internal/config"
	"hisaab/internal/docs"
	"hisaab/internal/handlers"
	"hisaab/internal/identity"
	"hisaab/internal/middleware"
	"hisaab/internal/services"
)

// Dependencies are the collaborators the router dispatches to.
type Dependencies struct {
	Config       *config.Config
	Verifier     identity.Verifier
	Accounts     services.AccountServicer
	Payees       services.PayeeServicer
	Transactions services.TransactionServicer
	Audit        services.AuditServicer
	Forms        handlers.FormRegistry
}

// NewRouter builds the gin engine with every API route attached.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	if len(cfg.CORSAllowOrigins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders: []string{"X-Request-ID"},
		}
		if len(cfg.CORSAllowOrigins) == 1 && cfg.CORSAllowOrigins[0] == "*" {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = cfg.CORSAllowOrigins
			corsConfig.AllowCredentials = true
		}
		router.Use(cors.New(corsConfig))
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.APIKey(cfg.MetricsAPIKey), gin.WrapH(promhttp.Handler()))

	accountHandler := handlers.NewAccountHandler(deps.Accounts, deps.Audit)
	payeeHandler := handlers.NewPayeeHandler(deps.Payees, deps.Audit)
	transactionHandler := handlers.NewTransactionHandler(deps.Transactions, deps.Audit)
	formHandler := handlers.NewFormHandler(deps.Forms, deps.Audit)

	v1 := router.Group("/api/v1")

	// Public routes
	v1.GET("/page", middleware.OptionalSession(deps.Verifier), handlers.GetPage)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.RequireSession(deps.Verifier))

	forms := protected.Group("/forms")
	forms.POST("", formHandler.OpenForm)
	forms.GET("/:id", formHandler.GetForm)
	forms.PATCH("/:id/draft", formHandler.UpdateDraft)
	forms.PUT("/:id/fields/:field", formHandler.SetField)
	forms.PUT("/:id/account", formHandler.SelectAccount)
	forms.POST("/:id/submit", formHandler.Submit)
	forms.GET("/:id/events", formHandler.Events)
	forms.DELETE("/:id", formHandler.CloseForm)

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetUserAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id", accountHandler.RenameAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)

	payees := protected.Group("/payees")
	payees.POST("", payeeHandler.CreatePayee)
	payees.GET("", payeeHandler.GetUserPayees)
	payees.DELETE("/:id", payeeHandler.DeletePayee)

	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/summary", transactionHandler.GetSummary)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.POST("/:id/loan/paid", transactionHandler.MarkLoanPaid)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	return router
}
