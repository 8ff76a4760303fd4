package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/playerledger/wallet-service/internal/repo"
	"github.com/playerledger/wallet-service/internal/service"
)

// RegisterHandlers mounts the four wallet operations under /player.
func RegisterHandlers(r *gin.Engine, svc *service.WalletService) {
	p := r.Group("/player")
	{
		p.PUT("", registerPlayerHandler(svc))
		p.POST("/transaction", postTransactionHandler(svc))
		p.GET("/transaction", getTransactionsHandler(svc))
		p.GET("/wallet", getWalletHandler(svc))
	}
}

// statusFor maps business errors to status codes. Anything unrecognized is
// reported generically as a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repo.ErrUsernameTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repo.ErrPlayerNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTransactionType):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func registerPlayerHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Query("username")
		id, err := svc.RegisterPlayer(c, username)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"idPlayer": id})
	}
}

type transactionReq struct {
	IDPlayer string `json:"idPlayer" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

func postTransactionHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transactionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		if err := svc.PostTransaction(c, req.IDPlayer, req.Type, amt); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func getTransactionsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := svc.GetTransactions(c, c.Query("idPlayer"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func getWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.GetWallet(c, c.Query("idPlayer"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}
