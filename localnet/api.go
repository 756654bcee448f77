package localnet

import (
	"errors"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"net/http"
)

func (node *Node) getSale(c *gin.Context) {
	id, err := solana.PublicKeyFromBase58(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}
	view, err := node.Sale(id)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		node.logger.Warn("read sale", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (node *Node) getExecutions(c *gin.Context) {
	if node.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution journal is not configured"})
		return
	}
	id, err := solana.PublicKeyFromBase58(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}
	address, _, err := crowdsale.DeriveSaleAddress(node.programID, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	executions, err := node.recorder.GetExecutions(address.String())
	if err != nil {
		node.logger.Error("read executions", zap.String("sale", address.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read executions"})
		return
	}
	c.JSON(http.StatusOK, executions)
}
