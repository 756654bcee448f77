package localnet

import (
	"context"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"net"
	"net/http"
	"time"
)

const DefaultMaxConns = 256

func (node *Node) Service() error {
	if err := node.StartRPC(); err != nil {
		return err
	}
	<-node.ctx.Done()
	node.StopRPC()
	return nil
}

// Handler serves JSON-RPC on POST / and the REST views under /api.
func (node *Node) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/", node.handleRPC)
	g := router.Group("/api")
	g.GET("/sale/:id", node.getSale)
	g.GET("/executions/:id", node.getExecutions)
	return router
}

// SetMaxConns caps the connections served at once. Zero or less keeps
// DefaultMaxConns.
func (node *Node) SetMaxConns(n int) {
	if n > 0 {
		node.maxConns = n
	}
}

func (node *Node) StartRPC() error {
	listener, err := net.Listen("tcp", node.listen)
	if err != nil {
		return err
	}
	node.addr = listener.Addr().String()
	node.httpServer = &http.Server{
		Handler: node.Handler(),
	}
	node.logger.Info("start rpc server",
		zap.String("listen", listener.Addr().String()), zap.String("program", node.programID.String()), zap.Int("max_conns", node.maxConns))
	go func() {
		if err := node.httpServer.Serve(netutil.LimitListener(listener, node.maxConns)); err != nil && err != http.ErrServerClosed {
			node.logger.Error("Serve", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the address the rpc server listens on once started.
func (node *Node) Addr() string {
	return node.addr
}

func (node *Node) StopRPC() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := node.httpServer.Shutdown(ctx); err != nil {
		node.logger.Error("shutdown rpc server", zap.Error(err))
		return
	}
	node.logger.Info("rpc server has stopped")
}
