package main

import (
	"context"
	"fmt"
	"github.com/egaotan/solana-crowdsale/backend"
	"github.com/egaotan/solana-crowdsale/config"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/dingsdk"
	"github.com/egaotan/solana-crowdsale/localnet"
	"github.com/egaotan/solana-crowdsale/store"
	"github.com/egaotan/solana-crowdsale/utils"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)

	configFile := pflag.StringP("config", "c", "", "config file (json)")
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}
	programID, err := cfg.Program()
	if err != nil {
		panic(err)
	}
	config.LogPath = cfg.WorkSpace
	logger := utils.NewLog(config.LogPath, config.LocalnetLog, cfg.Debug)
	defer logger.Sync()

	node := localnet.NewNode(ctx, logger, programID, cfg.Listen)
	node.SetMaxConns(cfg.MaxConns)
	if cfg.DB.Enabled() {
		dao, err := store.NewDao(&cfg.DB)
		if err != nil {
			panic(err)
		}
		s := store.NewStore(ctx, utils.NewLog(config.LogPath, config.StoreLog, cfg.Debug), dao)
		s.Start()
		defer s.Stop()
		node.SetRecorder(s)
	}
	if cfg.Notify != "" {
		node.AddListener(dingsdk.NewDingSdk(ctx, logger, cfg.Notify))
	}
	if cfg.Airdrop > 0 {
		key, err := backend.LoadPrivateKey(cfg.Key)
		if err != nil {
			logger.Warn("no wallet to fund", zap.Error(err))
		} else if _, err := node.Bank().Airdrop(key.PublicKey(), cfg.Airdrop); err != nil {
			panic(err)
		} else {
			fmt.Printf("funded %s with %s SOL\n", key.PublicKey(), crowdsale.FormatLamports(cfg.Airdrop))
		}
	}
	fmt.Printf("program: %s\nrpc: http://%s\n", programID, cfg.Listen)
	if err := node.Service(); err != nil {
		logger.Error("rpc server", zap.Error(err))
		panic(err)
	}
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, localnet is shutting down......\n", osCall)
	cancel()
}
