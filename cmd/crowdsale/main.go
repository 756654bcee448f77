package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/egaotan/solana-crowdsale/backend"
	"github.com/egaotan/solana-crowdsale/config"
	"github.com/egaotan/solana-crowdsale/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: crowdsale [--config file] <command> [flags]

commands:
  airdrop   request SOL for the wallet (localnet, devnet)
  mint      create a token mint and credit its supply to the wallet
  create    create a sale for a mint
  fund      move tokens from the wallet into a sale escrow
  buy       buy tokens from a sale
  withdraw  move sale proceeds to the creator
  show      print a sale
`

type command struct {
	ctx       context.Context
	cfg       *config.Config
	backend   *backend.Backend
	wallet    solana.PublicKey
	programID solana.PublicKey
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)

	flags := pflag.NewFlagSet("crowdsale", pflag.ExitOnError)
	flags.SetInterspersed(false)
	configFile := flags.StringP("config", "c", "", "config file (json)")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])
	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fail(err)
	}
	programID, err := cfg.Program()
	if err != nil {
		fail(err)
	}
	config.LogPath = cfg.WorkSpace
	logger := utils.NewLog(config.LogPath, config.CliLog, cfg.Debug)
	defer logger.Sync()

	b := backend.NewBackend(ctx, logger, cfg.Rpc)
	b.SetRetry(cfg.Retries, backend.DefaultInterval)
	wallet, err := b.ImportWallet(cfg.Key)
	if err != nil {
		fail(err)
	}
	c := &command{
		ctx:       ctx,
		cfg:       cfg,
		backend:   b,
		wallet:    wallet,
		programID: programID,
	}

	name, args := flags.Arg(0), flags.Args()[1:]
	switch name {
	case "airdrop":
		err = c.airdrop(args)
	case "mint":
		err = c.mint(args)
	case "create":
		err = c.create(args)
	case "fund":
		err = c.fund(args)
	case "buy":
		err = c.buy(args)
	case "withdraw":
		err = c.withdraw(args)
	case "show":
		err = c.show(args)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	var sendErr *backend.SendError
	if errors.As(err, &sendErr) {
		for _, line := range sendErr.Logs {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
	}
	os.Exit(1)
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, crowdsale is shutting down......\n", osCall)
	cancel()
}
