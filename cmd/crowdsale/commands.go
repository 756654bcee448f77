package main

import (
	"errors"
	"fmt"
	"github.com/egaotan/solana-crowdsale/backend"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
)

var errMissingFlag = errors.New("missing required flag")

func newFlags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ExitOnError)
}

func parseKey(name string, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: --%s", errMissingFlag, name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s %q: %w", name, value, err)
	}
	return key, nil
}

func (c *command) confirm(signature solana.Signature, err error) error {
	if err != nil {
		return err
	}
	slot, err := c.backend.Confirm(c.ctx, signature)
	if err != nil {
		return err
	}
	fmt.Printf("transaction %s confirmed in slot %d\n", signature, slot)
	return nil
}

func (c *command) airdrop(args []string) error {
	flags := newFlags("airdrop")
	amount := flags.String("amount", "1", "SOL to request")
	flags.Parse(args)
	lamports, err := crowdsale.ParseTokens(*amount, program.DefaultDecimals)
	if err != nil {
		return err
	}
	if _, err := c.backend.Airdrop(c.ctx, c.wallet, lamports); err != nil {
		return err
	}
	balance, err := c.backend.Balance(c.wallet)
	if err != nil {
		return err
	}
	fmt.Printf("%s balance: %s SOL\n", c.wallet, crowdsale.FormatLamports(balance))
	return nil
}

func (c *command) mint(args []string) error {
	flags := newFlags("mint")
	decimals := flags.Uint8("decimals", program.DefaultDecimals, "mint decimals")
	supply := flags.String("supply", "1000000", "tokens credited to the wallet")
	flags.Parse(args)
	amount, err := crowdsale.ParseTokens(*supply, *decimals)
	if err != nil {
		return err
	}
	mint, err := c.backend.CreateMint(c.ctx, c.wallet, *decimals, amount)
	if err != nil {
		return err
	}
	fmt.Printf("TOKEN MINT: %s\n", mint)
	return nil
}

func (c *command) create(args []string) error {
	flags := newFlags("create")
	mintFlag := flags.String("mint", "", "token mint sold by the sale")
	idFlag := flags.String("id", "", "sale identifier, generated when empty")
	price := flags.String("price", "1", "SOL per whole token")
	flags.Parse(args)
	mint, err := parseKey("mint", *mintFlag)
	if err != nil {
		return err
	}
	id := solana.NewWallet().PublicKey()
	if *idFlag != "" {
		if id, err = parseKey("id", *idFlag); err != nil {
			return err
		}
	}
	lamports, err := crowdsale.ParseTokens(*price, program.DefaultDecimals)
	if err != nil {
		return err
	}
	if err := c.confirm(c.backend.CreateSale(c.ctx, c.programID, c.wallet, id, mint, lamports)); err != nil {
		return err
	}
	sale, err := c.backend.Sale(c.programID, id)
	if err != nil {
		return err
	}
	fmt.Printf("Successfully Initialized Crowdsale at %s\n\n", sale.Address)
	fmt.Printf("Crowdsale Authority: %s\n\n", sale.Authority)
	printSale(sale)
	return nil
}

func (c *command) fund(args []string) error {
	flags := newFlags("fund")
	idFlag := flags.String("id", "", "sale identifier")
	amount := flags.String("amount", "", "tokens to move into the escrow")
	flags.Parse(args)
	id, err := parseKey("id", *idFlag)
	if err != nil {
		return err
	}
	sale, err := c.backend.Sale(c.programID, id)
	if err != nil {
		return err
	}
	tokens, err := crowdsale.ParseTokens(*amount, sale.Decimals)
	if err != nil {
		return err
	}
	return c.confirm(c.backend.FundSale(c.ctx, c.programID, c.wallet, id, tokens))
}

func (c *command) buy(args []string) error {
	flags := newFlags("buy")
	idFlag := flags.String("id", "", "sale identifier")
	amount := flags.String("amount", "", "tokens to buy")
	flags.Parse(args)
	id, err := parseKey("id", *idFlag)
	if err != nil {
		return err
	}
	sale, err := c.backend.Sale(c.programID, id)
	if err != nil {
		return err
	}
	tokens, err := crowdsale.ParseTokens(*amount, sale.Decimals)
	if err != nil {
		return err
	}
	cost, err := crowdsale.Cost(tokens, sale.Record.Price, sale.Decimals)
	if err != nil {
		return err
	}
	fmt.Printf("buying %s tokens for %s SOL\n", crowdsale.FormatTokens(tokens, sale.Decimals), crowdsale.FormatLamports(cost))
	return c.confirm(c.backend.BuyTokens(c.ctx, c.programID, c.wallet, id, tokens))
}

func (c *command) withdraw(args []string) error {
	flags := newFlags("withdraw")
	idFlag := flags.String("id", "", "sale identifier")
	flags.Parse(args)
	id, err := parseKey("id", *idFlag)
	if err != nil {
		return err
	}
	sale, err := c.backend.Sale(c.programID, id)
	if err != nil {
		return err
	}
	fmt.Printf("Withdraw: Program ID = %s\n", c.programID)
	fmt.Printf("Withdraw: Crowdsale PDA = %s\n\n", sale.Address)
	if err := c.confirm(c.backend.Withdraw(c.ctx, c.programID, c.wallet, id)); err != nil {
		return err
	}
	fmt.Printf("Withdrew %s SOL\n", crowdsale.FormatLamports(sale.Withdrawable))
	return nil
}

func (c *command) show(args []string) error {
	flags := newFlags("show")
	idFlag := flags.String("id", "", "sale identifier")
	flags.Parse(args)
	id, err := parseKey("id", *idFlag)
	if err != nil {
		return err
	}
	sale, err := c.backend.Sale(c.programID, id)
	if err != nil {
		return err
	}
	fmt.Printf("Crowdsale: %s\n", sale.Address)
	fmt.Printf("Crowdsale Authority: %s\n", sale.Authority)
	printSale(sale)
	return nil
}

func printSale(sale *backend.Sale) {
	fmt.Printf("ID: %s\n", sale.Record.Id)
	fmt.Printf("COST: %s SOL\n", crowdsale.FormatLamports(sale.Record.Price))
	fmt.Printf("STATUS: %s\n", sale.Record.Status)
	fmt.Printf("CREATOR: %s\n", sale.Record.Creator)
	fmt.Printf("TOKEN MINT: %s\n", sale.Record.TokenMint)
	fmt.Printf("TOKEN ACCOUNT: %s\n", sale.Record.TokenAccount)
	fmt.Printf("ESCROW: %s tokens\n", crowdsale.FormatTokens(sale.EscrowTokens, sale.Decimals))
	fmt.Printf("PROCEEDS: %s SOL\n", crowdsale.FormatLamports(sale.Withdrawable))
}
