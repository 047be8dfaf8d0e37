// Command starknuts-wallet is a CLI holder for the wad rail, grounded
// on the teacher's cmd/nutw/nutw.go: one urfave/cli command per wallet
// operation, a shared setupWallet Before hook, and .env-driven config.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	"github.com/starknuts/starknuts/wad"
	"github.com/starknuts/starknuts/wallet"
	"github.com/starknuts/starknuts/wallet/storage"
)

var nutw *wallet.Wallet

const defaultNodeURL = "http://127.0.0.1:3338"

func walletPath() string {
	if p := os.Getenv("WALLET_PATH"); p != "" {
		return p
	}
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}
	path := filepath.Join(homedir, ".starknuts", "wallet")
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}

func nodeURL() string {
	if u := os.Getenv("NODE_URL"); u != "" {
		return u
	}
	return defaultNodeURL
}

// setupWallet loads the persisted wallet, creating a fresh one (new
// mnemonic and seed) when none exists, and introduces the configured
// node, populating the wallet's keyset cache before every command runs.
func setupWallet(ctx *cli.Context) error {
	envPath := filepath.Join(walletPath(), ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}

	db, err := storage.InitBolt(walletPath())
	if err != nil {
		printErr(err)
	}

	nutw, err = wallet.LoadWallet(db)
	if err != nil {
		nutw, err = wallet.NewWallet(db)
		if err != nil {
			printErr(err)
		}
	}

	c := client.NewHTTPClient(nodeURL())
	if err := nutw.AddNode(nodeURL(), c); err != nil {
		printErr(fmt.Errorf("error introducing node %s: %v", nodeURL(), err))
	}
	return nil
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(1)
}

func main() {
	app := &cli.App{
		Name:  "starknuts-wallet",
		Usage: "wallet for the starknuts e-cash rail",
		Commands: []*cli.Command{
			balanceCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
			mnemonicCmd,
			restoreCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Usage:  "wallet balance at the configured node",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	balance, err := nutw.Balance(nodeURL(), cashu.MilliStrk)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%s: %d %s\n", nodeURL(), balance, cashu.MilliStrk)
	return nil
}

var mintCmd = &cli.Command{
	Name:      "mint",
	Usage:     "request and redeem a mint quote",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Action:    mint,
}

func mint(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		printErr(fmt.Errorf("specify an amount to mint"))
	}
	amount, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		printErr(err)
	}

	quote, err := nutw.CreateMintQuote(nodeURL(), cashu.MilliStrk, cashu.Amount(amount))
	if err != nil {
		printErr(err)
	}
	fmt.Printf("mint quote %s opened; pay request:\n%s\n", quote.Id, quote.Request)
	fmt.Println("waiting for payment...")

	bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	state, err := nutw.WaitForQuotePayment(bgCtx, nodeURL(), quote.Id, 2*time.Second)
	if err != nil {
		printErr(err)
	}
	if state != cashu.Paid {
		printErr(fmt.Errorf("quote %s expired unpaid", quote.Id))
	}

	proofs, err := nutw.RedeemQuote(nodeURL(), quote.Id, cashu.Amount(amount))
	if err != nil {
		printErr(err)
	}
	var minted cashu.Amount
	for _, p := range proofs {
		minted += p.Amount
	}
	fmt.Printf("minted %d %s\n", minted, cashu.MilliStrk)
	return nil
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "produce a compact wad for the specified amount",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "memo", Usage: "optional memo to embed in the wad"},
	},
	Action: send,
}

func send(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		printErr(fmt.Errorf("specify an amount to send"))
	}
	amount, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		printErr(err)
	}

	cw, err := nutw.Send(nodeURL(), cashu.MilliStrk, cashu.Amount(amount), ctx.String("memo"))
	if err != nil {
		printErr(err)
	}
	token, err := wad.Encode(cw)
	if err != nil {
		printErr(err)
	}
	fmt.Println(token)
	return nil
}

var receiveCmd = &cli.Command{
	Name:      "receive",
	Usage:     "redeem a compact wad",
	ArgsUsage: "[WAD]",
	Before:    setupWallet,
	Action:    receive,
}

func receive(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		printErr(fmt.Errorf("wad not provided"))
	}
	wads, err := wad.Decode(ctx.Args().First())
	if err != nil {
		printErr(err)
	}

	var total cashu.Amount
	for _, cw := range wads {
		if cw.NodeURL != nodeURL() {
			c := client.NewHTTPClient(cw.NodeURL)
			if err := nutw.AddNode(cw.NodeURL, c); err != nil {
				printErr(fmt.Errorf("error introducing node %s: %v", cw.NodeURL, err))
			}
		}
		amount, err := nutw.Receive(cw)
		if err != nil {
			printErr(err)
		}
		total, err = total.Add(amount)
		if err != nil {
			printErr(err)
		}
	}
	fmt.Printf("received %d %s\n", total, cashu.MilliStrk)
	return nil
}

var payCmd = &cli.Command{
	Name:      "pay",
	Usage:     "melt proofs to settle a payment request",
	ArgsUsage: "[PAYMENT REQUEST]",
	Before:    setupWallet,
	Action:    pay,
}

func pay(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		printErr(fmt.Errorf("specify a payment request"))
	}
	request := []byte(ctx.Args().First())

	quote, err := nutw.CreateMeltQuote(nodeURL(), cashu.MilliStrk, request)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("melt quote %s: %d %s + %d fee\n", quote.Id, quote.Amount, cashu.MilliStrk, quote.Fee)

	result, err := nutw.PayQuote(nodeURL(), quote.Id)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("settlement state: %s\n", result.State)
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:   "mnemonic",
	Usage:  "print the wallet's seed phrase",
	Before: setupWallet,
	Action: mnemonic,
}

func mnemonic(ctx *cli.Context) error {
	phrase, err := nutw.Mnemonic()
	if err != nil {
		printErr(err)
	}
	fmt.Println(phrase)
	return nil
}

var restoreCmd = &cli.Command{
	Name:   "restore",
	Usage:  "restore wallet state from a mnemonic at the configured node",
	Action: restore,
}

func restore(ctx *cli.Context) error {
	fmt.Print("enter mnemonic: ")
	reader := bufio.NewReader(os.Stdin)
	phrase, err := reader.ReadString('\n')
	if err != nil {
		printErr(err)
	}
	phrase = phrase[:len(phrase)-1]

	db, err := storage.InitBolt(walletPath())
	if err != nil {
		printErr(err)
	}
	if err := db.SaveMnemonicSeed(phrase, bip39.NewSeed(phrase, "")); err != nil {
		printErr(err)
	}

	w, err := wallet.LoadWallet(db)
	if err != nil {
		printErr(err)
	}
	if err := w.AddNode(nodeURL(), client.NewHTTPClient(nodeURL())); err != nil {
		printErr(err)
	}

	restored, err := w.RestoreNode(nodeURL())
	if err != nil {
		printErr(err)
	}
	fmt.Printf("restored %d proofs from %s\n", restored, nodeURL())
	return nil
}
