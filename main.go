package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/payy-network/payy-wallet/note"
	"github.com/payy-network/payy-wallet/rpc"
	"github.com/payy-network/payy-wallet/wallet"
)

// Manual test entrypoint: prints balances and, when PAYY_RECIPIENT and
// PAYY_AMOUNT are set, performs one transfer against the configured node.
func main() {
	_ = godotenv.Load()

	log := logrus.New()
	if os.Getenv("PAYY_DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := wallet.Config{
		NodeURL:   envOr("PAYY_NODE_URL", "https://rpc.payy.network"),
		SecretKey: os.Getenv("PAYY_SECRET_KEY"),
		Token:     envOr("PAYY_TOKEN", "USDC"),
		DBPath:    envOr("PAYY_DB_PATH", "payy-wallet-db"),
		Logger:    log,
	}

	session, err := wallet.NewSession(cfg)
	if err != nil {
		log.WithError(err).Fatal("could not open wallet")
	}
	defer session.Close()

	ctx := context.Background()

	if height, err := session.NodeHeight(ctx); err != nil {
		log.WithError(err).Warn("node height unavailable")
	} else {
		log.WithField("height", height).Info("node reachable")
	}

	spendable, pending, err := session.Balance()
	if err != nil {
		log.WithError(err).Fatal("could not read balance")
	}
	log.WithFields(logrus.Fields{
		"spendable": note.FormatAmount(spendable),
		"pending":   note.FormatAmount(pending),
	}).Info("wallet balance")

	recipient := os.Getenv("PAYY_RECIPIENT")
	amount := os.Getenv("PAYY_AMOUNT")
	if recipient == "" || amount == "" {
		return
	}

	receipt, err := session.TransferDecimal(ctx, recipient, amount)
	if err != nil {
		var terr *wallet.TransferError
		if errors.As(err, &terr) {
			log.WithFields(logrus.Fields{
				"kind":      terr.Kind.String(),
				"retryable": terr.Retryable,
			}).WithError(err).Fatal("transfer failed")
		}
		log.WithError(err).Fatal("transfer failed")
	}

	log.WithFields(logrus.Fields{
		"txn_hash": receipt.TxnHash,
		"height":   receipt.Height,
		"change":   note.FormatAmount(receipt.Change),
	}).Info("transfer confirmed")

	if _, err := session.NodeHeight(ctx); err != nil && !errors.Is(err, rpc.ErrBreakerOpen) {
		log.WithError(err).Debug("post-transfer height refresh failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
