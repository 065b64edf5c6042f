package gatewaydb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/tradepoint/deposit-gateway/pkg/currency"
	mghelper "github.com/tradepoint/deposit-gateway/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating blockchain_currencies table...")
		return mghelper.CreateSchema(ctx, db, &currency.BlockchainCurrencyDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping blockchain_currencies table...")
		return mghelper.DropTables(ctx, db, &currency.BlockchainCurrencyDao{})
	})
}
