package gatewaydb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/tradepoint/deposit-gateway/pkg/depositstore"
	mghelper "github.com/tradepoint/deposit-gateway/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating deposits table...")
		if err := mghelper.CreateSchema(ctx, db, &depositstore.DepositDao{}); err != nil {
			return err
		}
		// The unique natural-key index comes from the model schema; these
		// support the read paths.
		return mghelper.CreateModelIndexes(ctx, db, &depositstore.DepositDao{}, "state", "owner_uid")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping deposits table...")
		return mghelper.DropTables(ctx, db, &depositstore.DepositDao{})
	})
}
