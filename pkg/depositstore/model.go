package depositstore

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/tradepoint/deposit-gateway/pkg/deposit"
)

// DepositDao is a data access object that maps directly to the 'deposits'
// table in PostgreSQL. The compound unique index on the natural key is what
// makes find-or-create race-safe.
type DepositDao struct {
	bun.BaseModel `bun:"table:deposits,alias:d"`

	ID            int64     `bun:"id,pk,autoincrement"`
	BlockchainKey string    `bun:"blockchain_key,notnull,type:varchar(32),unique:ux_deposits_natural_key"`
	CurrencyID    string    `bun:"currency_id,notnull,type:varchar(32),unique:ux_deposits_natural_key"`
	TxID          string    `bun:"txid,notnull,type:varchar(128),unique:ux_deposits_natural_key"`
	TxOut         int       `bun:"txout,notnull,unique:ux_deposits_natural_key"`
	OwnerUID      string    `bun:"owner_uid,notnull,type:varchar(64)"`
	Address       string    `bun:"address,notnull,type:varchar(128)"`
	Amount        string    `bun:"amount,notnull,type:numeric(38,18)"`
	FromAddresses []string  `bun:"from_addresses,array"`
	BlockNumber   int64     `bun:"block_number,notnull"`
	State         string    `bun:"state,notnull,type:varchar(20)"`
	LastError     *string   `bun:"last_error,type:text"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toDao(d *deposit.Deposit) *DepositDao {
	dao := &DepositDao{
		BlockchainKey: d.BlockchainKey,
		CurrencyID:    d.CurrencyID,
		TxID:          d.TxID,
		TxOut:         d.TxOut,
		OwnerUID:      d.OwnerUID,
		Address:       d.Address,
		Amount:        d.Amount.String(),
		FromAddresses: d.FromAddresses,
		BlockNumber:   d.BlockNumber,
		State:         string(d.State),
	}
	if len(d.Errors) > 0 {
		joined := strings.Join(d.Errors, "\n")
		dao.LastError = &joined
	}
	return dao
}

func toDeposit(dao *DepositDao) (*deposit.Deposit, error) {
	amount, err := decimal.NewFromString(dao.Amount)
	if err != nil {
		return nil, err
	}

	d := &deposit.Deposit{
		Key: deposit.Key{
			BlockchainKey: dao.BlockchainKey,
			CurrencyID:    dao.CurrencyID,
			TxID:          dao.TxID,
			TxOut:         dao.TxOut,
		},
		OwnerUID:      dao.OwnerUID,
		Address:       dao.Address,
		Amount:        amount,
		FromAddresses: dao.FromAddresses,
		BlockNumber:   dao.BlockNumber,
		State:         deposit.State(dao.State),
		CreatedAt:     dao.CreatedAt,
		UpdatedAt:     dao.UpdatedAt,
	}
	if dao.LastError != nil && *dao.LastError != "" {
		d.Errors = strings.Split(*dao.LastError, "\n")
	}
	return d, nil
}
