package repository

import (
	"encoding/json"
	"fmt"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

const receiptPrefix = "receipt:"

type ReceiptRepository interface {
	Save(tx *store.Tx, receipt entity.SaleReceipt) error
	List(cursor string, limit int) ([]entity.SaleReceipt, string, error)
}

type receiptRepository struct {
	store *store.Store
}

func NewReceiptRepository(s *store.Store) ReceiptRepository {
	return receiptRepository{s}
}

// Receipts are keyed by sale time then id, so List pages in settlement order.
func receiptKey(receipt entity.SaleReceipt) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", receiptPrefix, receipt.SoldAt, receipt.ID))
}

func (r receiptRepository) Save(tx *store.Tx, receipt entity.SaleReceipt) error {
	value, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	return tx.Set(receiptKey(receipt), value)
}

func (r receiptRepository) List(cursor string, limit int) ([]entity.SaleReceipt, string, error) {
	receipts := make([]entity.SaleReceipt, 0)
	next := ""
	lastKey := ""

	err := r.store.IteratePrefix([]byte(receiptPrefix), func(key, value []byte) (bool, error) {
		if cursor != "" && string(key) <= cursor {
			return true, nil
		}
		if len(receipts) == limit {
			next = lastKey
			return false, nil
		}

		var receipt entity.SaleReceipt
		if err := json.Unmarshal(value, &receipt); err != nil {
			return false, err
		}

		receipts = append(receipts, receipt)
		lastKey = string(key)

		return true, nil
	})
	if err != nil {
		return nil, "", err
	}

	return receipts, next, nil
}
