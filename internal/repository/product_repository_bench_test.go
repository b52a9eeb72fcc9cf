package repository_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

func BenchmarkReserveAndRestore(b *testing.B) {
	store := testutil.NewStore(b)
	ctx := context.Background()

	// 预创建部分商品
	products := make([]*model.Product, 100)
	for i := range products {
		products[i] = testutil.SeedProduct(b, store, fmt.Sprintf("p%03d", i), "9.99", 1<<20)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := products[rand.Intn(len(products))].ID
		_ = store.Products.ReserveStock(ctx, id, 1)
		_ = store.Products.RestoreStock(ctx, id, 1)
	}
}

func BenchmarkCheckoutTx(b *testing.B) {
	store := testutil.NewStore(b)
	ctx := context.Background()
	p := testutil.SeedProduct(b, store, "hoodie", "10.00", 1<<30)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.WithTx(ctx, func(tx *repository.Store) error {
			if err := tx.Products.ReserveStock(ctx, p.ID, 2); err != nil {
				return err
			}
			return tx.Orders.Create(ctx, newOrder("bench", p.ID))
		})
	}

	b.StopTimer()
	b.Run("ListByUser", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = store.Orders.ListByUser(ctx, "bench", 50)
		}
	})
}
