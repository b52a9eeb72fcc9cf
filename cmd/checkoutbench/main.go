package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// localLinks 不访问网关，只模拟一次往返延迟
type localLinks struct{ delay time.Duration }

func (l localLinks) CreatePaymentLink(_ context.Context, req gateway.CreateLinkRequest) (*gateway.PaymentLink, error) {
	time.Sleep(l.delay)
	id := "bench-" + req.OrderID[:8]
	return &gateway.PaymentLink{ID: id, URL: "https://pay.invalid/" + id}, nil
}

// 并发下单抢同一商品，验证条件扣减不会超卖
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := repository.Migrate(db); err != nil {
		panic(err)
	}
	store := repository.NewStore(db)
	ctx := context.Background()

	N := envInt("N", 500)
	CONC := envInt("CONC", 16)
	STOCK := envInt("STOCK", 100)
	QTY := envInt("QTY", 1)
	DELAY := time.Duration(envInt("LINK_DELAY_MS", 20)) * time.Millisecond

	product := &model.Product{
		ID:    uuid.New().String(),
		Name:  "bench-" + time.Now().Format("150405"),
		Price: decimal.RequireFromString("9.99"),
		Stock: STOCK,
	}
	if err := store.Products.Create(ctx, product); err != nil {
		panic(err)
	}

	users := make([]string, N)
	for i := range users {
		users[i] = "bench-" + uuid.New().String()
		if err := store.Carts.Upsert(ctx, users[i], product.ID, QTY); err != nil {
			panic(err)
		}
	}

	checkout := service.NewCheckoutService(store, localLinks{delay: DELAY}, "http://localhost")
	addr := service.ShippingAddress{
		FullName: "Bench", Street: "1 Main St", City: "Springfield",
		State: "IL", PostalCode: "62701", Country: "US",
	}

	var (
		mu       sync.Mutex
		lat      = make([]time.Duration, 0, N)
		ok, sold int
		noStock  int
		failed   int
	)
	feed := make(chan string, N)
	for _, u := range users {
		feed <- u
	}
	close(feed)

	t0 := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range feed {
				st := time.Now()
				_, err := checkout.CreateOrder(ctx, u, addr)
				d := time.Since(st)

				mu.Lock()
				lat = append(lat, d)
				switch {
				case err == nil:
					ok++
					sold += QTY
				case errors.Is(err, repository.ErrInsufficientStock):
					noStock++
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(t0)

	left := must(store.Products.GetByID(ctx, product.ID)).Stock

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(math.Ceil(p*float64(len(xs)))) - 1
		if k < 0 {
			k = 0
		}
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	fmt.Printf("N=%d CONC=%d STOCK=%d QTY=%d LINK_DELAY=%v\n", N, CONC, STOCK, QTY, DELAY)
	fmt.Printf("Checkout total: %v, p50: %v, p95: %v, p99: %v\n", total, pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	fmt.Printf("Orders: ok=%d insufficient_stock=%d failed=%d\n", ok, noStock, failed)
	fmt.Printf("Stock: start=%d sold=%d left=%d\n", STOCK, sold, left)
	if left < 0 || sold+left != STOCK {
		fmt.Println("OVERSOLD: stock accounting does not add up")
		os.Exit(1)
	}
}
