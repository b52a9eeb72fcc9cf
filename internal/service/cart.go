package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
)

// CartView 购物车及按当前价格计算的合计
type CartView struct {
	Items []*model.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type CartService struct {
	store *repository.Store
}

func NewCartService(store *repository.Store) *CartService {
	return &CartService{store: store}
}

// AddToCart 累加数量，合计不能超过当前库存
func (s *CartService) AddToCart(ctx context.Context, userID, productID string, qty int) (*model.CartItem, error) {
	if qty <= 0 {
		return nil, validationErrorf("quantity must be positive")
	}
	product, err := s.store.Products.GetByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	total := qty
	existing, err := s.store.Carts.Get(ctx, userID, productID)
	switch {
	case err == nil:
		total += existing.Quantity
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if total > product.Stock {
		return nil, &InsufficientStockError{ProductID: product.ID, ProductName: product.Name, Available: product.Stock}
	}

	if err := s.store.Carts.Upsert(ctx, userID, productID, total); err != nil {
		return nil, err
	}
	item, err := s.store.Carts.Get(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	item.Product = *product
	return item, nil
}

func (s *CartService) List(ctx context.Context, userID string) (*CartView, error) {
	items, err := s.store.Carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return &CartView{Items: items, Total: total}, nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.store.Carts.Clear(ctx, userID)
}
