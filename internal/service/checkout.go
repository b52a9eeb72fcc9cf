package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// PaymentLinkCreator 网关创建支付链接
type PaymentLinkCreator interface {
	CreatePaymentLink(ctx context.Context, req gateway.CreateLinkRequest) (*gateway.PaymentLink, error)
}

// ShippingAddress 下单时提交的收货地址
type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"required,max=255"`
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=128"`
	State      string `json:"state" validate:"required,max=128"`
	PostalCode string `json:"postalCode" validate:"required,max=32"`
	Country    string `json:"country" validate:"required,max=64"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	OrderID    string          `json:"orderId"`
	PaymentURL string          `json:"paymentUrl"`
	Total      decimal.Decimal `json:"total"`
}

// settleTimeout 网关调用之后的补偿与落库不再跟随请求取消，但仍有上限
const settleTimeout = 10 * time.Second

// CheckoutService 把购物车转换为订单和待支付链接
type CheckoutService struct {
	store     *repository.Store
	links     PaymentLinkCreator
	publicURL string
	validate  *validator.Validate
	tracer    trace.Tracer
}

func NewCheckoutService(store *repository.Store, links PaymentLinkCreator, publicURL string) *CheckoutService {
	return &CheckoutService{
		store:     store,
		links:     links,
		publicURL: strings.TrimRight(publicURL, "/"),
		validate:  validator.New(),
		tracer:    otel.Tracer("github.com/KIRA-Technologies/swagchain/internal/service"),
	}
}

// CreateOrder 下单：预占库存并创建订单，随后请求支付链接；链接失败时整体补偿
func (s *CheckoutService) CreateOrder(ctx context.Context, userID string, addr ShippingAddress) (res *CheckoutResult, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.CreateOrder")
	defer func() {
		metrics.RecordOrderOperation("checkout", err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.validateAddress(addr); err != nil {
		return nil, err
	}

	cart, err := s.store.Carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	// 预检查只用于尽早给出提示，真正的约束在条件扣减
	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(cart))
	for _, ci := range cart {
		if ci.Product.ID == "" {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, ci.ProductID)
		}
		if ci.Quantity > ci.Product.Stock {
			return nil, &InsufficientStockError{ProductID: ci.ProductID, ProductName: ci.Product.Name, Available: ci.Product.Stock}
		}
		items = append(items, model.OrderItem{ProductID: ci.ProductID, Quantity: ci.Quantity, Price: ci.Product.Price})
		total = total.Add(ci.Product.Price.Mul(decimal.NewFromInt(int64(ci.Quantity))))
	}
	// 固定加锁顺序，避免并发下单互相等待
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	now := time.Now().UTC()
	address := &model.Address{
		ID:         uuid.New().String(),
		UserID:     userID,
		FullName:   addr.FullName,
		Street:     addr.Street,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
		CreatedAt:  now,
	}
	order := &model.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		AddressID:   address.ID,
		Status:      model.OrderStatusCreated,
		TotalAmount: total,
		CreatedAt:   now,
		Items:       items,
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.total", total.String()))

	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := tx.Addresses.Create(ctx, address); err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.Products.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return s.stockError(ctx, tx, item.ProductID)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	link, err := s.links.CreatePaymentLink(ctx, gateway.CreateLinkRequest{
		Amount:      total,
		OrderID:     order.ID,
		RedirectURL: s.redirectURL(order.ID),
	})
	if err != nil {
		logger.Warn("payment link creation failed, rolling back order",
			zap.String("order_id", order.ID), zap.Error(err))
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
		if cerr := s.compensate(cctx, order, address.ID); cerr != nil {
			logger.Error("checkout compensation failed",
				zap.String("order_id", order.ID), zap.Error(cerr))
		}
		return nil, &PaymentGatewayError{Op: "create payment link", Err: err}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	err = s.store.WithTx(fctx, func(tx *repository.Store) error {
		if err := tx.Orders.SetPaymentLink(fctx, order.ID, link.ID, link.URL); err != nil {
			return err
		}
		if err := tx.Carts.Clear(fctx, userID); err != nil {
			return err
		}
		return emitOrderEvent(fctx, tx, order, EventOrderCreated, "", now)
	})
	if err != nil {
		// 链接已在网关侧生效，保留订单以便回调仍能按 customOrderId 对上
		logger.Error("persist payment link failed",
			zap.String("order_id", order.ID), zap.String("link_id", link.ID), zap.Error(err))
		return nil, fmt.Errorf("persist payment link: %w", err)
	}

	logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", total.String()),
		zap.Int("items", len(items)))
	return &CheckoutResult{OrderID: order.ID, PaymentURL: link.URL, Total: total}, nil
}

// compensate 删除刚创建的订单、订单行与地址快照，并归还预占库存
func (s *CheckoutService) compensate(ctx context.Context, order *model.Order, addressID string) error {
	return s.store.WithTx(ctx, func(tx *repository.Store) error {
		for _, item := range order.Items {
			if err := tx.Products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := tx.Orders.Delete(ctx, order.ID); err != nil {
			return err
		}
		return tx.Addresses.Delete(ctx, addressID)
	})
}

func (s *CheckoutService) stockError(ctx context.Context, tx *repository.Store, productID string) error {
	p, err := tx.Products.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock}
}

func (s *CheckoutService) redirectURL(orderID string) string {
	return s.publicURL + "/order/success?orderId=" + url.QueryEscape(orderID)
}

func (s *CheckoutService) validateAddress(addr ShippingAddress) error {
	err := s.validate.Struct(addr)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return validationErrorf("invalid shipping address: %s failed on %s", fe.Field(), fe.Tag())
	}
	return validationErrorf("invalid shipping address: %v", err)
}
