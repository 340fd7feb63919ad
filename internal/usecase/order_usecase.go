package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopapi/internal/domain/model"
	repo "shopapi/internal/repository"
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	log       *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, addresses repo.AddressRepository, log *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, addresses: addresses, log: log}
}

type CreateOrderInput struct {
	ShippingAddress   string
	ShippingAddressID int64
}

type OrderItemOutput struct {
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	Quantity        int64           `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	OrderNumber     string            `json:"order_number"`
	UserID          int64             `json:"user_id"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingAddress string            `json:"shipping_address"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// CreateOrder turns the user's cart into an immutable order. Inside one
// transaction: products are row-locked in ascending id order, every line is
// stock-checked (first failure aborts everything), the total and per-item
// snapshots are taken from current prices, stock is decremented, and the
// cart is emptied.
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	shippingAddress, err := u.resolveShippingAddress(ctx, userID, in)
	if err != nil {
		return OrderOutput{}, err
	}

	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().Find(ctx, model.CartOwner{UserID: userID})
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusBadRequest, "cart is empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart is empty")
		}

		// ascending product-id lock order prevents deadlocks between
		// overlapping carts
		sort.Slice(cartItems, func(i, j int) bool {
			return cartItems[i].ProductID < cartItems[j].ProductID
		})

		total := decimal.Zero
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		now := time.Now()

		for _, ci := range cartItems {
			p, err := r.Inventory().FindForUpdate(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			if p.Stock < ci.Quantity {
				return NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
					"insufficient stock for %s: available %d, requested %d",
					p.Name, p.Stock, ci.Quantity))
			}

			subtotal := p.Price.Mul(decimal.NewFromInt(ci.Quantity))
			total = total.Add(subtotal)

			orderItems = append(orderItems, model.OrderItem{
				ProductID:       ci.ProductID,
				ProductName:     p.Name,
				Quantity:        ci.Quantity,
				PriceAtPurchase: p.Price,
				Subtotal:        subtotal,
				CreatedAt:       now,
			})
		}

		order := model.Order{
			UserID:          userID,
			OrderNumber:     model.NewOrderNumber(),
			TotalAmount:     total,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.OrderPaymentPending,
			ShippingAddress: shippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		for _, ci := range cartItems {
			ok, err := r.Inventory().Decrease(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				// cannot happen while we hold the row lock
				return NewHTTPError(http.StatusConflict, "stock changed during checkout")
			}
		}

		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order.ID = orderID
		out = toOrderOutput(order, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder restores stock for every line and marks the order cancelled.
// Only pending and payment_failed orders may be cancelled.
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		if o.Status != model.OrderStatusPending && o.Status != model.OrderStatusPaymentFailed {
			return NewHTTPError(http.StatusBadRequest, "only pending or payment_failed orders can be cancelled")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		for _, it := range items {
			if err := r.Inventory().Increase(ctx, it.ProductID, it.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = model.OrderStatusCancelled
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// UpdateStatus is the privileged operator path: any recognized status value
// overwrites unconditionally, with no transition-graph check. The override
// is logged so it leaves a trace.
func (u *OrderUsecase) UpdateStatus(ctx context.Context, orderID int64, newStatus string) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	status := model.OrderStatus(strings.TrimSpace(newStatus))
	if !status.Valid() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, status); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		u.log.Info("operator order status override",
			zap.Int64("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(status)),
		)

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.Status = status
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			// other users' orders read as missing
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type SalesReportOutput struct {
	PeriodDays   int             `json:"period_days"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// SalesReport aggregates paid orders over the trailing window.
func (u *OrderUsecase) SalesReport(ctx context.Context, days int) (SalesReportOutput, error) {
	if days <= 0 {
		days = 30
	}

	var out SalesReportOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		since := time.Now().AddDate(0, 0, -days)
		count, revenue, err := r.Orders().SalesSince(ctx, since)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = SalesReportOutput{PeriodDays: days, TotalOrders: count, TotalRevenue: revenue}
		return nil
	})

	if err != nil {
		return SalesReportOutput{}, err
	}
	return out, nil
}

// resolveShippingAddress returns the snapshot text stored on the order:
// either a stored address formatted to one line, or free text.
func (u *OrderUsecase) resolveShippingAddress(ctx context.Context, userID int64, in CreateOrderInput) (string, error) {
	if in.ShippingAddressID > 0 {
		addr, err := u.addresses.FindByID(ctx, in.ShippingAddressID)
		if errors.Is(err, repo.ErrNotFound) {
			return "", NewHTTPError(http.StatusNotFound, "address not found")
		}
		if err != nil {
			return "", NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if addr.UserID != userID {
			return "", NewHTTPError(http.StatusNotFound, "address not found")
		}
		return addr.FormatShipping(), nil
	}

	text := strings.TrimSpace(in.ShippingAddress)
	if text == "" {
		return "", NewHTTPError(http.StatusBadRequest, "shipping address is required")
	}
	return text, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:       it.ProductID,
			Name:            it.ProductName,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
			Subtotal:        it.Subtotal,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
