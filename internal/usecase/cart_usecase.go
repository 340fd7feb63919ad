package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"shopapi/internal/domain/model"
	repo "shopapi/internal/repository"
)

// CartUsecase handles the cart of the current owner (user or anonymous
// session). Cart mutations only read current stock, they never reserve it;
// stock is re-checked transactionally at order creation.
type CartUsecase struct {
	tx           repo.TransactionManager
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		tx:           tx,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

func validOwner(owner model.CartOwner) bool {
	return owner.IsUser() || owner.SessionKey != ""
}

// GetCart returns the owner's cart, creating an empty one when missing.
func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if !validOwner(owner) {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreate(ctx, owner)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart adds a product; an existing line for the same product sums
// quantities. The post-sum quantity must not exceed current stock.
func (u *CartUsecase) AddToCart(ctx context.Context, owner model.CartOwner, in AddCartInput) (CartResponse, error) {
	if !validOwner(owner) {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < model.MinCartQuantity || in.Quantity > model.MaxCartQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	cart, err := u.cartRepo.GetOrCreate(ctx, owner)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var existingQty int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}

	newQty := existingQty + in.Quantity
	if newQty > model.MaxCartQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	if newQty > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("only %d items available in stock", p.Stock))
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// UpdateItem replaces the quantity of one cart line.
func (u *CartUsecase) UpdateItem(ctx context.Context, owner model.CartOwner, cartItemID int64, qty int64) (CartResponse, error) {
	if !validOwner(owner) {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if qty < model.MinCartQuantity || qty > model.MaxCartQuantity {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	cart, item, err := u.ownedItem(ctx, owner, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if qty > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("only %d items available in stock", p.Stock))
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.CartOwner, cartItemID int64) (CartResponse, error) {
	if !validOwner(owner) {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	cart, _, err := u.ownedItem(ctx, owner, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) Clear(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if !validOwner(owner) {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreate(ctx, owner)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := u.cartItemRepo.DeleteByCartID(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// MergeCarts folds the anonymous session cart into the user's cart after
// registration or login. Same product sums quantities, otherwise the item
// moves over; the session cart is deleted. One transaction, all or nothing.
// Stock is not re-checked here; checkout re-validates.
func (u *CartUsecase) MergeCarts(ctx context.Context, sessionKey string, userID int64) error {
	if sessionKey == "" || userID <= 0 {
		return nil
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		sessCart, err := r.Carts().Find(ctx, model.CartOwner{SessionKey: sessionKey})
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		sessItems, err := r.CartItems().ListByCartID(ctx, sessCart.ID)
		if err != nil {
			return err
		}

		if len(sessItems) > 0 {
			userCart, err := r.Carts().GetOrCreate(ctx, model.CartOwner{UserID: userID})
			if err != nil {
				return err
			}

			userItems, err := r.CartItems().ListByCartID(ctx, userCart.ID)
			if err != nil {
				return err
			}

			byProduct := make(map[int64]model.CartItem, len(userItems))
			for _, it := range userItems {
				byProduct[it.ProductID] = it
			}

			for _, it := range sessItems {
				existing, ok := byProduct[it.ProductID]
				if ok {
					if err := r.CartItems().UpdateQuantity(ctx, existing.ID, existing.Quantity+it.Quantity); err != nil {
						return err
					}
					if err := r.CartItems().DeleteByID(ctx, it.ID); err != nil {
						return err
					}
					continue
				}
				if err := r.CartItems().MoveToCart(ctx, it.ID, userCart.ID); err != nil {
					return err
				}
			}
		}

		return r.Carts().Delete(ctx, sessCart.ID)
	})
}

// ownedItem loads the item and checks it belongs to the owner's cart.
// Someone else's item reads as not found.
func (u *CartUsecase) ownedItem(ctx context.Context, owner model.CartOwner, cartItemID int64) (model.Cart, model.CartItem, error) {
	cart, err := u.cartRepo.Find(ctx, owner)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if item.CartID != cart.ID {
		return model.Cart{}, model.CartItem{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}

	return cart, item, nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil {
			continue
		}
		if !p.IsActive {
			continue
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})

		total = total.Add(subtotal)
	}

	return CartResponse{Items: respItems, Total: total}, nil
}
