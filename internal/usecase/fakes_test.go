package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"shopapi/internal/domain/model"
	"shopapi/internal/infra/gateway"
	repo "shopapi/internal/repository"
)

// memStore is an in-memory datastore backing the fake repositories. One
// store per test; every repo view shares the same maps so cross-repo
// effects (stock decrement, cart emptying) are observable.
type memStore struct {
	mu         sync.Mutex
	products   map[int64]model.Product
	carts      map[int64]model.Cart
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	payments   map[int64]model.Payment
	users      map[int64]model.User
	addresses  map[int64]model.Address
	lastID     int64
}

func newMemStore() *memStore {
	return &memStore{
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
		payments:   map[int64]model.Payment{},
		users:      map[int64]model.User{},
		addresses:  map[int64]model.Address{},
	}
}

func (s *memStore) nextID() int64 {
	s.lastID++
	return s.lastID
}

// TxRepos
func (s *memStore) Orders() repo.OrderRepository         { return memOrders{s} }
func (s *memStore) OrderItems() repo.OrderItemRepository { return memOrderItems{s} }
func (s *memStore) Carts() repo.CartRepository           { return memCarts{s} }
func (s *memStore) CartItems() repo.CartItemRepository   { return memCartItems{s} }
func (s *memStore) Inventory() repo.InventoryRepository  { return memInventory{s} }
func (s *memStore) Products() repo.ProductRepository     { return memProducts{s} }
func (s *memStore) Payments() repo.PaymentRepository     { return memPayments{s} }

// memTx runs fn directly against the shared store. Rollback is not
// simulated; tests only assert outcomes of paths that either fully commit
// or fail before writing.
type memTx struct{ s *memStore }

func (t memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(t.s)
}

type memProducts struct{ s *memStore }

func (r memProducts) FindByID(_ context.Context, id int64) (model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) List(_ context.Context, f repo.ProductListFilter) ([]model.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, p := range r.s.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r memProducts) Create(_ context.Context, p model.Product) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.nextID()
	r.s.products[p.ID] = p
	return p.ID, nil
}

func (r memProducts) Update(_ context.Context, p model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.products[p.ID] = p
	return nil
}

type memInventory struct{ s *memStore }

func (r memInventory) FindForUpdate(ctx context.Context, productID int64) (model.Product, error) {
	return memProducts{r.s}.FindByID(ctx, productID)
}

func (r memInventory) Decrease(_ context.Context, productID int64, qty int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.products[productID] = p
	return true, nil
}

func (r memInventory) Increase(_ context.Context, productID int64, qty int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.s.products[productID] = p
	return nil
}

type memCarts struct{ s *memStore }

func cartMatches(c model.Cart, owner model.CartOwner) bool {
	if owner.IsUser() {
		return c.UserID != nil && *c.UserID == owner.UserID && c.SessionKey == nil
	}
	return c.SessionKey != nil && *c.SessionKey == owner.SessionKey && c.UserID == nil
}

func (r memCarts) find(owner model.CartOwner) (model.Cart, bool) {
	for _, c := range r.s.carts {
		if cartMatches(c, owner) {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (r memCarts) GetOrCreate(_ context.Context, owner model.CartOwner) (model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.find(owner); ok {
		return c, nil
	}
	c := model.Cart{ID: r.s.nextID(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if owner.IsUser() {
		uid := owner.UserID
		c.UserID = &uid
	} else {
		sk := owner.SessionKey
		c.SessionKey = &sk
	}
	r.s.carts[c.ID] = c
	return c, nil
}

func (r memCarts) Find(_ context.Context, owner model.CartOwner) (model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.find(owner); ok {
		return c, nil
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) Delete(_ context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, cartID)
	return nil
}

type memCartItems struct{ s *memStore }

func (r memCartItems) ListByCartID(_ context.Context, cartID int64) ([]model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CartItem
	for _, it := range r.s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memCartItems) FindByID(_ context.Context, id int64) (model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.cartItems[id]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r memCartItems) UpsertByCartAndProduct(_ context.Context, cartID, productID, addQty int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity += addQty
			r.s.cartItems[id] = it
			return nil
		}
	}
	id := r.s.nextID()
	r.s.cartItems[id] = model.CartItem{ID: id, CartID: cartID, ProductID: productID, Quantity: addQty}
	return nil
}

func (r memCartItems) UpdateQuantity(_ context.Context, id, qty int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	r.s.cartItems[id] = it
	return nil
}

func (r memCartItems) MoveToCart(_ context.Context, id, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.CartID = cartID
	r.s.cartItems[id] = it
	return nil
}

func (r memCartItems) DeleteByID(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cartItems[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.cartItems, id)
	return nil
}

func (r memCartItems) DeleteByCartID(_ context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.cartItems {
		if it.CartID == cartID {
			delete(r.s.cartItems, id)
		}
	}
	return nil
}

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, o model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.nextID()
	r.s.orders[o.ID] = o
	return o.ID, nil
}

func (r memOrders) FindByID(_ context.Context, id int64) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrders) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memOrders) UpdateStatus(_ context.Context, id int64, status model.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r memOrders) UpdateStatuses(_ context.Context, id int64, status model.OrderStatus, ps model.OrderPaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = ps
	r.s.orders[id] = o
	return nil
}

func (r memOrders) SalesSince(_ context.Context, since time.Time) (int64, decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	revenue := decimal.Zero
	for _, o := range r.s.orders {
		if o.PaymentStatus == model.OrderPaymentSuccess && !o.CreatedAt.Before(since) {
			count++
			revenue = revenue.Add(o.TotalAmount)
		}
	}
	return count, revenue, nil
}

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range items {
		it.ID = r.s.nextID()
		it.OrderID = orderID
		r.s.orderItems[it.ID] = it
	}
	return nil
}

func (r memOrderItems) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.OrderItem
	for _, it := range r.s.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPayments struct{ s *memStore }

func (r memPayments) Create(_ context.Context, p model.Payment) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.nextID()
	r.s.payments[p.ID] = p
	return p.ID, nil
}

func (r memPayments) Update(_ context.Context, p model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.payments[p.ID] = p
	return nil
}

func (r memPayments) findBy(match func(model.Payment) bool) (model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (r memPayments) FindByOrderID(_ context.Context, orderID int64) (model.Payment, error) {
	return r.findBy(func(p model.Payment) bool { return p.OrderID == orderID })
}

func (r memPayments) FindByOrderIDForUpdate(ctx context.Context, orderID int64) (model.Payment, error) {
	return r.FindByOrderID(ctx, orderID)
}

func (r memPayments) FindByGatewayOrderID(_ context.Context, ref string) (model.Payment, error) {
	return r.findBy(func(p model.Payment) bool { return p.GatewayOrderID != nil && *p.GatewayOrderID == ref })
}

func (r memPayments) FindByGatewayPaymentID(_ context.Context, ref string) (model.Payment, error) {
	return r.findBy(func(p model.Payment) bool { return p.GatewayPaymentID != nil && *p.GatewayPaymentID == ref })
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u model.User) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = r.s.nextID()
	r.s.users[u.ID] = u
	return u.ID, nil
}

func (r memUsers) FindByID(_ context.Context, id int64) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

type memAddresses struct{ s *memStore }

func (r memAddresses) FindByID(_ context.Context, id int64) (model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r memAddresses) ListByUserID(_ context.Context, userID int64) ([]model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Address
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAddresses) Create(_ context.Context, a model.Address) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.nextID()
	r.s.addresses[a.ID] = a
	return a.ID, nil
}

func (r memAddresses) Update(_ context.Context, a model.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[a.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.addresses[a.ID] = a
	return nil
}

func (r memAddresses) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.addresses, id)
	return nil
}

// fakeGateway returns a canned intent or error and records calls.
type fakeGateway struct {
	intent gateway.Intent
	err    error
	calls  int
}

func (g *fakeGateway) CreateIntent(_ context.Context, amountMinor int64, currency string, _ string) (gateway.Intent, error) {
	g.calls++
	if g.err != nil {
		return gateway.Intent{}, g.err
	}
	in := g.intent
	if in.Amount == 0 {
		in.Amount = amountMinor
	}
	if in.Currency == "" {
		in.Currency = currency
	}
	return in, nil
}

// test seed helpers

func seedProduct(s *memStore, name, price string, stock int64) model.Product {
	p := model.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	id, _ := memProducts{s}.Create(context.Background(), p)
	p.ID = id
	return p
}

func seedCartWithItems(s *memStore, owner model.CartOwner, lines map[int64]int64) model.Cart {
	c, _ := memCarts{s}.GetOrCreate(context.Background(), owner)
	for productID, qty := range lines {
		_ = memCartItems{s}.UpsertByCartAndProduct(context.Background(), c.ID, productID, qty)
	}
	return c
}

func seedOrder(s *memStore, userID int64, total string, status model.OrderStatus, ps model.OrderPaymentStatus) model.Order {
	o := model.Order{
		UserID:        userID,
		OrderNumber:   model.NewOrderNumber(),
		TotalAmount:   decimal.RequireFromString(total),
		Status:        status,
		PaymentStatus: ps,
		CreatedAt:     time.Now(),
	}
	id, _ := memOrders{s}.Create(context.Background(), o)
	o.ID = id
	return o
}
