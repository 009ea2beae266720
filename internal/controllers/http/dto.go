package http

import (
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/services"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type CreateOrderRequest struct {
	ShippingAddress string  `json:"shipping_address" binding:"required,min=10,max=500"`
	BillingAddress  *string `json:"billing_address" binding:"omitempty,min=10,max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateProductRequest struct {
	Name          string           `json:"name" binding:"required,max=255"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	StockQuantity *int64           `json:"stock_quantity" binding:"required,min=0"`
}

type AddCartItemRequest struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

type OrderItemResponse struct {
	ID        uint64 `json:"id"`
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

type OrderResponse struct {
	ID              uint64              `json:"id"`
	UserID          uint64              `json:"user_id"`
	TotalAmount     string              `json:"total_amount"`
	Status          domain.OrderStatus  `json:"status"`
	ShippingAddress string              `json:"shipping_address"`
	BillingAddress  string              `json:"billing_address"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Items:           make([]OrderItemResponse, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, it := range o.Items {
		resp.Items[i] = OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
			Subtotal:  it.Subtotal().StringFixed(2),
		}
	}
	return resp
}

type ProductResponse struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         string    `json:"price"`
	StockQuantity int64     `json:"stock_quantity"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type CartLineResponse struct {
	ProductID     uint64 `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	Subtotal      string `json:"subtotal"`
	StockQuantity int64  `json:"stock_quantity"`
	Active        bool   `json:"active"`
}

type CartResponse struct {
	CartID uint64             `json:"cart_id,omitempty"`
	UserID uint64             `json:"user_id"`
	Lines  []CartLineResponse `json:"lines"`
	Total  string             `json:"total"`
}

func NewCartResponse(v *services.CartView) CartResponse {
	resp := CartResponse{
		CartID: v.CartID,
		UserID: v.UserID,
		Lines:  make([]CartLineResponse, len(v.Lines)),
		Total:  v.Total.StringFixed(2),
	}
	for i, l := range v.Lines {
		resp.Lines[i] = CartLineResponse{
			ProductID:     l.ProductID,
			ProductName:   l.ProductName,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice.StringFixed(2),
			Subtotal:      l.Subtotal().StringFixed(2),
			StockQuantity: l.StockQuantity,
			Active:        l.Active,
		}
	}
	return resp
}
