package http

import (
	"errors"
	"log/slog"
	"net/http"

	"order-ledger/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorKind struct {
	status int
	code   string
}

var errorKinds = map[error]errorKind{
	domain.ErrNoCart:             {http.StatusBadRequest, "no_cart"},
	domain.ErrEmptyCart:          {http.StatusBadRequest, "empty_cart"},
	domain.ErrInsufficientStock:  {http.StatusBadRequest, "insufficient_stock"},
	domain.ErrInvalidStatus:      {http.StatusBadRequest, "invalid_status"},
	domain.ErrInvalidTransition:  {http.StatusBadRequest, "invalid_transition"},
	domain.ErrInvalidAddress:     {http.StatusBadRequest, "invalid_address"},
	domain.ErrInvalidQuantity:    {http.StatusBadRequest, "invalid_quantity"},
	domain.ErrInvalidPrice:       {http.StatusBadRequest, "invalid_price"},
	domain.ErrInvalidProduct:     {http.StatusBadRequest, "invalid_product"},
	domain.ErrProductInactive:    {http.StatusBadRequest, "product_inactive"},
	domain.ErrNotCancellable:     {http.StatusConflict, "not_cancellable"},
	domain.ErrForbidden:          {http.StatusForbidden, "forbidden"},
	domain.ErrOrderNotFound:      {http.StatusNotFound, "order_not_found"},
	domain.ErrProductNotFound:    {http.StatusNotFound, "product_not_found"},
	domain.ErrCartItemNotFound:   {http.StatusNotFound, "cart_item_not_found"},
	domain.ErrTransactionFailure: {http.StatusInternalServerError, "transaction_failure"},
}

type stockDetails struct {
	ProductID   uint64 `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int64  `json:"available"`
	Requested   int64  `json:"requested"`
}

// writeError renders err as an ErrorResponse. Storage failures are logged
// and their cause is not echoed to the client.
func writeError(c *gin.Context, err error) {
	kind, ok := errorKinds[domain.Classify(err)]
	if !ok {
		kind = errorKind{http.StatusInternalServerError, "internal_error"}
	}

	resp := ErrorResponse{Error: kind.code, Message: err.Error()}
	if kind.status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "error", err)
		resp.Message = "internal error"
	}

	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		resp.Details = stockDetails{
			ProductID:   stock.ProductID,
			ProductName: stock.ProductName,
			Available:   stock.Available,
			Requested:   stock.Requested,
		}
	}
	c.AbortWithStatusJSON(kind.status, resp)
}

func writeBindError(c *gin.Context, message string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_input",
		Message: message,
		Details: err.Error(),
	})
}
