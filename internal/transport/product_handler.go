package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"products-api/internal/database"
	"products-api/internal/domain"
	"products-api/internal/middleware"
	"products-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ProductRequest represents the create and update payload.
// A zero price is rejected the same as a missing one.
type ProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Price       Price  `json:"price" validate:"required,nonzero_decimal"`
	Description string `json:"description" validate:"required"`
}

// Price accepts a JSON number (9.99) or a numeric string ("9.99"), the form
// products are returned in, and keeps the exact decimal text.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a number or a numeric string: %w", err)
	}
	*p = Price(n.String())
	return nil
}

// ProductResponse wraps a single product
type ProductResponse struct {
	Message string          `json:"message"`
	Product *domain.Product `json:"product"`
}

// ProductListResponse wraps the product list
type ProductListResponse struct {
	Message     string            `json:"message"`
	ProductList []*domain.Product `json:"product_list"`
}

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
	verboseErrors  bool
}

// NewProductHandler creates a new ProductHandler.
// With verboseErrors set, failed responses carry the driver message and SQLSTATE.
func NewProductHandler(productService service.ProductService, logger *zap.Logger, verboseErrors bool) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
		verboseErrors:  verboseErrors,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Post("/product", h.CreateProduct)
	r.Put("/product/{id}", h.UpdateProduct)
	r.Delete("/product/{id}", h.DeleteProduct)
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		h.respondWithStorageError(w, err, "Error fetching products")
		return
	}

	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Message:     "Products fetched",
		ProductList: products,
	})
}

// CreateProduct handles POST /product
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Create(r.Context(), req.toInput())
	if err != nil {
		h.respondWithStorageError(w, err, "Error adding product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, ProductResponse{
		Message: "Product Added",
		Product: product,
	})
}

// UpdateProduct handles PUT /product/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.respondWithStorageError(w, err, "Error updating product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{
		Message: "Product Updated",
		Product: product,
	})
}

// DeleteProduct handles DELETE /product/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Delete(r.Context(), id)
	if err != nil {
		h.respondWithStorageError(w, err, "Error deleting product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductResponse{
		Message: "Product Deleted",
		Product: product,
	})
}

func (h *ProductHandler) decodeProductRequest(w http.ResponseWriter, r *http.Request) (ProductRequest, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))

		if middleware.IsValidationError(err) {
			middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
			return req, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func (h *ProductHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return 0, false
	}
	return id, true
}

// respondWithStorageError maps a service failure to 404, 504 or 500.
func (h *ProductHandler) respondWithStorageError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, domain.ErrProductNotFound) {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	status := http.StatusInternalServerError
	if errors.Is(err, database.ErrTimeout) {
		status = http.StatusGatewayTimeout
	}

	h.logger.Error(message, zap.Error(err), zap.Int("status", status))

	resp := middleware.ErrorResponse{Message: message}
	if h.verboseErrors {
		resp.Error = err.Error()
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			resp.Code = pgErr.Code
		}
	}
	middleware.RespondWithErrorResponse(w, status, resp)
}

func (req ProductRequest) toInput() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Price:       string(req.Price),
		Description: req.Description,
	}
}
