package controllers

import (
	"net/http"

	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// ProductController handles product-related requests
type ProductController struct {
	Store storage.ProductStore
}

// NewProductController creates a new ProductController
func NewProductController(store storage.ProductStore) *ProductController {
	return &ProductController{Store: store}
}

type createProductRequest struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description" validate:"required"`
	Price       *models.Money `json:"price" validate:"required"`
	ImageURL    string        `json:"imageUrl" validate:"required"`
	Tags        []string      `json:"tags"`
	Stock       int           `json:"stock" validate:"min=0"`
	Category    string        `json:"category"`
	Featured    bool          `json:"featured"`
}

type productResponse struct {
	Message string          `json:"message"`
	Product *models.Product `json:"product"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// GetProducts lists the catalog. A category filter takes precedence over featured=true.
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var (
		products []models.Product
		err      error
	)
	query := r.URL.Query()
	switch {
	case query.Get("category") != "":
		products, err = pc.Store.GetProductsByCategory(ctx, query.Get("category"))
	case query.Get("featured") == "true":
		products, err = pc.Store.GetFeaturedProducts(ctx)
	default:
		products, err = pc.Store.GetProducts(ctx)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	product, err := pc.Store.GetProduct(ctx, id)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Product not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	product := &models.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
		Stock:       req.Stock,
		Category:    req.Category,
		Featured:    req.Featured,
	}
	if product.Category == "" {
		product.Category = models.DefaultCategory
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := pc.Store.CreateProduct(ctx, product); err != nil {
		respondError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, productResponse{
		Message: "Product created successfully",
		Product: product,
	})
}

// UpdateProduct handles updating a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var update models.ProductUpdate
	if err := decodeRequest(w, r, &update); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	product, err := pc.Store.UpdateProduct(ctx, id, update)
	if err != nil {
		respondError(w, r, notFoundAs(err, "Product not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, productResponse{
		Message: "Product updated successfully",
		Product: product,
	})
}

// DeleteProduct handles removing a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := pc.Store.DeleteProduct(ctx, id); err != nil {
		respondError(w, r, notFoundAs(err, "Product not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}
