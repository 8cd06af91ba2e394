package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// ProductController serves the product catalog.
type ProductController struct {
	db *gorm.DB
}

// NewProductController creates a new ProductController instance.
func NewProductController(db *gorm.DB) *ProductController {
	return &ProductController{db: db}
}

type productRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Currency    *string `json:"currency"`
	ImageURL    *string `json:"image_url"`
	Category    *string `json:"category"`
	Featured    *bool   `json:"featured"`
	Active      *bool   `json:"active"`
}

// ListProducts returns active products, optionally filtered by category or featured flag.
func (p *ProductController) ListProducts(ctx *gin.Context) {
	category := strings.TrimSpace(ctx.Query("category"))
	featured, _ := strconv.ParseBool(ctx.Query("featured"))

	key := utils.CacheKey("products", "list", "cat="+category, "featured="+strconv.FormatBool(featured))
	var cached []models.Product
	if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
		utils.Success(ctx, gin.H{"items": cached})
		return
	}

	query := p.db.Where("active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if featured {
		query = query.Where("featured = ?", true)
	}

	products := []models.Product{}
	if err := query.Order("featured DESC").Order("name ASC").Find(&products).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to list products")
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, products, 5*time.Minute)
	utils.Success(ctx, gin.H{"items": products})
}

// GetProduct returns one active product by slug.
func (p *ProductController) GetProduct(ctx *gin.Context) {
	var product models.Product
	if err := p.db.Where("slug = ? AND active = ?", strings.TrimSpace(ctx.Param("slug")), true).First(&product).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40470, "product not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to load product")
		return
	}
	utils.Success(ctx, gin.H{"product": product})
}

// CreateProduct adds a catalog entry. Admin only.
func (p *ProductController) CreateProduct(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Name == nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	product := models.Product{Currency: "USD", Active: true}
	if msg := applyProduct(&product, req); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40071, msg)
		return
	}
	if product.Slug == "" {
		product.Slug = utils.Slugify(product.Name)
	}

	var taken int64
	p.db.Model(&models.Product{}).Where("slug = ?", product.Slug).Count(&taken)
	if taken > 0 {
		utils.Error(ctx, http.StatusConflict, 40970, "product slug already exists")
		return
	}

	if err := p.db.Create(&product).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to create product")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("products"))
	utils.Created(ctx, gin.H{"product": product})
}

// UpdateProduct edits a catalog entry. Admin only.
func (p *ProductController) UpdateProduct(ctx *gin.Context) {
	product, ok := p.loadByID(ctx)
	if !ok {
		return
	}

	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}
	if msg := applyProduct(&product, req); msg != "" {
		utils.Error(ctx, http.StatusBadRequest, 40071, msg)
		return
	}

	var taken int64
	p.db.Model(&models.Product{}).Where("slug = ? AND id <> ?", product.Slug, product.ID).Count(&taken)
	if taken > 0 {
		utils.Error(ctx, http.StatusConflict, 40970, "product slug already exists")
		return
	}

	if err := p.db.Save(&product).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to update product")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("products"))
	utils.Success(ctx, gin.H{"product": product})
}

// DeleteProduct removes a catalog entry. Admin only.
func (p *ProductController) DeleteProduct(ctx *gin.Context) {
	product, ok := p.loadByID(ctx)
	if !ok {
		return
	}
	if err := p.db.Delete(&models.Product{}, product.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50074, "failed to delete product")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("products"))
	utils.Success(ctx, gin.H{"deleted": true})
}

func (p *ProductController) loadByID(ctx *gin.Context) (models.Product, bool) {
	var product models.Product
	id, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid product id")
		return product, false
	}
	if err := p.db.First(&product, id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40470, "product not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to load product")
		}
		return product, false
	}
	return product, true
}

// applyProduct copies the provided fields and returns a validation message on bad input.
func applyProduct(product *models.Product, req productRequest) string {
	if req.Name != nil {
		name := utils.SanitizeText(*req.Name)
		if name == "" {
			return "name cannot be empty"
		}
		product.Name = utils.TruncateRunes(name, 255)
	}
	if req.Slug != nil {
		product.Slug = utils.Slugify(*req.Slug)
	}
	if req.Description != nil {
		product.Description = utils.Sanitize(*req.Description)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return "price cannot be negative"
		}
		product.PriceCents = *req.PriceCents
	}
	if req.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if len(cur) != 3 {
			return "currency must be a 3 letter code"
		}
		product.Currency = cur
	}
	if req.ImageURL != nil {
		product.ImageURL = utils.TruncateRunes(strings.TrimSpace(*req.ImageURL), 512)
	}
	if req.Category != nil {
		product.Category = utils.TruncateRunes(utils.SanitizeText(*req.Category), 64)
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	return ""
}
