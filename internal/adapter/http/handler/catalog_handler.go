package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// CatalogHandler handles product endpoints.
type CatalogHandler struct {
	catalogSvc ports.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogSvc ports.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// List handles GET /api/v1/products. Only active products are listed.
func (h *CatalogHandler) List(c *gin.Context) {
	var q dto.ProductQuery
	if !bindQuery(c, &q) {
		return
	}
	h.list(c, ports.ProductFilter{
		Category:    domain.ProductCategory(q.Category),
		Status:      domain.ProductStatusActive,
		Search:      q.Search,
		PageRequest: pageRequest(q.PageQuery),
	})
}

// Get handles GET /api/v1/products/:id.
func (h *CatalogHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "product")
	if !ok {
		return
	}
	product, err := h.catalogSvc.GetProduct(c.Request.Context(), id, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, product)
}

// AdminList handles GET /api/v1/admin/products, including inactive entries.
func (h *CatalogHandler) AdminList(c *gin.Context) {
	var q dto.ProductQuery
	if !bindQuery(c, &q) {
		return
	}
	h.list(c, ports.ProductFilter{
		Category:    domain.ProductCategory(q.Category),
		Status:      domain.ProductStatus(q.Status),
		Search:      q.Search,
		PageRequest: pageRequest(q.PageQuery),
	})
}

func (h *CatalogHandler) list(c *gin.Context, filter ports.ProductFilter) {
	page, err := h.catalogSvc.ListProducts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit))
}

// Create handles POST /api/v1/admin/products.
func (h *CatalogHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalogSvc.CreateProduct(c.Request.Context(), toProductInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Product created", product)
}

// Update handles PUT /api/v1/admin/products/:id.
func (h *CatalogHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id", "product")
	if !ok {
		return
	}
	var req dto.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalogSvc.UpdateProduct(c.Request.Context(), id, toProductInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Product updated", product)
}

// Delete handles DELETE /api/v1/admin/products/:id. Products are deactivated,
// never removed, so past orders keep their reference.
func (h *CatalogHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id", "product")
	if !ok {
		return
	}
	if err := h.catalogSvc.DeactivateProduct(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Product deactivated", nil)
}

func toProductInput(req dto.ProductRequest) ports.ProductInput {
	autoDelivery := true
	if req.AutoDelivery != nil {
		autoDelivery = *req.AutoDelivery
	}
	return ports.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Category:     domain.ProductCategory(req.Category),
		GameName:     req.GameName,
		GameID:       req.GameID,
		Price:        req.Price,
		Currency:     req.Currency,
		Stock:        req.Stock,
		Image:        req.Image,
		AutoDelivery: autoDelivery,
		DeliveryTime: req.DeliveryTime,
		Status:       domain.ProductStatus(req.Status),
	}
}
