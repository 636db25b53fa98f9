// categories.go implements admin CRUD for downtime categories. Categories
// nest exactly one level: a parent category cannot itself have a parent.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
)

// CategoryHandlers handles downtime category management endpoints
type CategoryHandlers struct {
	db         *sqlx.DB
	categories *repositories.CategoryRepository
	audits     *repositories.AuditRepository
}

// NewCategoryHandlers creates a new CategoryHandlers instance
func NewCategoryHandlers(db *sqlx.DB) *CategoryHandlers {
	return &CategoryHandlers{
		db:         db,
		categories: repositories.NewCategoryRepository(db),
		audits:     repositories.NewAuditRepository(db),
	}
}

// CategoryRequest is the payload for creating or updating a category
type CategoryRequest struct {
	Name     string `json:"name" binding:"required"`
	Code     string `json:"code" binding:"required"`
	ParentID *int   `json:"parent_id"`
}

// categoryConflict maps the category invariant violations to client errors.
// Returns false when the error is not one of them.
func categoryConflict(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, repositories.ErrCategoryDepth):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Categories nest one level deep; the parent must be a top-level category"})
	case errors.Is(err, repositories.ErrParentInactive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Parent category is inactive or does not exist"})
	case errors.Is(err, repositories.ErrHasActiveChildren):
		c.JSON(http.StatusConflict, gin.H{"error": "Category still has active sub-categories"})
	default:
		return false
	}
	return true
}

// ListCategoriesHandler lists categories including deactivated ones
// GET /api/v1/admin/categories
func (h *CategoryHandlers) ListCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := h.categories.List(c.Request.Context(), includeInactive(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// GetCategoryHandler retrieves a category by ID
// GET /api/v1/admin/categories/:id
func (h *CategoryHandlers) GetCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		category, err := h.categories.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve category"})
			return
		}
		if category == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"category": category})
	}
}

// CreateCategoryHandler creates a category, optionally under a top-level parent
// POST /api/v1/admin/categories
func (h *CategoryHandlers) CreateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		category := &models.Category{
			Name:      req.Name,
			Code:      req.Code,
			ParentID:  req.ParentID,
			CreatedBy: user.Username,
		}

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			if err := h.categories.WithTx(tx).Create(c.Request.Context(), category); err != nil {
				return nil, err
			}
			cs := audit.NewChangeSet("category", category.ID, models.AuditActionCreate, middleware.OriginFrom(c))
			cs.Compare("name", nil, category.Name)
			cs.Compare("code", nil, category.Code)
			cs.Compare("parent_id", nil, category.ParentID)
			return cs, nil
		})
		if err != nil {
			if !categoryConflict(c, err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{"category": category})
	}
}

// UpdateCategoryHandler updates a category's name, code, and parent
// PUT /api/v1/admin/categories/:id
func (h *CategoryHandlers) UpdateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		existing, err := h.categories.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve category"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("category", id, models.AuditActionUpdate, middleware.OriginFrom(c))
		cs.Compare("name", existing.Name, req.Name)
		cs.Compare("code", existing.Code, req.Code)
		cs.Compare("parent_id", existing.ParentID, req.ParentID)
		if cs.Empty() {
			c.JSON(http.StatusOK, gin.H{"category": existing})
			return
		}

		err = inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.categories.WithTx(tx).Update(c.Request.Context(), id, req.Name, req.Code, req.ParentID, user.Username)
		})
		if err != nil {
			if !categoryConflict(c, err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
			}
			return
		}

		existing.Name = req.Name
		existing.Code = req.Code
		existing.ParentID = req.ParentID
		c.JSON(http.StatusOK, gin.H{"category": existing})
	}
}

// DeactivateCategoryHandler soft-deletes a category. Refused while active
// sub-categories remain.
// DELETE /api/v1/admin/categories/:id
func (h *CategoryHandlers) DeactivateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("category", id, models.AuditActionDeactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", true, false)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.categories.WithTx(tx).Deactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			if !categoryConflict(c, err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate category"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Category deactivated"})
	}
}

// ReactivateCategoryHandler restores a deactivated category. A sub-category
// cannot come back while its parent is inactive.
// POST /api/v1/admin/categories/:id/reactivate
func (h *CategoryHandlers) ReactivateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		cs := audit.NewChangeSet("category", id, models.AuditActionReactivate, middleware.OriginFrom(c))
		cs.Compare("is_active", false, true)

		err := inTx(c.Request.Context(), h.db, h.audits, func(tx *sqlx.Tx) (*audit.ChangeSet, error) {
			return cs, h.categories.WithTx(tx).Reactivate(c.Request.Context(), id, user.Username)
		})
		if err != nil {
			if errors.Is(err, repositories.ErrParentInactive) {
				c.JSON(http.StatusConflict, gin.H{"error": "Reactivate the parent category first"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate category"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Category reactivated"})
	}
}
