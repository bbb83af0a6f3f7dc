package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AvagyanVache/patraste-backoffice/internal/menu"
	"github.com/AvagyanVache/patraste-backoffice/internal/validation"
)

// RegisterMenuRoutes registers the menu CRUD routes.
func RegisterMenuRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	store := menu.NewStore(cfg.DynamoDBClient, cfg.Tables.MenuItems)

	r.GET("/restaurants/:id/menu", func(c *gin.Context) {
		items, err := store.List(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_list_failed", "detail": err.Error()})
			return
		}
		if items == nil {
			items = []menu.Item{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	r.POST("/restaurants/:id/menu", func(c *gin.Context) {
		var req validation.MenuItemRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		item, err := store.Put(c.Request.Context(), menu.Item{
			RestaurantID: c.Param("id"),
			Name:         req.Name,
			Description:  req.Description,
			Price:        req.Price,
			PrepTime:     req.PrepTime,
			Available:    req.Available,
			ImageURL:     req.ImageURL,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_create_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, item)
	})

	r.PUT("/restaurants/:id/menu/:itemID", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.MenuItemRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		existing, err := store.Get(ctx, c.Param("id"), c.Param("itemID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_update_failed", "detail": err.Error()})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "menu_item_not_found"})
			return
		}

		existing.Name = req.Name
		existing.Description = req.Description
		existing.Price = req.Price
		existing.PrepTime = req.PrepTime
		existing.Available = req.Available
		existing.ImageURL = req.ImageURL

		item, err := store.Put(ctx, *existing)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_update_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	})

	r.DELETE("/restaurants/:id/menu/:itemID", func(c *gin.Context) {
		err := store.Delete(c.Request.Context(), c.Param("id"), c.Param("itemID"))
		if err != nil {
			if errors.Is(err, menu.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "menu_item_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_delete_failed", "detail": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.PUT("/restaurants/:id/menu", func(c *gin.Context) {
		var req validation.MenuReplaceRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		items := make([]menu.Item, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, menu.Item{
				ItemID:      it.ItemID,
				Name:        it.Name,
				Description: it.Description,
				Price:       it.Price,
				PrepTime:    it.PrepTime,
				Available:   it.Available,
				ImageURL:    it.ImageURL,
			})
		}

		if err := store.Replace(c.Request.Context(), c.Param("id"), items); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "menu_replace_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})
}
