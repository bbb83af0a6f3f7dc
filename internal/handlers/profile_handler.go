package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AvagyanVache/patraste-backoffice/internal/directory"
	"github.com/AvagyanVache/patraste-backoffice/internal/validation"
)

// RegisterProfileRoutes registers the restaurant profile routes.
func RegisterProfileRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	store := directory.NewStore(cfg.DynamoDBClient, cfg.Tables.Restaurants, cfg.Tables.Customers)

	r.GET("/restaurants/:id/profile", func(c *gin.Context) {
		restaurant, err := store.Restaurant(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_fetch_failed", "detail": err.Error()})
			return
		}
		if restaurant == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "restaurant_not_found"})
			return
		}
		c.JSON(http.StatusOK, restaurant)
	})

	// resolves the restaurant owned by an account uid
	r.GET("/owners/:uid/restaurant", func(c *gin.Context) {
		restaurant, err := store.RestaurantByOwner(c.Request.Context(), c.Param("uid"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "owner_lookup_failed", "detail": err.Error()})
			return
		}
		if restaurant == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "restaurant_not_found"})
			return
		}
		c.JSON(http.StatusOK, restaurant)
	})

	r.PATCH("/restaurants/:id/profile", func(c *gin.Context) {
		ctx := c.Request.Context()
		restaurantID := c.Param("id")

		var req validation.ProfileUpdateRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		upd := directory.ProfileUpdate{
			Name:    req.Name,
			Address: req.Address,
			Phone:   req.Phone,
			LogoURL: req.LogoURL,
			IsOpen:  req.IsOpen,
		}
		if err := store.UpdateProfile(ctx, restaurantID, upd); err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "restaurant_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile_update_failed", "detail": err.Error()})
			return
		}

		restaurant, err := store.Restaurant(ctx, restaurantID)
		if err != nil || restaurant == nil {
			c.JSON(http.StatusOK, gin.H{"restaurant_id": restaurantID})
			return
		}
		c.JSON(http.StatusOK, restaurant)
	})
}
