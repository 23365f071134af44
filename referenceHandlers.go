package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/gin-gonic/gin"
)

// Thin reference-data endpoints for the directories the fuel ledger scopes
// against. The host app owns the full CRUD surface; these exist so the
// service can be seeded and inspected standalone.

func bindOrReject[T any](c *gin.Context) (*T, bool) {
	var input T
	if err := c.ShouldBindJSON(&input); err != nil {
		if fieldErrors := utils.ProcessValidationErrors(err); len(fieldErrors) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fieldErrors})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return nil, false
	}
	return &input, true
}

func optionalIntQuery(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return &v
	}
	return nil
}

func createPlantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindOrReject[models.NewPlant](c)
		if !ok {
			return
		}
		plant, err := models.CreatePlant(c.Request.Context(), input)
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, plant)
	}
}

func listPlantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		plants, err := models.ListPlants(c.Request.Context())
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, plants)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindOrReject[models.NewProduct](c)
		if !ok {
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), input)
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context())
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func createAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindOrReject[models.NewAsset](c)
		if !ok {
			return
		}
		asset, err := models.CreateAsset(c.Request.Context(), input)
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, asset)
	}
}

func listAssetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assets, err := models.ListAssets(c.Request.Context(), optionalIntQuery(c, "plant_id"))
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, assets)
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := bindOrReject[models.NewFuelWarehouse](c)
		if !ok {
			return
		}
		warehouse, err := models.CreateFuelWarehouse(c.Request.Context(), input)
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouses, err := models.ListFuelWarehouses(c.Request.Context(), optionalIntQuery(c, "plant_id"))
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, warehouses)
	}
}

func getWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid warehouse id"})
			return
		}
		warehouse, err := models.GetFuelWarehouse(c.Request.Context(), id)
		if err != nil {
			c.JSON(fuelErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func registerReferenceRoutes(r *gin.Engine) {
	ref := r.Group("/", tenantMiddleware())
	ref.POST("/plants", createPlantHandler())
	ref.GET("/plants", listPlantsHandler())
	ref.POST("/products", createProductHandler())
	ref.GET("/products", listProductsHandler())
	ref.POST("/assets", createAssetHandler())
	ref.GET("/assets", listAssetsHandler())
	ref.POST("/warehouses", createWarehouseHandler())
	ref.GET("/warehouses", listWarehousesHandler())
	ref.GET("/warehouses/:id", getWarehouseHandler())
}
