package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/handlers"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
)

type Deps struct {
	DB               *gorm.DB
	Auth             *auth.Middleware
	AuthHandler      *handlers.AuthHandler
	ProductHandler   *handlers.ProductHandler
	CategoryHandler  *handlers.CategoryHandler
	OrderHandler     *handlers.OrderHandler
	AdminHandler     *handlers.AdminHandler
	ModeratorHandler *handlers.ModeratorHandler
	CurrencyHandler  *handlers.CurrencyHandler
	UploadDir        string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Static("/uploads", d.UploadDir)
	e.Static("/", "public")

	v1 := e.Group("/api/v1")

	// public
	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.GET("/products", d.ProductHandler.GetProducts)
	v1.GET("/products/search", d.ProductHandler.SearchProducts)
	v1.GET("/products/:id", d.ProductHandler.GetProduct)
	v1.GET("/categories", d.CategoryHandler.GetCategories)
	v1.GET("/categories/:id", d.CategoryHandler.GetCategory)
	v1.GET("/categories/:id/products", d.CategoryHandler.GetCategoryProducts)
	v1.GET("/currency/convert", d.CurrencyHandler.Convert)
	v1.GET("/currency/rate", d.CurrencyHandler.Rate)
	v1.GET("/countries", d.CurrencyHandler.ListCountries)

	// authenticated
	authed := v1.Group("", d.Auth.RequireAuth)
	authed.POST("/logout", d.AuthHandler.Logout)
	authed.GET("/user", d.AuthHandler.CurrentUser)
	authed.POST("/change-password", d.AuthHandler.ChangePassword)

	authed.POST("/products", d.ProductHandler.CreateProduct)
	authed.PUT("/products/:id", d.ProductHandler.UpdateProduct)
	authed.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	authed.POST("/products/:id/image", d.ProductHandler.UploadImage)

	authed.POST("/categories", d.CategoryHandler.CreateCategory)
	authed.PUT("/categories/:id", d.CategoryHandler.UpdateCategory)
	authed.DELETE("/categories/:id", d.CategoryHandler.DeleteCategory)

	authed.GET("/orders", d.OrderHandler.GetOrders)
	authed.GET("/orders/my-orders", d.OrderHandler.MyOrders)
	authed.POST("/orders", d.OrderHandler.CreateOrder)
	authed.GET("/orders/:id", d.OrderHandler.GetOrder)
	authed.PUT("/orders/:id", d.OrderHandler.UpdateOrder)
	authed.POST("/orders/:id/cancel", d.OrderHandler.CancelOrder)
	authed.GET("/statistics", d.OrderHandler.Statistics)

	// admin and moderator groups are enumerated independently, there is no
	// role hierarchy.
	admin := v1.Group("/admin", d.Auth.RequireAuth, d.Auth.RequireRole(models.RoleAdmin))
	admin.GET("/users", d.AdminHandler.GetUsers)
	admin.POST("/users", d.AdminHandler.CreateUser)
	admin.PUT("/users/:id", d.AdminHandler.UpdateUser)
	admin.DELETE("/users/:id", d.AdminHandler.DeleteUser)
	admin.GET("/products", d.AdminHandler.AllProducts)
	admin.GET("/orders", d.AdminHandler.AllOrders)
	admin.GET("/stats", d.AdminHandler.Stats)

	moderator := v1.Group("/moderator", d.Auth.RequireAuth, d.Auth.RequireRole(models.RoleModerator))
	moderator.GET("/products/pending", d.ModeratorHandler.PendingProducts)
	moderator.GET("/products/rejected", d.ModeratorHandler.RejectedProducts)
	moderator.PUT("/products/:id/approve", d.ModeratorHandler.ApproveProduct)
	moderator.PUT("/products/:id/reject", d.ModeratorHandler.RejectProduct)
	moderator.GET("/users", d.ModeratorHandler.GetUsers)
	moderator.GET("/stats", d.ModeratorHandler.Stats)
}
