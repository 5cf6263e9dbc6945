package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"marketplace-api/internal/handlers"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/middleware"
	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

// Dependencies carries everything the HTTP surface needs. Services share the
// repository.Store built in main.
type Dependencies struct {
	Users      *services.UserService
	Stores     *services.StoreService
	Products   *services.ProductService
	Categories *services.CategoryService
	Carts      *services.CartService
	Resets     *services.PasswordResetService

	Verifier *services.CredentialVerifier
	Resolver middleware.Resolver

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(deps Dependencies, logger zerolog.Logger) *mux.Router {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Verifier, deps.Resets, logger)
	userHandler := handlers.NewUserHandler(deps.Users, logger)
	storeHandler := handlers.NewStoreHandler(deps.Stores, logger)
	productHandler := handlers.NewProductHandler(deps.Products, logger)
	categoryHandler := handlers.NewCategoryHandler(deps.Categories, logger)
	cartHandler := handlers.NewCartHandler(deps.Carts, logger)

	authn := middleware.Authenticate(deps.Verifier, deps.Resolver, deps.Metrics, logger)

	// protect wraps h so only authenticated callers holding one of roles
	// reach it. No roles means any authenticated caller.
	protect := func(h http.HandlerFunc, roles ...models.Role) http.Handler {
		var inner http.Handler = h
		if len(roles) > 0 {
			inner = middleware.RequireRole(deps.Metrics, roles...)(inner)
		}
		return authn(inner)
	}

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(deps.RateLimitRPS), deps.RateLimitBurst)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(deps.Metrics, logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestValidation())

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	auth.HandleFunc("/recover-token", authHandler.RecoverToken).Methods("POST")
	auth.HandleFunc("/new-password", authHandler.NewPassword).Methods("POST")
	auth.Handle("/info", protect(authHandler.Info)).Methods("GET")

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/signup", userHandler.Signup).Methods("POST")
	users.Handle("", protect(userHandler.GetUsers, models.RoleAdmin)).Methods("GET")
	users.Handle("", protect(userHandler.CreateUser, models.RoleAdmin)).Methods("POST")
	users.Handle("/{id:[0-9]+}", protect(userHandler.GetUser, models.RoleAdmin)).Methods("GET")
	users.Handle("/{id:[0-9]+}", protect(userHandler.UpdateUser, models.RoleAdmin)).Methods("PUT")
	users.Handle("/{id:[0-9]+}", protect(userHandler.DeleteUser, models.RoleAdmin)).Methods("DELETE")

	stores := api.PathPrefix("/stores").Subrouter()
	stores.HandleFunc("/home", storeHandler.Home).Methods("GET")
	stores.Handle("/me", protect(storeHandler.MyStore, models.RoleSeller, models.RoleAdmin)).Methods("GET")
	stores.Handle("", protect(storeHandler.CreateStore, models.RoleAdmin)).Methods("POST")
	stores.Handle("/{id:[0-9]+}", protect(storeHandler.DeleteStore, models.RoleAdmin)).Methods("DELETE")

	products := api.PathPrefix("/products").Subrouter()
	products.HandleFunc("", productHandler.GetProducts).Methods("GET")
	products.HandleFunc("/search", productHandler.Search).Methods("GET")
	products.HandleFunc("/category/{categoryId:[0-9]+}", productHandler.GetByCategory).Methods("GET")
	products.Handle("/store", protect(productHandler.GetMyProducts, models.RoleSeller, models.RoleAdmin)).Methods("GET")
	products.HandleFunc("/{id:[0-9]+}", productHandler.GetProduct).Methods("GET")
	products.Handle("", protect(productHandler.CreateProduct, models.RoleSeller, models.RoleAdmin)).Methods("POST")
	products.Handle("/{id:[0-9]+}", protect(productHandler.UpdateProduct, models.RoleSeller, models.RoleAdmin)).Methods("PUT")
	products.Handle("/{id:[0-9]+}", protect(productHandler.DeleteProduct, models.RoleSeller, models.RoleAdmin)).Methods("DELETE")

	categories := api.PathPrefix("/categories").Subrouter()
	categories.HandleFunc("", categoryHandler.GetCategories).Methods("GET")
	categories.HandleFunc("/{id:[0-9]+}", categoryHandler.GetCategory).Methods("GET")
	categories.Handle("", protect(categoryHandler.CreateCategory, models.RoleAdmin)).Methods("POST")
	categories.Handle("/{id:[0-9]+}", protect(categoryHandler.UpdateCategory, models.RoleAdmin)).Methods("PUT")
	categories.Handle("/{id:[0-9]+}", protect(categoryHandler.DeleteCategory, models.RoleAdmin)).Methods("DELETE")

	cart := api.PathPrefix("/cart").Subrouter()
	cart.Handle("", protect(cartHandler.GetCart, models.RoleClient)).Methods("GET")
	cart.Handle("", protect(cartHandler.UpdateCart, models.RoleClient)).Methods("POST")
	cart.Handle("/items/{productId:[0-9]+}", protect(cartHandler.RemoveItem, models.RoleClient)).Methods("DELETE")
	cart.Handle("/{userId:[0-9]+}", protect(cartHandler.GetUserCart, models.RoleClient, models.RoleAdmin)).Methods("GET")

	r.Handle("/metrics", metrics.Handler(deps.Gatherer)).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}
