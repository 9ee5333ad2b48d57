package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/orders"
	"storefront/internal/payment"
	"storefront/internal/settlement"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("⚠️ cart index warning: %v", err)
	}
	if err := database.EnsureCouponIndexes(db); err != nil {
		log.Printf("⚠️ coupon index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("⚠️ order index warning: %v", err)
	}
	if err := database.EnsurePaymentIndexes(db); err != nil {
		log.Printf("⚠️ payment index warning: %v", err)
	}

	var cartCache cart.Cache
	if config.AppEnv.RedisAddr != "" {
		cartCache = cart.NewRedisCache(redis.NewClient(&redis.Options{
			Addr: config.AppEnv.RedisAddr,
		}))
		log.Println("Redis cart cache enabled at:", config.AppEnv.RedisAddr)
	}

	products := catalog.NewMongoCatalog(db)
	coupons := coupon.NewStore(db)
	carts := cart.NewStore(
		cart.NewMongoRepository(db),
		products,
		coupons,
		cartCache,
		config.AppEnv.MinCheckoutAmount,
	)

	orderRepo := orders.NewMongoRepository(db)
	orderFactory := orders.NewFactory(orderRepo)

	paymentRepo := payment.NewMongoRepository(db)
	gatewayClient := gateway.NewHTTPClient(
		config.AppEnv.GatewayBaseURL,
		config.AppEnv.GatewayMerchantID,
		config.AppEnv.GatewayTimeout,
	)
	settler := settlement.NewCoordinator(
		settlement.NewMongoTxnRunner(client),
		paymentRepo,
		orderRepo,
		carts,
		products,
		coupons,
	)
	payments := payment.NewOrchestrator(
		paymentRepo,
		orderRepo,
		gatewayClient,
		settler,
		config.AppEnv.GatewayName,
		config.AppEnv.CallbackURL,
	)

	r := gin.Default()

	r.GET("/payment/callback", handlers.PaymentCallback(payments, orderRepo))

	user := r.Group("/")
	user.Use(middleware.UserAuth(config.AppEnv.JWTSecret))
	{
		user.GET("/cart", handlers.GetCart(carts))
		user.DELETE("/cart", handlers.ClearCart(carts))
		user.POST("/cart/items", handlers.AddCartItem(carts))
		user.PUT("/cart/items/:productId", handlers.UpdateCartItem(carts))
		user.DELETE("/cart/items/:productId", handlers.RemoveCartItem(carts))
		user.POST("/cart/coupon", handlers.ApplyCoupon(carts))

		user.POST("/checkout", handlers.Checkout(db, carts, orderFactory, payments))

		user.GET("/orders", handlers.GetMyOrders(orderRepo))
		user.GET("/orders/:trackingCode", handlers.GetOrderByTrackingCode(orderRepo))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(orderFactory))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
