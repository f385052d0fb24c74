package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/middleware"
	"github.com/memorialqr/memorial-qr-api/services"
)

// Dependencies are the services the HTTP layer is built from. They are constructed once in
// main and shared by every request.
type Dependencies struct {
	Catalog   *services.Catalog
	Orders    *services.OrderStore
	Checkout  *services.CheckoutInitiator
	SquarePay *services.SquareCheckout
	Webhooks  *services.WebhookReceiver
	Memorials *services.MemorialProvisioner
	Content   *services.ContentService
	Referrals *services.ReferralService
	Users     *services.UserService
}

// RegisterRoutes mounts every API route under group. auth validates the caller's token;
// tests pass a stub that sets the same context keys.
func RegisterRoutes(group *gin.RouterGroup, deps *Dependencies, auth gin.HandlerFunc) {
	orders := NewOrderController(deps.Orders, deps.Memorials)
	checkout := NewCheckoutController(deps.Catalog, deps.Checkout, deps.SquarePay)
	webhooks := NewWebhookController(deps.Webhooks)
	memorials := NewMemorialController(deps.Memorials, deps.Content)
	content := NewContentController(deps.Content)
	referrals := NewReferralController(deps.Referrals)
	users := NewUserController(deps.Users)

	// Public
	group.GET("/catalog", checkout.GetCatalog)
	group.POST("/checkout", checkout.CreateCheckout)
	group.POST("/checkout/square/payment", checkout.SquarePayment)
	group.POST("/checkout/square/subscription", checkout.SquareSubscription)
	group.POST("/orders", orders.CreateOrder)
	group.GET("/orders/:orderNumber", orders.GetOrder)
	group.POST("/webhooks/stripe", webhooks.StripeWebhook)
	group.POST("/webhooks/square", webhooks.SquareWebhook)

	// Memorial pages and visitor contributions
	memorial := group.Group("/memorials/:identifier")
	memorial.GET("", memorials.GetMemorial)
	for _, kind := range []services.ContentKind{services.ContentPhotos, services.ContentVideos, services.ContentMusic} {
		memorial.POST("/"+string(kind), content.UploadMedia(kind))
	}
	memorial.POST("/"+string(services.ContentStories), content.AddStory)
	memorial.POST("/"+string(services.ContentMessages), content.AddMessage)
	memorial.POST("/"+string(services.ContentMilestones), content.AddMilestone)
	memorial.POST("/"+string(services.ContentFamilyMembers), content.AddFamilyMember)
	for _, kind := range []services.ContentKind{
		services.ContentPhotos, services.ContentVideos, services.ContentMusic, services.ContentStories,
		services.ContentMessages, services.ContentMilestones, services.ContentFamilyMembers,
	} {
		memorial.GET("/"+string(kind), content.ListContent(kind))
		memorial.DELETE("/"+string(kind)+"/:id", auth, content.DeleteContent(kind))
	}

	// Owner
	memorial.GET("/dashboard", auth, memorials.GetDashboard)
	memorial.PUT("", auth, memorials.UpdateMemorial)
	memorial.DELETE("", auth, memorials.DeleteMemorial)
	memorial.POST("/claim", auth, memorials.ClaimMemorial)
	memorial.POST("/qrcode", auth, memorials.RegenerateQRCode)
	memorial.PATCH("/stories/:id/approve", auth, content.ApproveStory)

	// Authenticated
	protected := group.Group("", auth)
	protected.POST("/memorials", memorials.CreateMemorial)
	protected.GET("/memorials", memorials.ListMyMemorials)
	protected.GET("/referrals/code", referrals.GetMyCode)
	protected.POST("/referrals/apply", referrals.ApplyCode)
	protected.GET("/referrals/rewards", referrals.ListMyRewards)
	protected.POST("/users", users.CreateUser)
	protected.GET("/users/me", users.GetMyProfile)
	protected.PUT("/users/me", users.UpdateMyProfile)

	// Admin
	admin := group.Group("/admin", auth, middleware.RequireScope(middleware.ScopeAdminOrders))
	admin.PATCH("/orders/:id/status", orders.UpdateOrderStatus)
	admin.POST("/orders/:id/memorial", orders.LinkMemorial)
}
