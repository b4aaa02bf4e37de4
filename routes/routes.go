package routes

import (
	"clinicore/handlers"
	"clinicore/middleware"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all route handlers for registration.
type HandlerBundle struct {
	Auth     *handlers.AuthHandler
	Billing  *handlers.BillingHandler
	Session  *handlers.SessionHandler
	Calendar *handlers.CalendarHandler
	Patient  *handlers.PatientHandler
}

// RegisterRoutes wires every endpoint onto the router. Everything except
// login/registration sits behind the auth middleware.
func RegisterRoutes(r *gin.Engine, b *HandlerBundle) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", b.Auth.Login)
		auth.POST("/register", b.Auth.Register)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		billing := api.Group("/billing")
		{
			billing.POST("/packages", b.Billing.CreatePackage)
			billing.GET("/packages/:id", b.Billing.GetPackage)
			billing.POST("/packages/:id/payments", b.Billing.DistributePayment)
			billing.POST("/packages/:id/cancel", b.Billing.CancelPackage)
			billing.DELETE("/packages/:id", b.Billing.DeletePackage)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("/:id/complete", b.Session.CompleteSession)
			sessions.POST("/:id/cancel", b.Session.CancelSession)
			sessions.POST("/:id/restore", b.Session.RestoreSession)
			sessions.PATCH("/:id/status", b.Session.UpdateSessionStatus)
		}

		schedule := api.Group("/schedule")
		{
			schedule.GET("", b.Calendar.ListEvents)
			schedule.GET("/unpaid", b.Calendar.ListUnpaid)
		}

		patients := api.Group("/patients")
		{
			patients.POST("", b.Patient.CreatePatient)
			patients.GET("", b.Patient.ListPatients)
			patients.GET("/:id", b.Patient.GetPatient)
			patients.PUT("/:id", b.Patient.UpdatePatient)
			patients.DELETE("/:id", b.Patient.DeletePatient)
		}
	}
}
