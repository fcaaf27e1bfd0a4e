package handlers

import (
	"competition-ledger-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes registers the event lifecycle and enrollment surface.
func SetupEventRoutes(app *fiber.App, events *services.EventService, enrollments *services.EnrollmentService) {
	app.Get("/events/open", events.ListOpenHandler)
	app.Get("/events/:id", events.GetHandler)

	app.Post("/events", events.CreateHandler)
	app.Patch("/events/:id/status", events.UpdateStatusHandler)
	app.Post("/events/:id/sessions", events.AddSessionHandler)

	app.Post("/events/:id/enroll", enrollments.EnrollHandler)
	app.Post("/events/:id/withdraw", enrollments.WithdrawHandler)
	app.Get("/events/:id/enrollments", enrollments.ListHandler)
}

// SetupBookingRoutes registers session booking and attendance.
func SetupBookingRoutes(app *fiber.App, bookings *services.BookingService) {
	app.Post("/sessions/:id/bookings", bookings.BookHandler)
	app.Get("/sessions/:id/waitlist", bookings.WaitlistHandler)
	app.Post("/bookings/:id/cancel", bookings.CancelHandler)
	app.Post("/bookings/:id/attendance", bookings.AttendanceHandler)
}

// SetupRewardRoutes registers outcomes, rewards and the read surface.
func SetupRewardRoutes(app *fiber.App, outcomes *services.OutcomeService, ledger *services.LedgerService, skills *services.SkillService) {
	app.Post("/events/:id/outcomes", outcomes.RecordOutcomeHandler)
	app.Post("/events/:id/rewards/distribute", outcomes.DistributeHandler)

	app.Get("/participants/:id/balance", ledger.BalanceHandler)
	app.Get("/participants/:id/skill-profile", skills.ProfileHandler)
	app.Get("/participants/:id/badges", outcomes.BadgesHandler)
}

// SetupAdminRoutes registers operational endpoints.
func SetupAdminRoutes(app *fiber.App, audit *services.AuditService) {
	admin := app.Group("/admin")
	admin.Post("/audit/run", audit.RunHandler)
}
