package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Settings       *handlers.SettingsHandler
	Contacts       *handlers.ContactsHandler
	Teams          *handlers.TeamsHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	Notifications  *handlers.NotificationsHandler
	Appointments   *handlers.AppointmentsHandler
	Jobs           *handlers.JobsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	mw := cfg.AuthMiddleware
	can := mw.RequirePermission
	protected := api.Group("", mw.Handle)

	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Post("/auth/password/change", cfg.Auth.ChangePassword)

	settings := protected.Group("/settings")
	settings.Get("/tenant", cfg.Settings.GetTenant)
	settings.Patch("/tenant", can(domain.PermSettingsManage), cfg.Settings.UpdateTenant)
	settings.Get("/business-hours", cfg.Settings.GetBusinessHours)
	settings.Put("/business-hours", can(domain.PermSettingsManage), cfg.Settings.UpdateBusinessHours)
	settings.Get("/appointments", cfg.Settings.GetAppointmentSettings)
	settings.Put("/appointments", can(domain.PermSettingsManage), cfg.Settings.UpdateAppointmentSettings)

	users := protected.Group("/users")
	users.Get("/", can(domain.PermTicketsView), cfg.Users.ListUsers)
	users.Post("/", can(domain.PermUsersManage), cfg.Users.CreateUser)
	users.Get("/:id", can(domain.PermTicketsView), cfg.Users.GetUser)
	users.Patch("/:id", can(domain.PermUsersManage), cfg.Users.UpdateUser)
	users.Delete("/:id", can(domain.PermUsersManage), cfg.Users.DeleteUser)
	users.Put("/:id/roles", can(domain.PermUsersManage), cfg.Users.SetUserRoles)
	users.Get("/:id/working-hours", can(domain.PermAppointmentsView), cfg.Appointments.GetWorkingHours)
	users.Put("/:id/working-hours", can(domain.PermAppointmentsManage), cfg.Appointments.SetWorkingHours)

	roles := protected.Group("/roles", can(domain.PermRolesManage))
	roles.Get("/permissions", cfg.Users.ListPermissions)
	roles.Get("/", cfg.Users.ListRoles)
	roles.Post("/", cfg.Users.CreateRole)
	roles.Get("/:id", cfg.Users.GetRole)
	roles.Patch("/:id", cfg.Users.UpdateRole)
	roles.Delete("/:id", cfg.Users.DeleteRole)

	apiKeys := protected.Group("/api-keys", can(domain.PermAPIKeysManage))
	apiKeys.Get("/", cfg.Users.ListAPIKeys)
	apiKeys.Post("/", cfg.Users.CreateAPIKey)
	apiKeys.Delete("/:id", cfg.Users.RevokeAPIKey)

	contacts := protected.Group("/contacts")
	contacts.Get("/", can(domain.PermContactsView), cfg.Contacts.ListContacts)
	contacts.Post("/", can(domain.PermContactsManage), cfg.Contacts.CreateContact)
	contacts.Get("/:id", can(domain.PermContactsView), cfg.Contacts.GetContact)
	contacts.Put("/:id", can(domain.PermContactsManage), cfg.Contacts.UpdateContact)
	contacts.Delete("/:id", can(domain.PermContactsManage), cfg.Contacts.DeleteContact)

	teams := protected.Group("/teams")
	teams.Get("/", can(domain.PermTicketsView), cfg.Teams.ListTeams)
	teams.Post("/", can(domain.PermTeamsManage), cfg.Teams.CreateTeam)
	teams.Get("/:id", can(domain.PermTicketsView), cfg.Teams.GetTeam)
	teams.Patch("/:id", can(domain.PermTeamsManage), cfg.Teams.UpdateTeam)
	teams.Delete("/:id", can(domain.PermTeamsManage), cfg.Teams.DeleteTeam)
	teams.Get("/:id/members", can(domain.PermTicketsView), cfg.Teams.ListMembers)
	teams.Post("/:id/members", can(domain.PermTeamsManage), cfg.Teams.AddMember)
	teams.Patch("/:id/members/:userId", can(domain.PermTeamsManage), cfg.Teams.UpdateMember)
	teams.Delete("/:id/members/:userId", can(domain.PermTeamsManage), cfg.Teams.RemoveMember)

	tickets := protected.Group("/tickets")
	tickets.Get("/", can(domain.PermTicketsView), cfg.Tickets.ListTickets)
	tickets.Post("/", can(domain.PermTicketsManage), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", can(domain.PermTicketsView), cfg.Tickets.GetTicket)
	tickets.Patch("/:id", can(domain.PermTicketsManage), cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", can(domain.PermTicketsManage), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/status", can(domain.PermTicketsManage), cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/priority", can(domain.PermTicketsManage), cfg.Tickets.ChangePriority)
	tickets.Post("/:id/first-response", can(domain.PermTicketsManage), cfg.Tickets.RecordFirstResponse)
	tickets.Post("/:id/assign", can(domain.PermTicketsManage), cfg.Tickets.Assign)
	tickets.Post("/:id/team", can(domain.PermTicketsManage), cfg.Tickets.ChangeTeam)
	tickets.Post("/:id/auto-assign", can(domain.PermTicketsManage), cfg.Tickets.AutoAssign)
	tickets.Get("/:id/history", can(domain.PermTicketsView), cfg.Tickets.ListHistory)
	tickets.Get("/:id/sla", can(domain.PermTicketsView), cfg.Tickets.GetSLA)

	sla := protected.Group("/sla", can(domain.PermSLAManage))
	sla.Get("/rules", cfg.SLA.ListRules)
	sla.Post("/rules", cfg.SLA.CreateRule)
	sla.Get("/rules/:id", cfg.SLA.GetRule)
	sla.Put("/rules/:id", cfg.SLA.UpdateRule)
	sla.Delete("/rules/:id", cfg.SLA.DeleteRule)
	sla.Post("/evaluate", cfg.SLA.Evaluate)

	notifications := protected.Group("/notifications", can(domain.PermNotificationsView))
	notifications.Get("/", cfg.Notifications.ListNotifications)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	templates := protected.Group("/email-templates", can(domain.PermSettingsManage))
	templates.Get("/", cfg.Notifications.ListTemplates)
	templates.Get("/:key", cfg.Notifications.GetTemplate)
	templates.Put("/:key", cfg.Notifications.PutTemplate)
	templates.Delete("/:key", cfg.Notifications.DeleteTemplate)
	templates.Post("/:key/preview", cfg.Notifications.PreviewTemplate)

	appointments := protected.Group("/appointments")
	appointments.Get("/availability", can(domain.PermAppointmentsView), cfg.Appointments.Availability)
	appointments.Get("/", can(domain.PermAppointmentsView), cfg.Appointments.ListAppointments)
	appointments.Post("/", can(domain.PermAppointmentsManage), cfg.Appointments.Book)
	appointments.Get("/:id", can(domain.PermAppointmentsView), cfg.Appointments.GetAppointment)
	appointments.Post("/:id/reschedule", can(domain.PermAppointmentsManage), cfg.Appointments.Reschedule)
	appointments.Post("/:id/cancel", can(domain.PermAppointmentsManage), cfg.Appointments.Cancel)
	appointments.Post("/:id/complete", can(domain.PermAppointmentsManage), cfg.Appointments.Complete)

	exports := protected.Group("/exports", can(domain.PermExportsManage))
	exports.Get("/", cfg.Jobs.ListExports)
	exports.Post("/", cfg.Jobs.CreateExport)
	exports.Get("/:id", cfg.Jobs.GetExport)
	exports.Get("/:id/download", cfg.Jobs.DownloadExport)

	imports := protected.Group("/imports", can(domain.PermImportsManage))
	imports.Get("/", cfg.Jobs.ListImports)
	imports.Post("/", cfg.Jobs.CreateImport)
	imports.Get("/:id", cfg.Jobs.GetImport)
}
