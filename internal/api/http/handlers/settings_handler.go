package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// SettingsHandler exposes tenant level configuration.
type SettingsHandler struct {
	tenants      *service.TenantService
	appointments *service.AppointmentService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(tenants *service.TenantService, appointments *service.AppointmentService) *SettingsHandler {
	return &SettingsHandler{tenants: tenants, appointments: appointments}
}

// GetTenant GET /settings/tenant.
func (h *SettingsHandler) GetTenant(c *fiber.Ctx) error {
	tenant, err := h.tenants.GetTenant(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tenantResponse(tenant)})
}

// UpdateTenant PATCH /settings/tenant.
func (h *SettingsHandler) UpdateTenant(c *fiber.Ctx) error {
	var req dto.UpdateTenantRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tenant, err := h.tenants.UpdateTenant(c.UserContext(), actor(c), service.UpdateTenantInput{
		Name:     req.Name,
		TimeZone: req.TimeZone,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tenantResponse(tenant)})
}

// GetBusinessHours GET /settings/business-hours.
func (h *SettingsHandler) GetBusinessHours(c *fiber.Ctx) error {
	bh, err := h.tenants.GetBusinessHours(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": businessHoursResponse(bh)})
}

// UpdateBusinessHours PUT /settings/business-hours.
func (h *SettingsHandler) UpdateBusinessHours(c *fiber.Ctx) error {
	var req dto.BusinessHoursRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hours := domain.BusinessHours{TimeZone: req.TimeZone}
	for i, day := range req.Days {
		hours.Days[i] = domain.DaySchedule{Open: day.Open, Start: day.Start, End: day.End}
	}
	for _, holiday := range req.Holidays {
		// validated by the datetime tag
		date, _ := time.Parse(dateLayout, holiday.Date)
		hours.Holidays = append(hours.Holidays, domain.Holiday{Name: holiday.Name, Date: date})
	}
	bh, err := h.tenants.UpdateBusinessHours(c.UserContext(), actor(c), hours)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": businessHoursResponse(bh)})
}

// GetAppointmentSettings GET /settings/appointments.
func (h *SettingsHandler) GetAppointmentSettings(c *fiber.Ctx) error {
	settings, err := h.appointments.GetSettings(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentSettingsResponse(settings)})
}

// UpdateAppointmentSettings PUT /settings/appointments.
func (h *SettingsHandler) UpdateAppointmentSettings(c *fiber.Ctx) error {
	var req dto.AppointmentSettingsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	settings, err := h.appointments.UpdateSettings(c.UserContext(), actor(c), domain.AppointmentSettings{
		SlotMinutes:      req.SlotMinutes,
		BufferMinutes:    req.BufferMinutes,
		MinNoticeMinutes: req.MinNoticeMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentSettingsResponse(settings)})
}

func tenantResponse(tenant *domain.Tenant) dto.TenantResponse {
	return dto.TenantResponse{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Slug:      tenant.Slug,
		TimeZone:  tenant.TimeZone,
		IsActive:  tenant.IsActive,
		CreatedAt: tenant.CreatedAt,
	}
}

func businessHoursResponse(bh *domain.BusinessHours) dto.BusinessHoursResponse {
	resp := dto.BusinessHoursResponse{
		TimeZone: bh.TimeZone,
		Days:     make([]dto.DaySchedule, 0, len(bh.Days)),
		Holidays: make([]dto.Holiday, 0, len(bh.Holidays)),
	}
	for _, day := range bh.Days {
		resp.Days = append(resp.Days, dto.DaySchedule{Open: day.Open, Start: day.Start, End: day.End})
	}
	for _, holiday := range bh.Holidays {
		resp.Holidays = append(resp.Holidays, dto.Holiday{Name: holiday.Name, Date: holiday.Date.Format(dateLayout)})
	}
	return resp
}

func appointmentSettingsResponse(settings *domain.AppointmentSettings) dto.AppointmentSettingsResponse {
	return dto.AppointmentSettingsResponse{
		SlotMinutes:      settings.SlotMinutes,
		BufferMinutes:    settings.BufferMinutes,
		MinNoticeMinutes: settings.MinNoticeMinutes,
	}
}
