package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AppointmentsHandler manages bookings, availability and staff working hours.
type AppointmentsHandler struct {
	service *service.AppointmentService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(appointmentService *service.AppointmentService) *AppointmentsHandler {
	return &AppointmentsHandler{service: appointmentService}
}

// Availability GET /appointments/availability?staff_user_id=&date=YYYY-MM-DD.
func (h *AppointmentsHandler) Availability(c *fiber.Ctx) error {
	q := newQuery(c)
	staffID := q.optionalString("staff_user_id")
	if staffID == nil {
		q.fields["staff_user_id"] = "is required"
	}
	date := q.date("date")
	if err := q.err(); err != nil {
		return err
	}
	availability, err := h.service.GetAvailability(c.UserContext(), actor(c), *staffID, date)
	if err != nil {
		return err
	}
	slots := make([]dto.SlotResponse, 0, len(availability.Slots))
	for _, slot := range availability.Slots {
		slots = append(slots, dto.SlotResponse{StartsAt: slot.Start, EndsAt: slot.End})
	}
	return c.JSON(fiber.Map{"data": dto.AvailabilityResponse{
		StaffUserID: availability.StaffUserID,
		Date:        availability.Date,
		TimeZone:    availability.TimeZone,
		Slots:       slots,
	}})
}

// Book POST /appointments.
func (h *AppointmentsHandler) Book(c *fiber.Ctx) error {
	var req dto.BookAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	appt, err := h.service.Book(c.UserContext(), actor(c), service.BookAppointmentInput{
		StaffUserID: req.StaffUserID,
		ContactID:   req.ContactID,
		TicketID:    req.TicketID,
		Title:       req.Title,
		Notes:       req.Notes,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": appointmentResponse(appt)})
}

// ListAppointments GET /appointments.
func (h *AppointmentsHandler) ListAppointments(c *fiber.Ctx) error {
	q := newQuery(c)
	filter := service.AppointmentListFilter{
		StaffUserID: q.optionalString("staff_user_id"),
		ContactID:   q.optionalString("contact_id"),
		From:        q.optionalTime("from"),
		To:          q.optionalTime("to"),
		Page:        q.page(),
	}
	if raw := q.optionalString("status"); raw != nil {
		status := domain.AppointmentStatus(strings.ToUpper(*raw))
		switch status {
		case domain.AppointmentScheduled, domain.AppointmentCancelled, domain.AppointmentCompleted:
			filter.Status = &status
		default:
			q.fields["status"] = "must be one of SCHEDULED CANCELLED COMPLETED"
		}
	}
	if err := q.err(); err != nil {
		return err
	}
	result, err := h.service.ListAppointments(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, appointmentResponse))
}

// GetAppointment GET /appointments/:id.
func (h *AppointmentsHandler) GetAppointment(c *fiber.Ctx) error {
	appt, err := h.service.GetAppointment(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appt)})
}

// Reschedule POST /appointments/:id/reschedule.
func (h *AppointmentsHandler) Reschedule(c *fiber.Ctx) error {
	var req dto.RescheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	appt, err := h.service.Reschedule(c.UserContext(), actor(c), c.Params("id"), service.RescheduleInput{
		StaffUserID: req.StaffUserID,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appt)})
}

// Cancel POST /appointments/:id/cancel.
func (h *AppointmentsHandler) Cancel(c *fiber.Ctx) error {
	appt, err := h.service.Cancel(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appt)})
}

// Complete POST /appointments/:id/complete.
func (h *AppointmentsHandler) Complete(c *fiber.Ctx) error {
	appt, err := h.service.Complete(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": appointmentResponse(appt)})
}

// GetWorkingHours GET /users/:id/working-hours.
func (h *AppointmentsHandler) GetWorkingHours(c *fiber.Ctx) error {
	hours, err := h.service.GetWorkingHours(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workingHoursResponse(hours)})
}

// SetWorkingHours PUT /users/:id/working-hours.
func (h *AppointmentsHandler) SetWorkingHours(c *fiber.Ctx) error {
	var req dto.WorkingHoursRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hours := make([]domain.StaffWorkingHours, 0, len(req.Hours))
	for _, wh := range req.Hours {
		hours = append(hours, domain.StaffWorkingHours{
			Weekday: time.Weekday(wh.Weekday),
			Start:   wh.Start,
			End:     wh.End,
		})
	}
	saved, err := h.service.SetWorkingHours(c.UserContext(), actor(c), c.Params("id"), hours)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workingHoursResponse(saved)})
}

func appointmentResponse(appt *domain.Appointment) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:          appt.ID,
		StaffUserID: appt.StaffUserID,
		ContactID:   appt.ContactID,
		TicketID:    appt.TicketID,
		Title:       appt.Title,
		Notes:       appt.Notes,
		StartsAt:    appt.StartsAt,
		EndsAt:      appt.EndsAt,
		Status:      appt.Status,
		CancelledAt: appt.CancelledAt,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
}

func workingHoursResponse(hours []domain.StaffWorkingHours) dto.WorkingHoursRequest {
	resp := dto.WorkingHoursRequest{Hours: make([]dto.WorkingHour, 0, len(hours))}
	for _, wh := range hours {
		resp.Hours = append(resp.Hours, dto.WorkingHour{Weekday: int(wh.Weekday), Start: wh.Start, End: wh.End})
	}
	return resp
}
