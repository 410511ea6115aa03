package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/deliverydesk/alert-engine/internal/analytics"
	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// EngineAPI is the slice of the engine the admin surface exposes.
type EngineAPI interface {
	GetPreferences() domain.PreferenceSet
	SetPreferences(ctx context.Context, p domain.PreferenceSet) error
	GetAnalytics() analytics.Snapshot
	Dismiss(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
	Clicked(ctx context.Context, id string) error
	RequestPermission(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
	SignalDatasetChange()
	SendTest(ctx context.Context) error
}

type AdminHandler struct {
	engine EngineAPI
}

func NewAdminHandler(engine EngineAPI) (*AdminHandler, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	return &AdminHandler{engine: engine}, nil
}

func RegisterAdminRoutes(router fiber.Router, engine EngineAPI) error {
	h, err := NewAdminHandler(engine)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/preferences", h.GetPreferences)
	v1.Put("/preferences", h.SetPreferences)
	v1.Get("/analytics", h.GetAnalytics)
	v1.Post("/notifications/:id/dismiss", h.DismissNotification)
	v1.Post("/notifications/:id/read", h.ReadNotification)
	v1.Post("/notifications/:id/click", h.ClickNotification)
	v1.Post("/subscription/permission", h.RequestPermission)
	v1.Post("/subscription", h.Subscribe)
	v1.Delete("/subscription", h.Unsubscribe)
	v1.Post("/dataset-changed", h.DatasetChanged)
	v1.Post("/test-notification", h.SendTest)

	return nil
}

func (h *AdminHandler) GetPreferences(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.engine.GetPreferences())
}

func (h *AdminHandler) SetPreferences(c *fiber.Ctx) error {
	var prefs domain.PreferenceSet
	if err := c.BodyParser(&prefs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.engine.SetPreferences(c.Context(), prefs); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(h.engine.GetPreferences())
}

func (h *AdminHandler) GetAnalytics(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.engine.GetAnalytics())
}

func (h *AdminHandler) DismissNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "notification id is required")
	}

	if err := h.engine.Dismiss(c.Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"dismissed":      true,
	})
}

func (h *AdminHandler) ReadNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "notification id is required")
	}

	if err := h.engine.MarkRead(c.Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"read":           true,
	})
}

func (h *AdminHandler) ClickNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "notification id is required")
	}

	if err := h.engine.Clicked(c.Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) RequestPermission(c *fiber.Ctx) error {
	if err := h.engine.RequestPermission(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"granted": true})
}

func (h *AdminHandler) Subscribe(c *fiber.Ctx) error {
	if err := h.engine.Subscribe(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscribed": true})
}

func (h *AdminHandler) Unsubscribe(c *fiber.Ctx) error {
	if err := h.engine.Unsubscribe(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"subscribed": false})
}

func (h *AdminHandler) DatasetChanged(c *fiber.Ctx) error {
	h.engine.SignalDatasetChange()
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *AdminHandler) SendTest(c *fiber.Ctx) error {
	if err := h.engine.SendTest(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sent": true})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrSubscriptionFailure):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrDeliveryFailure):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrLedgerWrite):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
