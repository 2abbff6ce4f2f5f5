package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

const maxPageSize = 100

func (h *Handler) SecurityEvents(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	size := c.QueryInt("pageSize", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = 20
	}
	list, total, err := h.engine.SecurityEvents(c.UserContext(), userID(c), page, size)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"events":   list,
		"total":    total,
		"page":     page,
		"pageSize": size,
	})
}

func (h *Handler) Devices(c *fiber.Ctx) error {
	devices, err := h.engine.KnownDevices(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	out := make([]fiber.Map, 0, len(devices))
	for _, d := range devices {
		out = append(out, fiber.Map{
			"fingerprint": d.Fingerprint,
			"ipAddress":   d.IP,
			"userAgent":   d.UserAgent,
			"lastSeen":    d.Timestamp,
		})
	}
	return c.JSON(fiber.Map{"devices": out})
}
