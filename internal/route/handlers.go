package route

import (
	"errors"

	"backend-contravento/internal/gpx"
	"backend-contravento/internal/worker"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		payload := c.Body()
		if len(payload) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "gpx body required")
		}
		userID, _ := c.Locals("user_id").(string)

		route, err := svc.ProcessUpload(c.Context(), userID, c.Query("name"), payload)
		switch {
		case errors.Is(err, gpx.ErrMalformedInput), errors.Is(err, gpx.ErrEmptyTrack):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, worker.ErrTimeout):
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(route)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		route, err := svc.GetRoute(c.Context(), c.Params("id"))
		if errors.Is(err, ErrRouteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "route not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(route)
	})

	// Statistics are null, not zero-filled, for tracks uploaded without
	// timestamps.
	r.Get("/:id/statistics", func(c *fiber.Ctx) error {
		rs, err := svc.Statistics(c.Context(), c.Params("id"))
		if errors.Is(err, ErrRouteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "route not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"statistics": rs})
	})

	r.Get("/:id/geometry", func(c *fiber.Ctx) error {
		route, err := svc.GetRoute(c.Context(), c.Params("id"))
		if errors.Is(err, ErrRouteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "route not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"geometry":               route.GeometryWKT,
			"point_count":            route.PointCount,
			"simplified_point_count": route.SimplifiedPointCount,
		})
	})

	r.Post("/:id/recompute", authMiddleware, func(c *fiber.Ctx) error {
		rs, err := svc.Recompute(c.Context(), c.Params("id"))
		switch {
		case errors.Is(err, ErrRecomputeInProgress):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrRouteNotFound):
			return fiber.NewError(fiber.StatusNotFound, "route not found")
		case errors.Is(err, worker.ErrTimeout):
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"statistics": rs})
	})
}
