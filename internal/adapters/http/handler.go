package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/craftbay/craftbay/internal/core/domain"
	"github.com/craftbay/craftbay/internal/core/ports"
)

// InstanceHandler exposes the lifecycle manager's operations over HTTP for
// the front end. It is a thin mapping layer; all semantics live in the
// service.
type InstanceHandler struct {
	service ports.InstanceService
}

func NewInstanceHandler(service ports.InstanceService) *InstanceHandler {
	return &InstanceHandler{service: service}
}

// Register mounts the instance routes on the given router group.
func (h *InstanceHandler) Register(r fiber.Router) {
	instances := r.Group("/instances")
	instances.Post("/", h.CreateInstance)
	instances.Get("/", h.ListInstances)
	instances.Get("/:owner", h.GetInstance)
	instances.Delete("/:owner", h.DeleteInstance)
	instances.Post("/:owner/start", h.StartInstance)
	instances.Post("/:owner/stop", h.StopInstance)
	instances.Get("/:owner/status", h.QueryInstance)
}

type CreateInstanceRequest struct {
	Owner    string `json:"owner"`
	Version  string `json:"version"`
	Username string `json:"username"`
	RepoURL  string `json:"repo_url"`
}

func (h *InstanceHandler) CreateInstance(c *fiber.Ctx) error {
	var req CreateInstanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Owner == "" || req.Version == "" || req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner, version and username are required",
		})
	}

	inst, err := h.service.Create(c.Context(), req.Owner, req.Version, req.Username,
		ports.CreateOptions{RepoURL: req.RepoURL})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inst)
}

func (h *InstanceHandler) ListInstances(c *fiber.Ctx) error {
	instances, err := h.service.List(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(instances)
}

func (h *InstanceHandler) GetInstance(c *fiber.Ctx) error {
	inst, err := h.service.Get(c.Context(), c.Params("owner"))
	if err != nil {
		return errorResponse(c, err)
	}
	if inst == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "instance not found",
		})
	}
	return c.JSON(inst)
}

func (h *InstanceHandler) StartInstance(c *fiber.Ctx) error {
	if err := h.service.Start(c.Context(), c.Params("owner")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *InstanceHandler) StopInstance(c *fiber.Ctx) error {
	if err := h.service.Stop(c.Context(), c.Params("owner")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *InstanceHandler) DeleteInstance(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("owner")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *InstanceHandler) QueryInstance(c *fiber.Ctx) error {
	report, err := h.service.Query(c.Context(), c.Params("owner"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(report)
}

// errorResponse maps service errors to HTTP statuses: the two lifecycle
// preconditions get 404/409, everything else is a host/runtime problem and
// gets 500.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
