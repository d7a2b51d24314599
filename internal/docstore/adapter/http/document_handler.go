package http

import (
	"net/url"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/docstore/usecase"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DocumentHandler serves the REST document contract under /api.
type DocumentHandler struct {
	service usecase.DocumentService
	log     logger.Logger
}

func NewDocumentHandler(service usecase.DocumentService, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		log:     logger.OrNop(log).WithComponent("document_handler"),
	}
}

// RegisterRoutes mounts the collection and document endpoints.
func (h *DocumentHandler) RegisterRoutes(router fiber.Router) {
	api := router.Group("/api")
	api.Get("/:collection", h.ListDocuments)
	api.Get("/:collection/:id", h.GetDocument)
	api.Put("/:collection/:id", h.PutDocument)
	api.Patch("/:collection/:id", h.PatchDocument)
	api.Delete("/:collection/:id", h.DeleteDocument)
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	collection, _, err := target(c)
	if err != nil {
		return h.fail(c, err)
	}
	list, err := h.service.List(c.UserContext(), collection, opts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	opts, err := listOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	collection, id, err := target(c)
	if err != nil {
		return h.fail(c, err)
	}
	doc, err := h.service.Get(c.UserContext(), collection, id, opts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) PutDocument(c *fiber.Ctx) error {
	doc, err := body(c)
	if err != nil {
		return h.fail(c, err)
	}
	collection, id, err := target(c)
	if err != nil {
		return h.fail(c, err)
	}
	created, err := h.service.Put(c.UserContext(), collection, id, doc)
	if err != nil {
		return h.fail(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(doc)
}

func (h *DocumentHandler) PatchDocument(c *fiber.Ctx) error {
	partial, err := body(c)
	if err != nil {
		return h.fail(c, err)
	}
	collection, id, err := target(c)
	if err != nil {
		return h.fail(c, err)
	}
	doc, err := h.service.Patch(c.UserContext(), collection, id, partial)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	collection, id, err := target(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.service.Delete(c.UserContext(), collection, id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// fail writes err as {"error": message} with the status it carries.
func (h *DocumentHandler) fail(c *fiber.Ctx, err error) error {
	status := errors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.log.WithContext(c.UserContext()).Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// target returns the unescaped collection and id route params. Fiber matches
// routes on the raw path, so "%2F" inside an id stays within its segment.
func target(c *fiber.Ctx) (collection, id string, err error) {
	collection, err = url.PathUnescape(c.Params("collection"))
	if err != nil {
		return "", "", errors.NewValidationError("malformed collection segment").WithCause(errors.ErrInvalidPath)
	}
	if raw := c.Params("id"); raw != "" {
		id, err = url.PathUnescape(raw)
		if err != nil {
			return "", "", errors.NewValidationError("malformed document id segment").WithCause(errors.ErrInvalidPath)
		}
	}
	return collection, id, nil
}

func listOptions(c *fiber.Ctx) (model.ListOptions, error) {
	params, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return model.ListOptions{}, errors.NewValidationError("malformed query string").WithCause(errors.ErrInvalidQuery)
	}
	return model.ParseListOptions(params)
}

func body(c *fiber.Ctx) (jsonvalue.Value, error) {
	if len(c.Body()) == 0 {
		return jsonvalue.Value{}, errors.NewValidationError("request body is required").WithCause(errors.ErrInvalidDocument)
	}
	v, err := jsonvalue.Parse(c.Body())
	if err != nil {
		return jsonvalue.Value{}, errors.NewValidationError("request body is not valid JSON").WithCause(errors.ErrInvalidDocument)
	}
	return v, nil
}
