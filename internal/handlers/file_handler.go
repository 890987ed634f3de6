package handlers

import (
	"errors"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
)

var errBlobDisabled = errors.New("blob store not configured")

type FileHandler struct {
	Blob blob.Store
}

func NewFileHandler(store blob.Store) *FileHandler {
	return &FileHandler{Blob: store}
}

func (h *FileHandler) Serve(c *fiber.Ctx) error {
	if h.Blob == nil {
		return apperr.Unavailable(errBlobDisabled)
	}
	ref := c.Params("ref")
	rc, err := h.Blob.Open(c.UserContext(), ref)
	switch {
	case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidRef):
		return apperr.NotFound("file not found")
	case err != nil:
		return apperr.Unavailable(err)
	}

	if ct := mime.TypeByExtension(filepath.Ext(ref)); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=86400")
	// fasthttp closes rc once the body has been written.
	return c.SendStream(rc)
}
