package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/logging"
	"github.com/octobees/provider-directory/internal/service"
)

const maxUploadBytes = 10 << 20

// AdminUploadHandler handles catalogue maintenance for administrators.
type AdminUploadHandler struct {
	directory *service.DirectoryService
}

// NewAdminUploadHandler wires a handler backed by the directory service.
func NewAdminUploadHandler(directory *service.DirectoryService) *AdminUploadHandler {
	return &AdminUploadHandler{directory: directory}
}

// UploadCSV handles POST /admin/providers/upload-csv requests.
func (h *AdminUploadHandler) UploadCSV(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}
	if fileHeader.Size > maxUploadBytes {
		return Error(c, http.StatusRequestEntityTooLarge, "csv file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	ctx := c.Request().Context()
	summary, err := h.directory.ImportProvidersCSV(ctx, file)
	if err != nil {
		var validationErr service.CSVValidationError
		switch {
		case errors.As(err, &validationErr):
			return Error(c, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, service.ErrImportDisabled):
			return Error(c, http.StatusServiceUnavailable, "provider import is not available")
		}
		logging.FromContext(ctx).Error().Err(err).Str("file", fileHeader.Filename).Msg("provider import failed")
		return Error(c, http.StatusInternalServerError, "failed to process csv")
	}

	logging.FromContext(ctx).Info().
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Msg("providers imported")
	return Success(c, http.StatusOK, "providers CSV processed", summary)
}

// ReloadCatalog handles POST /admin/catalog/reload requests.
func (h *AdminUploadHandler) ReloadCatalog(c echo.Context) error {
	summary, err := h.directory.Reload(c.Request().Context())
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn().Err(err).Msg("catalogue reload failed")
		if errors.Is(err, service.ErrUpstreamUnavailable) {
			return Error(c, http.StatusServiceUnavailable, "reload failed: catalogue unavailable")
		}
		return Error(c, http.StatusInternalServerError, "reload failed")
	}
	return Success(c, http.StatusOK, "catalogue reloaded", summary)
}

// GetStoredProvider handles GET /admin/providers/:id requests. It reads the
// database row, which may be newer than the served catalogue.
func (h *AdminUploadHandler) GetStoredProvider(c echo.Context) error {
	provider, err := h.directory.StoredProvider(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.providerFailure(c, err, "lookup failed")
	}
	return Success(c, http.StatusOK, "provider retrieved", provider)
}

// PutProvider handles PUT /admin/providers/:id requests.
func (h *AdminUploadHandler) PutProvider(c echo.Context) error {
	var provider entity.Provider
	if err := c.Bind(&provider); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	id := strings.TrimSpace(c.Param("id"))
	if provider.ID != "" && provider.ID != id {
		return Error(c, http.StatusBadRequest, "provider id does not match path")
	}
	provider.ID = id

	saved, reloaded, err := h.directory.SaveProvider(c.Request().Context(), provider)
	if err != nil {
		return h.providerFailure(c, err, "save failed")
	}
	logging.FromContext(c.Request().Context()).Info().
		Str("provider_id", saved.ID).
		Bool("reloaded", reloaded).
		Msg("provider saved")
	return Success(c, http.StatusOK, "provider saved", map[string]any{
		"provider": saved,
		"reloaded": reloaded,
	})
}

func (h *AdminUploadHandler) providerFailure(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, service.ErrProviderNotFound):
		return Error(c, http.StatusNotFound, "provider not found")
	case errors.Is(err, entity.ErrInvalidProvider):
		return Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrImportDisabled):
		return Error(c, http.StatusServiceUnavailable, "provider storage is not available")
	}
	logging.FromContext(c.Request().Context()).Error().Err(err).Msg(action)
	return Error(c, http.StatusInternalServerError, action)
}
