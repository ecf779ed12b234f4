package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/ingest"
	"horse.fit/opinio/internal/source"
	"horse.fit/opinio/schema"
)

// maxImportBodyBytes bounds the trigger payload; the body is a single
// small JSON object.
const maxImportBodyBytes = 4 << 10

// handleImport triggers one ingestion run for an institution and
// source. The run executes inline; the response carries its summary.
func (s *Server) handleImport(c echo.Context) error {
	sourceTag := c.Param("source")
	if !source.KnownTag(sourceTag) {
		return failNotFound(c, "unknown source")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportBodyBytes))
	if err != nil {
		return fail(c, http.StatusBadRequest, "read request body failed", nil)
	}

	request, err := schema.ValidateImportRequest(body)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	result, err := s.importer.Run(c.Request().Context(), request.InstitutionID, sourceTag)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrInstitutionNotFound):
			return failNotFound(c, "institution not found")
		case errors.Is(err, ingest.ErrUnknownSource):
			return failNotFound(c, "unknown source")
		case errors.Is(err, source.ErrSourceUnavailable):
			return fail(c, http.StatusBadGateway, "source unavailable", nil)
		default:
			s.logger.Error().
				Err(err).
				Int64("institution_id", request.InstitutionID).
				Str("source", sourceTag).
				Msg("import run failed")
			return internalError(c, "Internal server error")
		}
	}

	return successWithStatus(c, http.StatusCreated, result)
}
