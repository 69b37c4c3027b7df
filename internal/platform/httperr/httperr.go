// Package httperr maps revision store errors onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/docstore"
)

// Respond renders err as the appropriate HTTP response: validation failures
// become 400, missing documents 404, and lost write races 409 carrying the
// revision that won so the client can merge and retry.
func Respond(c echo.Context, err error) error {
	var ve *docstore.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"message": ve.Reason,
		})
	}

	var nf *docstore.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, map[string]any{
			"message": "document not found",
		})
	}

	var dm *docstore.DocumentModifiedError
	if errors.As(err, &dm) {
		return c.JSON(http.StatusConflict, map[string]any{
			"message":  "document modified",
			"document": dm.Current,
		})
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
