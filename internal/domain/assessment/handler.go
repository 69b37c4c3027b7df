package assessment

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/httperr"
)

// Handler serves assessments and scheduled assessments for one patient.
type Handler struct {
	svc     *Service
	resolve records.StoreResolver
}

func NewHandler(svc *Service, resolve records.StoreResolver) *Handler {
	return &Handler{svc: svc, resolve: resolve}
}

// RegisterRoutes mounts the assessment routes on a patient-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/assessments", h.listAssessments)
	g.GET("/assessment/:setID", h.getAssessment)
	g.PUT("/assessment/:setID", h.putAssessment)

	g.GET("/scheduledassessments", h.listScheduled)
	g.GET("/scheduledassessment/:setID", h.getScheduled)
	g.PUT("/scheduledassessment/:setID", h.putScheduled)
}

func (h *Handler) listAssessments(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.Assessments(c.Request().Context(), store)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) getAssessment(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Assessment(c.Request().Context(), store, c.Param("setID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) putAssessment(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PutAssessment(c.Request().Context(), store, c.Param("setID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) listScheduled(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.ScheduledAssessments(c.Request().Context(), store)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) getScheduled(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.ScheduledAssessment(c.Request().Context(), store, c.Param("setID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) putScheduled(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PutScheduledAssessment(c.Request().Context(), store, c.Param("setID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
