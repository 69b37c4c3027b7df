package records

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/httperr"
)

// StoreResolver locates the document store for the patient addressed by the
// request, typically through the registry.
type StoreResolver func(c echo.Context) (*docstore.Store, error)

// Handler serves the plain record documents of one patient.
type Handler struct {
	resolve StoreResolver
}

func NewHandler(resolve StoreResolver) *Handler {
	return &Handler{resolve: resolve}
}

// RegisterRoutes mounts the record routes on a patient-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/profile", h.getSingleton(TypePatientProfile))
	g.PUT("/profile", h.putSingleton(TypePatientProfile))
	g.GET("/clinicalhistory", h.getSingleton(TypeClinicalHistory))
	g.PUT("/clinicalhistory", h.putSingleton(TypeClinicalHistory))
	g.GET("/safetyplan", h.getSingleton(TypeSafetyPlan))
	g.PUT("/safetyplan", h.putSingleton(TypeSafetyPlan))
	g.GET("/valuesinventory", h.getSingleton(TypeValuesInventory))
	g.PUT("/valuesinventory", h.putSingleton(TypeValuesInventory))

	g.GET("/values", h.getSet(TypeValue))
	g.POST("/values", h.postSetElement(TypeValue, ValueID))
	g.GET("/value/:setID", h.getSetElement(TypeValue))
	g.PUT("/value/:setID", h.putSetElement(TypeValue, ValueID))
	g.DELETE("/value/:setID", h.deleteSetElement(TypeValue))

	g.GET("/casereviews", h.getSet(TypeCaseReview))
	g.POST("/casereviews", h.postSetElement(TypeCaseReview, CaseReviewID))
	g.GET("/casereview/:setID", h.getSetElement(TypeCaseReview))
	g.PUT("/casereview/:setID", h.putSetElement(TypeCaseReview, CaseReviewID))

	g.GET("/sessions", h.getSet(TypeSession))
	g.POST("/sessions", h.postSetElement(TypeSession, SessionID))
	g.GET("/session/:setID", h.getSetElement(TypeSession))
	g.PUT("/session/:setID", h.putSetElement(TypeSession, SessionID))

	g.GET("/moodlogs", h.getSet(TypeMoodLog))
	g.POST("/moodlogs", h.postSetElement(TypeMoodLog, MoodLogID))

	g.GET("/activitylogs", h.getSet(TypeActivityLog))
	g.POST("/activitylogs", h.postSetElement(TypeActivityLog, ActivityLogID))

	g.GET("/assessmentlogs", h.getSet(TypeAssessmentLog))
	g.POST("/assessmentlogs", h.postSetElement(TypeAssessmentLog, AssessmentLogID))
}

func (h *Handler) getSingleton(docType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		doc, err := store.GetSingleton(c.Request().Context(), docType)
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, doc)
	}
}

func (h *Handler) putSingleton(docType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		doc, err := bindDocument(c)
		if err != nil {
			return err
		}
		out, err := store.PutSingleton(c.Request().Context(), docType, doc)
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) getSet(docType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		docs, err := store.GetSet(c.Request().Context(), docType)
		if err != nil {
			return httperr.Respond(c, err)
		}
		if docs == nil {
			docs = []docstore.Document{}
		}
		return c.JSON(http.StatusOK, map[string]any{"documents": docs})
	}
}

func (h *Handler) getSetElement(docType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		doc, err := store.GetSetElement(c.Request().Context(), docType, c.Param("setID"))
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, doc)
	}
}

func (h *Handler) postSetElement(docType, semanticID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		doc, err := bindDocument(c)
		if err != nil {
			return err
		}
		out, err := store.PostSetElement(c.Request().Context(), docType, semanticID, doc)
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusCreated, out)
	}
}

func (h *Handler) putSetElement(docType, semanticID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		doc, err := bindDocument(c)
		if err != nil {
			return err
		}
		out, err := store.PutSetElement(c.Request().Context(), docType, semanticID, c.Param("setID"), doc)
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) deleteSetElement(docType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		store, err := h.resolve(c)
		if err != nil {
			return err
		}
		rev, err := RevParam(c)
		if err != nil {
			return err
		}
		out, err := store.DeleteSetElement(c.Request().Context(), docType, c.Param("setID"), rev)
		if err != nil {
			return httperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

// RevParam reads the mandatory rev query parameter of delete requests.
func RevParam(c echo.Context) (int, error) {
	raw := c.QueryParam("rev")
	rev, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "rev query parameter must be an integer")
	}
	return rev, nil
}

func bindDocument(c echo.Context) (docstore.Document, error) {
	var doc docstore.Document
	if err := c.Bind(&doc); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON document")
	}
	return doc, nil
}

// BindDocument decodes the request body as a schemaless document. Shared with
// the other patient-scoped handlers.
func BindDocument(c echo.Context) (docstore.Document, error) {
	return bindDocument(c)
}
