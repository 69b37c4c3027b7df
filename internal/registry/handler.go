package registry

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/httperr"
)

// Handler serves the patient and provider identity routes.
type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// RegisterRoutes mounts the identity routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.listPatients)
	g.POST("/patients", h.createPatient)
	g.GET("/patient/:patientID", h.getPatient)
	g.PUT("/patient/:patientID", h.putPatientIdentity)
	g.DELETE("/patient/:patientID", h.deletePatient)

	g.GET("/providers", h.listProviders)
	g.POST("/providers", h.createProvider)
	g.GET("/provider/:providerID", h.getProvider)
	g.DELETE("/provider/:providerID", h.deleteProvider)
}

// ResolveStore returns a records.StoreResolver that maps the patientID path
// parameter to the patient's store, after verifying the identity exists.
func (h *Handler) ResolveStore() records.StoreResolver {
	return func(c echo.Context) (*docstore.Store, error) {
		patientID := c.Param("patientID")
		if _, err := h.reg.PatientIdentity(c.Request().Context(), patientID); err != nil {
			if docstore.IsNotFound(err) {
				return nil, echo.NewHTTPError(http.StatusNotFound, "patient not found")
			}
			return nil, err
		}
		return h.reg.PatientStore(patientID), nil
	}
}

func (h *Handler) listPatients(c echo.Context) error {
	identities, err := h.reg.PatientIdentities(c.Request().Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	if identities == nil {
		identities = []docstore.Document{}
	}
	return c.JSON(http.StatusOK, map[string]any{"patients": identities})
}

type createPatientRequest struct {
	Name string `json:"name"`
	MRN  string `json:"MRN"`
}

func (h *Handler) createPatient(c echo.Context) error {
	var req createPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON document")
	}
	if req.Name == "" || req.MRN == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and MRN are required")
	}
	identity, err := h.reg.CreatePatient(c.Request().Context(), req.Name, req.MRN)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, identity)
}

func (h *Handler) getPatient(c echo.Context) error {
	identity, err := h.reg.PatientIdentity(c.Request().Context(), c.Param("patientID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	doc, err := h.reg.PatientDocument(c.Request().Context(), identity)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) putPatientIdentity(c echo.Context) error {
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.reg.PutPatientIdentity(c.Request().Context(), c.Param("patientID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) deletePatient(c echo.Context) error {
	if err := h.reg.DeletePatient(c.Request().Context(), c.Param("patientID")); err != nil {
		return httperr.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listProviders(c echo.Context) error {
	identities, err := h.reg.ProviderIdentities(c.Request().Context())
	if err != nil {
		return httperr.Respond(c, err)
	}
	if identities == nil {
		identities = []docstore.Document{}
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": identities})
}

type createProviderRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *Handler) createProvider(c echo.Context) error {
	var req createProviderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON document")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	identity, err := h.reg.CreateProvider(c.Request().Context(), req.Name, req.Role)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, identity)
}

func (h *Handler) getProvider(c echo.Context) error {
	identity, err := h.reg.ProviderIdentity(c.Request().Context(), c.Param("providerID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, identity)
}

func (h *Handler) deleteProvider(c echo.Context) error {
	if err := h.reg.DeleteProvider(c.Request().Context(), c.Param("providerID")); err != nil {
		return httperr.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
