package activity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/httperr"
)

// Handler serves activities, schedules, and scheduled occurrences for one
// patient. Writes run the cascade through Service.
type Handler struct {
	svc     *Service
	resolve records.StoreResolver
}

func NewHandler(svc *Service, resolve records.StoreResolver) *Handler {
	return &Handler{svc: svc, resolve: resolve}
}

// RegisterRoutes mounts the activity routes on a patient-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/activities", h.listActivities)
	g.POST("/activities", h.postActivity)
	g.GET("/activity/:setID", h.getActivity)
	g.PUT("/activity/:setID", h.putActivity)
	g.DELETE("/activity/:setID", h.deleteActivity)

	g.GET("/activityschedules", h.listSchedules)
	g.POST("/activityschedules", h.postSchedule)
	g.GET("/activityschedule/:setID", h.getSchedule)
	g.PUT("/activityschedule/:setID", h.putSchedule)
	g.DELETE("/activityschedule/:setID", h.deleteSchedule)

	g.GET("/scheduledactivities", h.listScheduled)
	g.GET("/scheduledactivity/:setID", h.getScheduled)
	g.PUT("/scheduledactivity/:setID", h.putScheduled)
}

func (h *Handler) listActivities(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.Activities(c.Request().Context(), store)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) postActivity(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PostActivity(c.Request().Context(), store, doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) getActivity(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Activity(c.Request().Context(), store, c.Param("setID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) putActivity(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PutActivity(c.Request().Context(), store, c.Param("setID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteActivity(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	rev, err := records.RevParam(c)
	if err != nil {
		return err
	}
	out, err := h.svc.DeleteActivity(c.Request().Context(), store, c.Param("setID"), rev)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) listSchedules(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.ActivitySchedules(c.Request().Context(), store)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) postSchedule(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PostActivitySchedule(c.Request().Context(), store, doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) getSchedule(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.ActivitySchedule(c.Request().Context(), store, c.Param("setID"))
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) putSchedule(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	doc, err := records.BindDocument(c)
	if err != nil {
		return err
	}
	out, err := h.svc.PutActivitySchedule(c.Request().Context(), store, c.Param("setID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteSchedule(c echo.Context) error {
	store, err := h.resolve(c)
	if err != nil {
		return err
	}
	rev, err := records.RevParam(c)
	if err != nil {
		return err
	}
	out, err := h.svc.DeleteActivitySchedule(c.Request().Context(), store, c.Param("setID"), rev)
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
	docs, err := h.svc.ScheduledActivities(c.Request().Context(), store)
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
	doc, err := h.svc.ScheduledActivity(c.Request().Context(), store, c.Param("setID"))
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
	out, err := h.svc.PutScheduledActivity(c.Request().Context(), store, c.Param("setID"), doc)
	if err != nil {
		return httperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
