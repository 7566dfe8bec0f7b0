package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/session"
)

var cohortParam = "cohort"

type (
	sessionApi struct {
		svc session.ServiceInterface
	}

	RosterResponse struct {
		Loaded  int                 `json:"loaded"`
		Columns roster.Columns      `json:"columns"`
		Skipped []roster.SkippedRow `json:"skipped"`
	}

	PresenceResponse struct {
		Observed int                 `json:"observed"`
		Presence []presence.Presence `json:"presence"`
	}

	ProblemsResponse struct {
		Stats    monitor.Stats               `json:"stats"`
		Problems []monitor.ParticipantStatus `json:"problems"`
	}

	AlertsResponse struct {
		Sent   bool     `json:"sent"`
		Alerts []string `json:"alerts"`
	}
)

func registerSessionAPI(g *echo.Group, svc session.ServiceInterface) {
	api := sessionApi{svc: svc}

	sg := g.Group("/sessions")
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:key")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/roster", api.loadRoster)
	dg.PUT("/presence", api.recordPresence)
	dg.GET("/rooms", api.rooms)
	dg.GET("/stats", api.stats)
	dg.GET("/problems", api.problems)
	dg.GET("/analysis", api.analysis)
	dg.POST("/alerts", api.alerts)
}

// cohortFilter reads the optional `?cohort=` filter. Empty means every cohort.
func cohortFilter(ctx echo.Context) roster.Cohort {
	return roster.Cohort(strings.ToUpper(core.CleanString(ctx.QueryParam(cohortParam))))
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	s, err := api.svc.Create(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, s.Summary())
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, s.Summary())
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) loadRoster(ctx echo.Context) error {
	var data session.RosterInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RosterInput")
	}

	res, err := api.svc.LoadRoster(ctx.Request().Context(), ctx.Param("key"), data)
	if err != nil {
		return errors.Wrap(err, "loading roster")
	}

	skipped := res.Skipped
	if skipped == nil {
		skipped = []roster.SkippedRow{}
	}
	return ctx.JSON(http.StatusOK, RosterResponse{Loaded: res.Loaded(), Columns: res.Columns, Skipped: skipped})
}

func (api *sessionApi) recordPresence(ctx echo.Context) error {
	var data session.PresenceInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PresenceInput")
	}

	snap, err := api.svc.RecordPresence(ctx.Request().Context(), ctx.Param("key"), data)
	if err != nil {
		return errors.Wrap(err, "recording presence")
	}
	return ctx.JSON(http.StatusOK, PresenceResponse{Observed: len(snap), Presence: snap.Sorted()})
}

func (api *sessionApi) rooms(ctx echo.Context) error {
	report, err := api.svc.Rooms(ctx.Request().Context(), ctx.Param("key"), cohortFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "reconciling rooms")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *sessionApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctx.Param("key"), cohortFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *sessionApi) problems(ctx echo.Context) error {
	key, cohort := ctx.Param("key"), cohortFilter(ctx)
	stats, err := api.svc.Stats(ctx.Request().Context(), key, cohort)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	problems, err := api.svc.Problems(ctx.Request().Context(), key, cohort)
	if err != nil {
		return errors.Wrap(err, "listing problems")
	}
	return ctx.JSON(http.StatusOK, ProblemsResponse{Stats: stats, Problems: problems})
}

func (api *sessionApi) analysis(ctx echo.Context) error {
	a, err := api.svc.Analyze(ctx.Request().Context(), ctx.Param("key"), cohortFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "analyzing session")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *sessionApi) alerts(ctx echo.Context) error {
	alerts, err := api.svc.SendAlerts(ctx.Request().Context(), ctx.Param("key"), cohortFilter(ctx))
	switch {
	case errors.Cause(err) == session.ErrNoRecipients:
		return ctx.JSON(http.StatusOK, AlertsResponse{Sent: false, Alerts: alerts})
	case err != nil:
		return errors.Wrap(err, "sending alerts")
	}
	return ctx.JSON(http.StatusOK, AlertsResponse{Sent: true, Alerts: alerts})
}
