package httpserver

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tmcfarland/usagedeck/internal/analytics"
	"github.com/tmcfarland/usagedeck/internal/app"
	"github.com/tmcfarland/usagedeck/internal/config"
	"github.com/tmcfarland/usagedeck/internal/httpserver/httputil"
	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

type analyticsHandlers struct {
	reports *app.ReportService
	cfg     config.AnalyticsConfig
}

func registerAnalyticsRoutes(fiberApp *fiber.App, container *app.Container) {
	h := &analyticsHandlers{
		reports: container.Reports,
		cfg:     container.Config.Analytics,
	}

	group := fiberApp.Group("/api/analytics")
	group.Get("/report", h.report)
	group.Get("/totals", h.totals)
	group.Get("/activity", h.activity)
	group.Get("/sessions", h.sessions)
	group.Get("/retention", h.retention)
}

// reportResponse widens the report with the retention summary, whose NaN
// ratios need the nullable DTO treatment before JSON encoding.
type reportResponse struct {
	analytics.Report
	RetentionSummary retentionSummaryDTO `json:"retention_summary"`
}

func (h *analyticsHandlers) report(c *fiber.Ctx) error {
	at, err := parseAt(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid at parameter")
	}

	report, err := h.reports.Build(c.Context(), at)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "failed to load events")
	}

	return c.JSON(reportResponse{
		Report:           report,
		RetentionSummary: toSummaryDTO(report.RetentionSummary),
	})
}

func (h *analyticsHandlers) totals(c *fiber.Ctx) error {
	at, err := parseAt(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid at parameter")
	}

	events, skipped, err := h.reports.Snapshot(c.Context())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "failed to load events")
	}

	response := fiber.Map{"skipped_records": skipped}
	if period := strings.TrimSpace(c.Query("period")); period != "" {
		window, err := timeutil.NewWindow(period, at)
		if err != nil {
			if errors.Is(err, timeutil.ErrInvalidPeriod) {
				return httputil.WriteError(c, fiber.StatusBadRequest, "invalid period")
			}
			return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
		}
		selected := events[:0:0]
		for _, e := range events {
			if window.Contains(e.CreatedAt) {
				selected = append(selected, e)
			}
		}
		events = selected
		response["period"] = window.Period()
		response["start"] = window.StartString()
		response["end"] = window.EndString()
	}

	totals := analytics.ComputeTotals(events)
	response["totals"] = totals.Rows()
	response["total_cost"] = totals.TotalCost().Round(6).StringFixed(6)
	return c.JSON(response)
}

func (h *analyticsHandlers) activity(c *fiber.Ctx) error {
	at, err := parseAt(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid at parameter")
	}

	params := h.reports.ParamsAt(at)
	if period := strings.TrimSpace(c.Query("period")); period != "" {
		window, err := timeutil.NewWindow(period, at)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid period")
		}
		params.Cutoff = window.Start()
		params.WindowStart = window.Start()
	}
	types := params.RelevantTypes
	if csv := parseTypesParam(c); csv != nil {
		types = csv
	}

	events, _, err := h.reports.Snapshot(c.Context())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "failed to load events")
	}

	topUsers := make(map[string][]analytics.UserCallCount, len(types))
	for _, eventType := range types {
		topUsers[eventType] = analytics.TopUsersByType(events, eventType, params.Cutoff, params.TopUserLimit)
	}

	response := fiber.Map{
		"daily_type_counts":        analytics.DailyTypeCounts(events, types, params.Cutoff),
		"active_users_by_day":      analytics.ActiveUsersByDay(events, params.Cutoff),
		"active_users_by_week":     analytics.ActiveUsersByWeek(events, params.Cutoff),
		"active_users_by_month":    analytics.ActiveUsersByMonth(events),
		"mean_weekly_active_users": analytics.MeanWeeklyActiveUsers(events),
		"activity_histogram":       analytics.UserActivityHistogram(events, params.WindowStart, params.WindowEnd),
		"top_users_by_type":        topUsers,
	}

	// Drill-down: hourly call counts for one user and type.
	if user := strings.TrimSpace(c.Query("user")); user != "" {
		seriesType := c.Query("type")
		if seriesType == "" && len(types) > 0 {
			seriesType = types[0]
		}
		response["user_hourly_series"] = analytics.UserHourlySeries(events, seriesType, user, params.Cutoff)
	}

	return c.JSON(response)
}

func (h *analyticsHandlers) sessions(c *fiber.Ctx) error {
	sessionCfg := analytics.SessionConfig{
		Gap:    h.cfg.SessionGap,
		Bounds: h.cfg.SessionBounds(),
	}
	if raw := strings.TrimSpace(c.Query("gap")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return httputil.WriteError(c, fiber.StatusBadRequest, "gap must be a positive number of minutes")
		}
		sessionCfg.Gap = time.Duration(minutes) * time.Minute
	}
	types := h.cfg.RelevantTypes
	if csv := parseTypesParam(c); csv != nil {
		types = csv
	}

	events, _, err := h.reports.Snapshot(c.Context())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "failed to load events")
	}

	return c.JSON(fiber.Map{
		"session_histogram": analytics.SessionHistogram(events, types, sessionCfg),
	})
}

func (h *analyticsHandlers) retention(c *fiber.Ctx) error {
	typeFilter := c.Query("type", h.cfg.RetentionType)

	events, _, err := h.reports.Snapshot(c.Context())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "failed to load events")
	}

	table := analytics.BuildCohorts(events, typeFilter)
	summary := table.Summary(analytics.SegmentBoundaries{
		A: h.cfg.CohortSegments.A,
		B: h.cfg.CohortSegments.B,
	})

	return c.JSON(fiber.Map{
		"retention": table,
		"summary":   toSummaryDTO(summary),
	})
}

// parseAt reads the optional reference instant; reports are computed relative
// to it rather than to an implicit wall clock.
func parseAt(c *fiber.Ctx) (time.Time, error) {
	raw := strings.TrimSpace(c.Query("at"))
	if raw == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return at.UTC(), nil
}

func parseTypesParam(c *fiber.Ctx) []string {
	raw := strings.TrimSpace(c.Query("types"))
	if raw == "" {
		return nil
	}
	var types []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			types = append(types, trimmed)
		}
	}
	return types
}

type segmentMetricsDTO struct {
	Label string   `json:"label"`
	Users int      `json:"users"`
	D1    *float64 `json:"d1"`
	D3    *float64 `json:"d3"`
}

type retentionSummaryDTO struct {
	Users    int                 `json:"users"`
	D1       *float64            `json:"d1"`
	D3       *float64            `json:"d3"`
	Segments []segmentMetricsDTO `json:"segments"`
}

// toSummaryDTO maps undefined ratios to null. A segment with no users has no
// retention rate; encoding it as 0% would misread as total churn.
func toSummaryDTO(summary analytics.RetentionSummary) retentionSummaryDTO {
	dto := retentionSummaryDTO{
		Users:    summary.Users,
		D1:       nullableRatio(summary.D1),
		D3:       nullableRatio(summary.D3),
		Segments: make([]segmentMetricsDTO, 0, len(summary.Segments)),
	}
	for _, segment := range summary.Segments {
		dto.Segments = append(dto.Segments, segmentMetricsDTO{
			Label: segment.Label,
			Users: segment.Users,
			D1:    nullableRatio(segment.D1),
			D3:    nullableRatio(segment.D3),
		})
	}
	return dto
}

func nullableRatio(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
