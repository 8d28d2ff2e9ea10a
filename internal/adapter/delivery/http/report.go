package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/adapter/export/xlsx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type reportUseCase interface {
	DailyAccessSeries(ctx context.Context, days int) ([]entity.DailyAccess, error)
	TopLinks(ctx context.Context, limit int) ([]entity.TopLink, error)
	PeakAccessDay(ctx context.Context) (*entity.PeakAccess, error)
	ReportSummary(ctx context.Context, days, topLimit int) (*entity.Report, error)
}

type reportHandler struct {
	useCase     reportUseCase
	validate    *validator.Validate
	baseURL     string
	defaultDays int
	topLimit    int
}

func newReportHandler(useCase reportUseCase, validate *validator.Validate, cfg Config) *reportHandler {
	return &reportHandler{
		useCase:     useCase,
		validate:    validate,
		baseURL:     cfg.BaseURL,
		defaultDays: min(cfg.DefaultDays, maxReportDays),
		topLimit:    min(cfg.TopLimit, maxTopURLsLimit),
	}
}

type intParam struct {
	name string
	dst  *int
	def  int
}

// parseQuery fills the params from the query string and validates q, which
// holds them. It answers 400 itself when anything is invalid.
func (h *reportHandler) parseQuery(w http.ResponseWriter, r *http.Request, q any, params ...intParam) bool {
	for _, p := range params {
		n, ok := queryInt(r, p.name, p.def)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, fieldErrorResponse(p.name, "must be an integer"))
			return false
		}
		*p.dst = n
	}

	if err := h.validate.Struct(q); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

// parseStatsQuery reads the parameters shared by stats and export.
func (h *reportHandler) parseStatsQuery(w http.ResponseWriter, r *http.Request) (statsQuery, bool) {
	var q statsQuery

	ok := h.parseQuery(w, r, &q,
		intParam{"days", &q.Days, h.defaultDays},
		intParam{"topLimit", &q.TopLimit, min(h.topLimit, maxStatsTopLimit)},
	)

	return q, ok
}

func (h *reportHandler) stats(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.reportHandler.stats"

	q, ok := h.parseStatsQuery(w, r)
	if !ok {
		return
	}

	report, err := h.useCase.ReportSummary(r.Context(), q.Days, q.TopLimit)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toReportStats(report, h.baseURL))
}

func (h *reportHandler) daily(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.reportHandler.daily"

	var q dailyQuery
	if !h.parseQuery(w, r, &q, intParam{"days", &q.Days, h.defaultDays}) {
		return
	}

	series, err := h.useCase.DailyAccessSeries(r.Context(), q.Days)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toDailyStats(series))
}

func (h *reportHandler) topURLs(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.reportHandler.topURLs"

	var q topURLsQuery
	if !h.parseQuery(w, r, &q, intParam{"limit", &q.Limit, h.topLimit}) {
		return
	}

	top, err := h.useCase.TopLinks(r.Context(), q.Limit)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toTopURLs(top, h.baseURL))
}

// peakAccess answers with a JSON null when nothing has been recorded yet.
func (h *reportHandler) peakAccess(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.reportHandler.peakAccess"

	peak, err := h.useCase.PeakAccessDay(r.Context())
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	var resp *peakAccessResponse
	if peak != nil {
		resp = &peakAccessResponse{
			Date:                   peak.Date.Format(entity.DateLayout),
			AccessCount:            peak.AccessCount,
			PercentageAboveAverage: peak.PercentageAboveAverage,
		}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *reportHandler) export(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.reportHandler.export"

	q, ok := h.parseStatsQuery(w, r)
	if !ok {
		return
	}

	report, err := h.useCase.ReportSummary(r.Context(), q.Days, q.TopLimit)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	buf, err := xlsx.WriteReport(report, func(code string) string {
		return shortURL(h.baseURL, code)
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="access-report-%dd.xlsx"`, q.Days))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
