package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// createURLRequest is the body of a short link creation.
type createURLRequest struct {
	OriginalURL string     `json:"originalUrl" validate:"required,url,max=2048"`
	CustomCode  string     `json:"customCode" validate:"omitempty,min=3,max=50,shortcode"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// urlResponse describes a short link.
type urlResponse struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	ShortURL    string    `json:"shortUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int64     `json:"accessCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toURLResponse(link *entity.ShortLink, baseURL string) urlResponse {
	return urlResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    shortURL(baseURL, link.ShortCode),
		ExpiresAt:   link.ExpiresAt,
		AccessCount: link.AccessCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

func shortURL(baseURL, code string) string {
	return baseURL + "/" + code
}

// listQuery holds the query parameters of the listing endpoint.
type listQuery struct {
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1,max=100"`
	Search    string `json:"search" validate:"max=255"`
	SortBy    string `json:"sortBy" validate:"oneof=createdAt updatedAt accessCount expiresAt"`
	SortOrder string `json:"sortOrder" validate:"oneof=asc desc"`
}

type paginationMeta struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type urlListResponse struct {
	Data []urlResponse `json:"data"`
	Meta paginationMeta `json:"meta"`
}

func toURLListResponse(page *entity.Page[entity.ShortLink], baseURL string) urlListResponse {
	data := make([]urlResponse, 0, len(page.Items))
	for i := range page.Items {
		data = append(data, toURLResponse(&page.Items[i], baseURL))
	}

	return urlListResponse{
		Data: data,
		Meta: paginationMeta{
			CurrentPage: page.CurrentPage,
			PageSize:    page.PageSize,
			TotalPages:  page.TotalPages,
			TotalItems:  page.TotalItems,
			HasNext:     page.HasNext,
			HasPrevious: page.HasPrevious,
		},
	}
}

const (
	maxReportDays    = 365
	maxTopURLsLimit  = 100
	maxStatsTopLimit = 50
)

// Each report endpoint validates only the parameters it reads.

type dailyQuery struct {
	Days int `json:"days" validate:"min=1,max=365"`
}

type topURLsQuery struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

type statsQuery struct {
	Days     int `json:"days" validate:"min=1,max=365"`
	TopLimit int `json:"topLimit" validate:"min=1,max=50"`
}

type dailyStatResponse struct {
	Date        string `json:"date"`
	AccessCount int64  `json:"accessCount"`
}

func toDailyStats(series []entity.DailyAccess) []dailyStatResponse {
	resp := make([]dailyStatResponse, 0, len(series))
	for _, d := range series {
		resp = append(resp, dailyStatResponse{Date: d.Day(), AccessCount: d.AccessCount})
	}
	return resp
}

type topURLResponse struct {
	URL           topURLLink `json:"url"`
	TotalAccesses int64      `json:"totalAccesses"`
}

type topURLLink struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	ShortURL    string    `json:"shortUrl"`
	AccessCount int64     `json:"accessCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTopURLs(top []entity.TopLink, baseURL string) []topURLResponse {
	resp := make([]topURLResponse, 0, len(top))
	for _, t := range top {
		resp = append(resp, topURLResponse{
			URL: topURLLink{
				ID:          t.ShortLink.ID,
				ShortCode:   t.ShortLink.ShortCode,
				OriginalURL: t.ShortLink.OriginalURL,
				ShortURL:    shortURL(baseURL, t.ShortLink.ShortCode),
				AccessCount: t.ShortLink.AccessCount,
				CreatedAt:   t.ShortLink.CreatedAt,
			},
			TotalAccesses: t.TotalAccesses,
		})
	}
	return resp
}

type summaryResponse struct {
	TotalAccesses         int64   `json:"totalAccesses"`
	AverageAccessesPerDay float64 `json:"averageAccessesPerDay"`
	MostActiveDay         *string `json:"mostActiveDay"`
}

type reportStatsResponse struct {
	DailyStats []dailyStatResponse `json:"dailyStats"`
	TopURLs    []topURLResponse    `json:"topUrls"`
	Summary    summaryResponse     `json:"summary"`
}

func toReportStats(report *entity.Report, baseURL string) reportStatsResponse {
	summary := summaryResponse{
		TotalAccesses:         report.Summary.TotalAccesses,
		AverageAccessesPerDay: report.Summary.AverageAccessesPerDay,
	}
	if report.Summary.MostActiveDay != nil {
		day := report.Summary.MostActiveDay.Format(entity.DateLayout)
		summary.MostActiveDay = &day
	}

	return reportStatsResponse{
		DailyStats: toDailyStats(report.Daily),
		TopURLs:    toTopURLs(report.TopLinks, baseURL),
		Summary:    summary,
	}
}

type peakAccessResponse struct {
	Date                   string  `json:"date"`
	AccessCount            int64   `json:"accessCount"`
	PercentageAboveAverage float64 `json:"percentageAboveAverage"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

func newErrorResponse(message string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: message,
	}
}

var (
	emptyRequestBodyResponse   = newErrorResponse("empty request body")
	invalidRequestBodyResponse = newErrorResponse("invalid request body")
	serverErrorResponse        = newErrorResponse("server error occurred")
)

// errorStatus maps a use case error to its HTTP status and body.
func errorStatus(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, entity.ErrRateLimitExceeded):
		return http.StatusForbidden, newErrorResponse("rate limit exceeded, try again later")
	case errors.Is(err, entity.ErrCodeGenerationExhausted):
		return http.StatusBadRequest, newErrorResponse("unable to generate unique short code")
	case errors.Is(err, entity.ErrShortCodeExists):
		return http.StatusConflict, newErrorResponse("short code already exists")
	case errors.Is(err, entity.ErrInvalidURL):
		return http.StatusBadRequest, newErrorResponse("invalid url")
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest, newErrorResponse("invalid input")
	case errors.Is(err, entity.ErrLinkNotFound):
		return http.StatusNotFound, newErrorResponse("short link not found")
	case errors.Is(err, entity.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, newErrorResponse("storage unavailable")
	default:
		return http.StatusInternalServerError, serverErrorResponse
	}
}

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "shortcode":
		return "only letters, digits, '-' and '_' are allowed, and built-in route names are reserved"
	case "min":
		return "value is too small"
	case "max":
		return "value is too large"
	case "oneof":
		return "unsupported value"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}

func fieldErrorResponse(field, message string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  []validationError{{Field: field, Message: message}},
	}
}
