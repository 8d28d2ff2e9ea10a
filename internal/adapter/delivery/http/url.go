package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type urlUseCase interface {
	CreateShortLink(ctx context.Context, params entity.CreateShortLinkParams) (*entity.ShortLink, error)
	ResolveAndTrack(ctx context.Context, code string, meta entity.AccessMeta) (string, error)
	ListShortLinks(ctx context.Context, params entity.ListParams) (*entity.Page[entity.ShortLink], error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	baseURL  string
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, baseURL string) *urlHandler {
	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		baseURL:  baseURL,
	}
}

func (h *urlHandler) createURL(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.urlHandler.createURL"

	var req createURLRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	link, err := h.useCase.CreateShortLink(r.Context(), entity.CreateShortLinkParams{
		OriginalURL: req.OriginalURL,
		CreatorIP:   clientIP(r),
		CustomCode:  req.CustomCode,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toURLResponse(link, h.baseURL))
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.urlHandler.listURLs"

	q := listQuery{
		Search:    r.URL.Query().Get("search"),
		SortBy:    queryString(r, "sortBy", string(entity.SortByCreatedAt)),
		SortOrder: queryString(r, "sortOrder", string(entity.SortDesc)),
	}

	var ok bool

	if q.Page, ok = queryInt(r, "page", 1); !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, fieldErrorResponse("page", "must be an integer"))
		return
	}
	if q.Limit, ok = queryInt(r, "limit", entity.DefaultPageSize); !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, fieldErrorResponse("limit", "must be an integer"))
		return
	}

	if err := h.validate.Struct(q); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	page, err := h.useCase.ListShortLinks(r.Context(), entity.ListParams{
		Page:      q.Page,
		PageSize:  q.Limit,
		Search:    q.Search,
		SortBy:    entity.SortField(q.SortBy),
		SortOrder: entity.SortOrder(q.SortOrder),
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLListResponse(page, h.baseURL))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.urlHandler.redirect"

	shortCode := chi.URLParam(r, "shortCode")
	ip := clientIP(r)

	originalURL, err := h.useCase.ResolveAndTrack(r.Context(), shortCode, entity.AccessMeta{
		UserAgent: optionalHeader(r, "User-Agent"),
		IPAddress: &ip,
		Referer:   optionalHeader(r, "Referer"),
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}
