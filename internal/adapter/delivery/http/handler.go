package http

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var shortCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

// newValidator reports fields by their json names and knows the shortcode tag.
func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		return shortCodeRe.MatchString(code) && !entity.IsReservedShortCode(code)
	})

	return validate
}

// writeError renders err with its mapped status. Unexpected failures are
// attached to the request log entry.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, resp := errorStatus(err)

	if status >= http.StatusInternalServerError {
		httplog.LogEntrySetField(r.Context(), "op", slog.StringValue(op))
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// queryInt reads an integer query parameter, returning def when it is absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return n, true
}

func queryString(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}

// clientIP returns the caller address without its port. RealIP has already
// replaced RemoteAddr when a forwarding header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func optionalHeader(r *http.Request, name string) *string {
	v := r.Header.Get(name)
	if v == "" {
		return nil
	}
	return &v
}
