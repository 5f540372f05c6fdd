package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/engine"
	"github.com/desertthunder/pngx/internal/formatter"
	"github.com/desertthunder/pngx/internal/models"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
)

const (
	searchRoute = "GET /images/search"
	imageRoute  = "GET /images/{id}"
)

// ImageFinder is the read side of the image index. [repositories.ImageRepository] implements it.
type ImageFinder interface {
	Search(ctx context.Context, q repositories.SearchQuery) ([]*models.ImageRecord, error)
	Get(id string) (*models.ImageRecord, error)
	Count() (int, error)
}

var _ ImageFinder = (*repositories.ImageRepository)(nil)

// ImagesHandler serves image lookups and keyword searches.
//
//	GET /images/search?q=cat&q=dog&mode=3&fields=file_name,description&limit=10&format=csv
//	GET /images/{id}
type ImagesHandler struct {
	images ImageFinder
	logger *log.Logger
}

// NewImagesHandler creates an [ImagesHandler].
func NewImagesHandler(images ImageFinder, logger *log.Logger) *ImagesHandler {
	return &ImagesHandler{images: images, logger: logger}
}

func (h *ImagesHandler) Routes() []string {
	return []string{searchRoute, imageRoute}
}

func (h *ImagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case searchRoute:
		h.search(w, r)
	case imageRoute:
		h.get(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ImagesHandler) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	format := formatter.JSON
	if name := params.Get("format"); name != "" {
		f, err := formatter.ParseFormat(name)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		format = f
	}

	query := repositories.SearchQuery{Mode: repositories.ModeAllFields, Keywords: params["q"]}
	if raw := params.Get("mode"); raw != "" {
		mode, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: mode %q", shared.ErrInvalidArgument, raw))
			return
		}
		query.Mode = repositories.SearchMode(mode)
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: limit %q", shared.ErrInvalidArgument, raw))
			return
		}
		query.Limit = limit
	}
	for _, raw := range params["fields"] {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				query.Fields = append(query.Fields, f)
			}
		}
	}

	records, err := h.images.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	data, err := formatter.Export(formatter.FromRecords(records), format)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	engine.LoggerFrom(r.Context(), h.logger).Debug("search served", "mode", query.Mode, "results", len(records))
	w.Header().Set("Content-Type", format.ContentType())
	w.Write(data)
}

func (h *ImagesHandler) get(w http.ResponseWriter, r *http.Request) {
	record, err := h.images.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, formatter.FromRecord(record))
}

// Health reports that the index can be read, along with its image count.
func Health(images ImageFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := images.Count()
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "images": count})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidFlag):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if id, ok := engine.CorrelationID(r.Context()); ok {
		body["correlation_id"] = id
	}
	writeJSON(w, status, body)
}
