package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/internal/service"
	"github.com/shortlyhq/shortly/internal/storage"
	"github.com/shortlyhq/shortly/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The request must contain a valid absolute URL and may carry a custom short
// code and a validity in minutes. The handler validates the input, calls the
// shortening service, and returns the allocated short code with metadata.
func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		var validity *time.Duration
		if req.ValidityMinutes != 0 {
			d := time.Duration(req.ValidityMinutes) * time.Minute
			validity = &d
		}

		url, err := svc.ShortenURL(r.Context(), req.URL, req.CustomCode, validity)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL),
				errors.Is(err, service.ErrInvalidShortCode),
				errors.Is(err, service.ErrInvalidValidity):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
			case errors.Is(err, storage.ErrShortCodeExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeExistsResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(baseURL, url)))
	}
}

// handleListURLs handles GET requests to list every shortened URL.
func handleListURLs(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "The URLs were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := svc.ListURLs(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for _, url := range urls {
			data = append(data, toURLResponse(baseURL, url))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleGetURLStats handles GET requests to retrieve usage statistics for a
// shortened URL.
//
// The read is pure: statistics are recomputed from the click history on every
// request, and expired URLs remain queryable.
func handleGetURLStats(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLStats(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, storage.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := toURLStatsResponse(baseURL, url, url.Stats(time.Now()))

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleRedirect resolves a short code and answers with a redirect to the
// long URL, recording one click event. Unknown and expired codes render a
// terminal page with a link back to the home surface.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		click := models.NewClick(time.Now().UTC(), r.Referer(), r.UserAgent())

		url, err := svc.ResolveShortCode(r.Context(), shortCode, click)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrURLNotFound):
				renderTerminalPage(w, http.StatusNotFound, "Short link not found",
					"The short link you followed doesn't exist.")
			case errors.Is(err, service.ErrURLExpired):
				renderTerminalPage(w, http.StatusGone, "Short link expired",
					"The short link you followed has expired.")
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				renderTerminalPage(w, http.StatusInternalServerError, "Something went wrong",
					"An error occurred during redirection. Please try again later.")
			}
			return
		}

		http.Redirect(w, r, url.LongURL, http.StatusFound)
	}
}
