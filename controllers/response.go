package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"go-storefront/apperror"
	"go-storefront/middleware"
	"go-storefront/storage"
	"go-storefront/utils"
)

// RequestTimeout bounds the store calls made by a single handler.
var RequestTimeout = 10 * time.Second

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), RequestTimeout)
}

// respondError writes err as a JSON error body. Internal causes are logged
// and replaced by a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.Internal {
		middleware.LoggerFromContext(r.Context()).WithError(err).Error("request failed")
	}
	utils.WriteError(w, appErr.Status(), string(appErr.Kind), appErr.Message, appErr.Details)
}

// notFoundAs gives storage.ErrNotFound a resource-specific message.
func notFoundAs(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.Wrap(apperror.NotFound, message, err)
	}
	return err
}

// pathID parses a numeric path variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.New(apperror.BadRequest, "Invalid "+name)
	}
	return id, nil
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := utils.DecodeJSON(r, w, dst); err != nil {
		return apperror.Wrap(apperror.BadRequest, "Invalid request body", err)
	}
	return validateRequest(dst)
}

func currentClaims(r *http.Request) (*utils.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apperror.New(apperror.Unauthorized, "Access token required")
	}
	return claims, nil
}
