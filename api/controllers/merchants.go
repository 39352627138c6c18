package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/loyalty-portal/api/middleware"
	"github.com/angelmondragon/loyalty-portal/api/responses"
	"github.com/angelmondragon/loyalty-portal/api/validators"
	"github.com/angelmondragon/loyalty-portal/internal/accounts"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/angelmondragon/loyalty-portal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

type merchantResponse struct {
	Merchant types.BusinessProfile `json:"merchant"`
}

type statusRequest struct {
	Status enums.BusinessStatus `json:"status" validate:"required"`
}

// CreateMerchant stores the business profile of the authenticated merchant.
func CreateMerchant(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		profile, err := decodeProfile(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateMerchant(r.Context(), middleware.UserIDFromContext(r.Context()), profile)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, "Business created", merchantResponse{Merchant: *created})
	}
}

// UploadMerchantMedia accepts the logo or banner as a multipart field named after the kind.
func UploadMerchantMedia(svc accounts.Service, kind enums.MediaKind, limits config.OnboardingConfig, logg *logger.Logger) http.HandlerFunc {
	maxBytes := limits.LogoMaxBytes
	if kind == enums.MediaKindBanner {
		maxBytes = limits.BannerMaxBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		file, err := validators.ReadUpload(w, r, kind.String(), maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AttachMedia(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), kind, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "Upload successful", merchantResponse{Merchant: *updated})
	}
}

// SetMerchantStatus lets an admin approve or reject a business.
func SetMerchantStatus(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		var body statusRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.SetBusinessStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, "Status updated", merchantResponse{Merchant: *updated})
	}
}

func decodeProfile(r *http.Request) (types.BusinessProfile, error) {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	var profile types.BusinessProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		return types.BusinessProfile{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}

	fields := map[string]string{}
	for field, value := range map[string]string{
		"businessName": profile.BusinessName,
		"businessType": profile.BusinessType,
		"category":     profile.Category,
		"email":        profile.Email,
		"phone":        profile.Phone,
		"description":  profile.Description,
	} {
		if strings.TrimSpace(value) == "" {
			fields[field] = "is required"
		}
	}
	for field, msg := range validate.Fields(validate.Struct(profile.Address)) {
		fields["address."+field] = msg
	}
	if len(fields) > 0 {
		return types.BusinessProfile{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(fields)
	}
	return profile, nil
}
