package loyaltyapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
)

const (
	CallCreateMerchant = "create_merchant"
	CallUploadLogo     = "upload_logo"
	CallUploadBanner   = "upload_banner"
)

type createMerchantResult struct {
	Merchant types.BusinessProfile `json:"merchant"`
}

// CreateMerchant submits the business profile and returns the stored copy,
// including its server-assigned id.
func (c *Client) CreateMerchant(ctx context.Context, bearer string, profile types.BusinessProfile) (*types.BusinessProfile, error) {
	if strings.TrimSpace(bearer) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token is required")
	}
	profile.ID = ""
	profile.Status = ""
	req, err := jsonRequest(CallCreateMerchant, http.MethodPost, "/merchants", profile)
	if err != nil {
		return nil, err
	}
	req.bearer = bearer

	data, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var result createMerchantResult
	if err := decodeData(CallCreateMerchant, data, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Merchant.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "create merchant response missing business id")
	}
	return &result.Merchant, nil
}

// UploadLogo sends the logo as multipart field "logo".
func (c *Client) UploadLogo(ctx context.Context, bearer, businessID string, file types.MediaFile) error {
	return c.UploadMedia(ctx, bearer, businessID, enums.MediaKindLogo, file)
}

// UploadBanner sends the banner as multipart field "banner".
func (c *Client) UploadBanner(ctx context.Context, bearer, businessID string, file types.MediaFile) error {
	return c.UploadMedia(ctx, bearer, businessID, enums.MediaKindBanner, file)
}

// UploadMedia posts file to /merchants/{id}/{kind}. Any 2xx is success.
func (c *Client) UploadMedia(ctx context.Context, bearer, businessID string, kind enums.MediaKind, file types.MediaFile) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported media kind %q", kind))
	}
	if strings.TrimSpace(businessID) == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "business id is required before uploading media")
	}
	if strings.TrimSpace(bearer) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token is required")
	}

	body, contentType, err := multipartBody(kind.String(), file)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encode %s upload", kind))
	}

	_, err = c.do(ctx, request{
		call:        uploadCall(kind),
		method:      http.MethodPost,
		path:        fmt.Sprintf("/merchants/%s/%s", url.PathEscape(businessID), kind),
		bearer:      bearer,
		body:        body,
		contentType: contentType,
	})
	return err
}

func uploadCall(kind enums.MediaKind) string {
	if kind == enums.MediaKindBanner {
		return CallUploadBanner
	}
	return CallUploadLogo
}

func multipartBody(field string, file types.MediaFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := file.Name
	if strings.TrimSpace(name) == "" {
		name = field
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
