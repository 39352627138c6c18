package validators

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/gabriel-vasile/mimetype"
)

const multipartMemory = 1 << 20

// ReadUpload reads the single file sent under field. Files above maxBytes and
// files whose content is not an image are rejected.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (types.MediaFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s exceeds %d bytes", field, maxBytes))
		}
		return types.MediaFile{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s file is required", field)).
			WithDetails(map[string]string{field: "is required"})
	}
	defer file.Close()

	if header.Size > maxBytes {
		return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s exceeds %d bytes", field, maxBytes))
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return types.MediaFile{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > maxBytes {
		return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s exceeds %d bytes", field, maxBytes))
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return types.MediaFile{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be an image", field)).
			WithDetails(map[string]string{field: "must be an image"})
	}

	return types.MediaFile{
		Name:        header.Filename,
		ContentType: detected.String(),
		Data:        data,
	}, nil
}
