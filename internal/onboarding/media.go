package onboarding

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/gabriel-vasile/mimetype"
)

type stagedFile struct {
	file    types.MediaFile
	preview string
}

// StagedMedia summarizes a selected file without its bytes.
type StagedMedia struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	// Preview is a data URI of the file.
	Preview  string `json:"preview"`
	Uploaded bool   `json:"uploaded"`
}

// StageLogo validates and stages the logo. A rejected file leaves the
// previously staged logo in place.
func (c *Controller) StageLogo(file types.MediaFile) error {
	return c.stage(enums.MediaKindLogo, file)
}

// StageBanner validates and stages the banner. A rejected file leaves the
// previously staged banner in place.
func (c *Controller) StageBanner(file types.MediaFile) error {
	return c.stage(enums.MediaKindBanner, file)
}

func (c *Controller) stage(kind enums.MediaKind, file types.MediaFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return c.conflictLocked("wait for the current request to finish")
	}
	if c.phase != enums.OnboardingPhaseAwaitingMedia {
		return c.conflictLocked("media can be added once the business profile is created")
	}
	c.clearNoticeLocked()

	staged, err := c.checkMedia(kind, file)
	if err != nil {
		c.notice = types.ErrorNotice(pkgerrors.UserMessage(err))
		c.fieldErrors = map[string]string{kind.String(): pkgerrors.UserMessage(err)}
		return err
	}
	c.media[kind] = staged
	c.uploaded[kind] = false
	return nil
}

func (c *Controller) checkMedia(kind enums.MediaKind, file types.MediaFile) (*stagedFile, error) {
	label := kind.Label()
	if file.Size() == 0 {
		return nil, mediaError(kind, fmt.Sprintf("%s file is empty", label))
	}
	limit := c.limits.LogoMaxBytes
	if kind == enums.MediaKindBanner {
		limit = c.limits.BannerMaxBytes
	}
	if file.Size() > limit {
		return nil, mediaError(kind, fmt.Sprintf("%s must be %s or smaller", label, formatBytes(limit)))
	}

	contentType, ext, ok := mediaType(file)
	if !ok {
		return nil, mediaError(kind, fmt.Sprintf("%s must be an image file", label))
	}
	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = kind.String() + ext
	}
	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	return &stagedFile{
		file: types.MediaFile{
			Name:        name,
			ContentType: contentType,
			Data:        data,
		},
		preview: "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// mediaType resolves the file's content type. A declared type wins and must be
// an image type; the sniffed type is used only when nothing is declared.
func mediaType(file types.MediaFile) (contentType, ext string, ok bool) {
	declared := strings.ToLower(strings.TrimSpace(file.ContentType))
	if idx := strings.Index(declared, ";"); idx >= 0 {
		declared = strings.TrimSpace(declared[:idx])
	}
	if declared != "" {
		if !strings.HasPrefix(declared, "image/") {
			return "", "", false
		}
		if known := mimetype.Lookup(declared); known != nil {
			ext = known.Extension()
		}
		return declared, ext, true
	}

	detected := mimetype.Detect(file.Data)
	contentType = detected.String()
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", false
	}
	return contentType, detected.Extension(), true
}

func mediaError(kind enums.MediaKind, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]string{kind.String(): message})
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func (c *Controller) summaryLocked(kind enums.MediaKind) *StagedMedia {
	staged, ok := c.media[kind]
	if !ok {
		return nil
	}
	return &StagedMedia{
		Name:        staged.file.Name,
		ContentType: staged.file.ContentType,
		Size:        staged.file.Size(),
		Preview:     staged.preview,
		Uploaded:    c.uploaded[kind],
	}
}

func (c *Controller) canCompleteLocked() bool {
	if c.busy || c.phase != enums.OnboardingPhaseAwaitingMedia || c.businessID == "" {
		return false
	}
	_, logo := c.media[enums.MediaKindLogo]
	_, banner := c.media[enums.MediaKindBanner]
	return logo && banner
}
