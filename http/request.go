package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agdev/storagegate"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type staticUploadRequest struct {
	Ref    storagegate.StaticObjectRef `json:"ref"`
	Option storagegate.UploadOptions   `json:"option"`
}

type staticDownloadRequest struct {
	Ref    storagegate.StaticObjectRef `json:"ref"`
	Option storagegate.DownloadOptions `json:"option"`
}

type dynamicUploadRequest struct {
	Ref    storagegate.DynamicObjectRef `json:"ref"`
	Option storagegate.UploadOptions    `json:"option"`
}

type dynamicDownloadRequest struct {
	Ref    storagegate.DynamicObjectRef `json:"ref"`
	Option storagegate.DownloadOptions  `json:"option"`
}

// decodeBody reads a JSON body of at most maxBytes into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", storagegate.ErrInvalidInput, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed json body: %w", storagegate.ErrInvalidInput, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", storagegate.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
