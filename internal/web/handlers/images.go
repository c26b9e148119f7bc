package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// imagesRequest is the JSON form of an image upload. Each image is a data URL
// ("data:image/jpeg;base64,...") or bare base64.
type imagesRequest struct {
	Images []string `json:"images" validate:"required,min=1,dive,required"`
}

var errNoImages = errors.New("no images provided")

// readImages reads uploaded images from a multipart form field "images" or
// from a JSON body of data URLs.
func readImages(r *http.Request) ([][]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		files := r.MultipartForm.File["images"]
		if len(files) == 0 {
			return nil, errNoImages
		}
		images := make([][]byte, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			images = append(images, data)
		}
		return images, nil
	}

	var req imagesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, constants.MaxUploadSize)).Decode(&req); err != nil {
		return nil, errors.New(errInvalidRequestBody)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, errNoImages
	}
	images := make([][]byte, 0, len(req.Images))
	for i, s := range req.Images {
		data, err := decodeDataURL(s)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// decodeDataURL decodes a base64 data URL or a bare base64 string.
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

// readFrame reads a single pushed camera frame from the request body, either
// raw image bytes or a JSON {"image": dataURL}.
func readFrame(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if len(body) > constants.MaxFrameSize {
		return nil, fmt.Errorf("frame exceeds %d bytes", constants.MaxFrameSize)
	}
	if len(body) == 0 {
		return nil, errors.New("empty frame")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return body, nil
	}
	var req struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Image == "" {
		return nil, errors.New(errInvalidRequestBody)
	}
	return decodeDataURL(req.Image)
}
