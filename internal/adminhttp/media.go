package adminhttp

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/frenchline/adminapi/internal/media"
	"github.com/frenchline/adminapi/internal/pipeline"
)

// maxUploadBytes caps one media upload. Lesson audio and images stay small;
// video lives elsewhere.
var maxUploadBytes int64 = 25 << 20

// UploadExempt reports whether the request is the media upload, which
// enforces its own larger body cap instead of the shared one.
func UploadExempt(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/api/media"
}

// allowedUploadTypes is the media the portal accepts.
var allowedUploadTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/ogg":  true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func (a *API) getMedia(ctx *pipeline.Context) (*pipeline.Response, error) {
	obj, err := a.media.Get(ctx.Request.Context(), ctx.Params["key"])
	if errors.Is(err, media.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "Media not found")
	}
	if err != nil {
		return nil, err
	}

	return &pipeline.Response{Raw: func(w http.ResponseWriter) {
		defer obj.Body.Close()
		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		if obj.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		io.Copy(w, obj.Body)
	}}, nil
}

// uploadMedia accepts one multipart file under the "file" field.
func (a *API) uploadMedia(ctx *pipeline.Context) (*pipeline.Response, error) {
	r := ctx.Request
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pipeline.Error(http.StatusRequestEntityTooLarge, "Upload too large")
		}
		return nil, pipeline.Error(http.StatusBadRequest, "Missing file upload")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		return nil, pipeline.Error(http.StatusUnsupportedMediaType, "Unsupported media type")
	}

	key, err := a.media.Put(r.Context(), header.Filename, contentType, file)
	if err != nil {
		return nil, err
	}
	a.audit(r.Context(), "upload_media", ctx.CallerID, "media_key", key)

	return &pipeline.Response{Status: http.StatusCreated, Body: map[string]any{
		"key":     key,
		"message": "Media uploaded successfully",
	}}, nil
}

func (a *API) deleteMedia(ctx *pipeline.Context) (*pipeline.Response, error) {
	key := ctx.Params["key"]
	if err := a.media.Delete(ctx.Request.Context(), key); err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "delete_media", ctx.CallerID, "media_key", key)

	return &pipeline.Response{Body: map[string]any{
		"message": "Media deleted successfully",
	}}, nil
}
