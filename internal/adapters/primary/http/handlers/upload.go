package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// readUpload reads the multipart "image" field, bounded by the upload limit
func (h *Handler) readUpload(c *gin.Context) (domain.ImageUpload, error) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return domain.ImageUpload{}, domain.ErrImageTooLarge
		}
		return domain.ImageUpload{}, domain.ErrMissingImage
	}

	f, err := fh.Open()
	if err != nil {
		return domain.ImageUpload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.ImageUpload{}, fmt.Errorf("read upload: %w", err)
	}

	return domain.ImageUpload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

// param reads a form field, falling back to the query string
func param(c *gin.Context, key, def string) string {
	if v, ok := c.GetPostForm(key); ok && v != "" {
		return v
	}
	return c.DefaultQuery(key, def)
}

func (h *Handler) detectParams(c *gin.Context) (float64, bool, error) {
	conf, err := strconv.ParseFloat(param(c, "conf", strconv.FormatFloat(h.opts.DefaultConf, 'f', -1, 64)), 64)
	if err != nil {
		return 0, false, domain.ErrInvalidConfidence
	}
	showLabels, err := strconv.ParseBool(param(c, "show_labels", "true"))
	if err != nil {
		return 0, false, fmt.Errorf("%w: show_labels must be a boolean", domain.ErrInvalidParameter)
	}
	return conf, showLabels, nil
}
