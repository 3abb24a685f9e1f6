package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/domain"
	"github.com/andresuchdata/pharmalytics/internal/loader"
	"github.com/andresuchdata/pharmalytics/internal/report"
	"github.com/andresuchdata/pharmalytics/internal/service"
)

const uploadField = "file"

type AnalysisHandler struct {
	service     *service.AnalysisService
	maxUploadMB int
}

func NewAnalysisHandler(service *service.AnalysisService, maxUploadMB int) *AnalysisHandler {
	return &AnalysisHandler{service: service, maxUploadMB: maxUploadMB}
}

// AnalysisResponse is the JSON envelope of POST /analysis
type AnalysisResponse struct {
	report.Meta
	Cached bool                   `json:"cached"`
	Result *domain.AnalysisResult `json:"result"`
}

// Analyze runs the analysis over an uploaded CSV/XLSX file and returns the result as JSON.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	req, file, ok := h.parseRequest(c)
	if !ok {
		return
	}
	defer file.Close()
	name := req.Name

	out, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Meta:   report.NewMeta(name, out.Options.AsMap()),
		Cached: out.Cached,
		Result: out.Result,
	})
}

// Report runs the analysis and returns the rendered report as an attachment.
// With store=true the report is also persisted and its location returned in X-Report-Location.
func (h *AnalysisHandler) Report(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatExcel)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, file, ok := h.parseRequest(c)
	if !ok {
		return
	}
	defer file.Close()
	name := req.Name

	out, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	rendered, err := h.service.Render(out, name, format)
	if err != nil {
		writeError(c, err)
		return
	}

	if store, _ := strconv.ParseBool(c.DefaultQuery("store", "false")); store {
		if !h.service.HasStore() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "report storage is not configured"})
			return
		}
		obj, err := h.service.Store(c.Request.Context(), rendered)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("X-Report-Location", obj.Location)
	}

	c.Header("X-Run-ID", rendered.Meta.RunID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rendered.FileName))
	c.Data(http.StatusOK, format.ContentType(), rendered.Data)
}

// GetOptions returns the effective default options and the accepted keys.
func (h *AnalysisHandler) GetOptions(c *gin.Context) {
	opts, err := h.service.ResolveOptions(nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"options": opts.AsMap(),
		"keys":    analytics.OptionKeys(),
		"formats": []report.Format{report.FormatExcel, report.FormatHTML, report.FormatJSON},
	})
}

// PurgeCache drops every cached analysis result.
func (h *AnalysisHandler) PurgeCache(c *gin.Context) {
	if err := h.service.InvalidateCache(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "purged"})
}

// parseRequest reads the uploaded file and the option overrides. Query
// parameters and form fields are both accepted; form fields win.
// The caller must close the returned request file.
func (h *AnalysisHandler) parseRequest(c *gin.Context) (service.Request, io.Closer, bool) {
	if h.maxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB)<<20)
	}

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %dMB", h.maxUploadMB)})
			return service.Request{}, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided (multipart field \"file\")"})
		return service.Request{}, nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file upload"})
		return service.Request{}, nil, false
	}

	overrides := make(map[string]interface{})
	for _, key := range analytics.OptionKeys() {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			overrides[key] = v
		}
		if v := strings.TrimSpace(c.PostForm(key)); v != "" {
			overrides[key] = v
		}
	}

	req := service.Request{
		Name:    fileHeader.Filename,
		Reader:  file,
		Options: overrides,
	}

	if mode := formValue(c, "mode"); mode != "" {
		req.Mode = analytics.ParseMode(mode)
	}
	for _, w := range []struct {
		key string
		dst **time.Time
	}{
		{"window_start", &req.WindowStart},
		{"window_end", &req.WindowEnd},
	} {
		raw := formValue(c, w.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			file.Close()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be YYYY-MM-DD, got %q", w.key, raw)})
			return service.Request{}, nil, false
		}
		*w.dst = &t
	}

	return req, file, true
}

func formValue(c *gin.Context, key string) string {
	if v := strings.TrimSpace(c.PostForm(key)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query(key))
}

// writeError maps analysis errors to HTTP statuses
func writeError(c *gin.Context, err error) {
	var (
		verr *analytics.ValidationError
		cerr *analytics.ConfigurationError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "violations": verr.Violations})
	case errors.As(err, &cerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": cerr.Error(), "fields": cerr.Fields})
	case errors.Is(err, loader.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "analysis cancelled"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("analysis request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
}
