package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdfdesk/internal/pdf"
	"pdfdesk/internal/render"
	"pdfdesk/internal/task"
)

const previewDefaultWidth = 300

var errNoFile = errors.New("no file uploaded")

// requestError is a client-facing failure with its HTTP status.
type requestError struct {
	status int
	msg    string
	failed []string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

func (a *API) respondSubmit(c *gin.Context, resp submitResponse, err *requestError) {
	if err != nil {
		body := gin.H{"error": err.msg}
		if len(err.failed) > 0 {
			body["failed"] = err.failed
		}
		c.JSON(err.status, body)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// Merge loads the uploaded files and merges them in upload order.
func (a *API) Merge(c *gin.Context) {
	resp, err := a.submitMerge(c)
	a.respondSubmit(c, resp, err)
}

// Split splits one uploaded document at the given page numbers.
func (a *API) Split(c *gin.Context) {
	resp, err := a.submitSplit(c)
	a.respondSubmit(c, resp, err)
}

// Render converts pages of the uploaded document to images.
func (a *API) Render(c *gin.Context) {
	resp, err := a.submitRender(c)
	a.respondSubmit(c, resp, err)
}

func (a *API) submitMerge(c *gin.Context) (submitResponse, *requestError) {
	if err := a.checkBusy(c); err != nil {
		return submitResponse{}, err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return submitResponse{}, formError(err)
	}
	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	if len(headers) == 0 {
		return submitResponse{}, badRequest(errNoFile.Error())
	}

	separators, err := parseInts(c.PostForm("separators"))
	if err != nil {
		return submitResponse{}, badRequest("invalid separators: " + err.Error())
	}
	// rejected uploads keep their slot so separators still line up
	sources := make([]pdf.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := a.readUpload(fh)
		if err != nil {
			log.Warn().Str("file", fh.Filename).Err(err).Msg("upload rejected")
			src = pdf.Source{Name: fh.Filename, Err: err}
		}
		sources = append(sources, src)
	}
	session, errs := a.svc.Loader().Stage(c.Request.Context(), sources, separators)
	var failed []string
	for _, e := range errs {
		failed = append(failed, e.Error())
	}
	if session.Len() == 0 {
		return submitResponse{}, &requestError{status: http.StatusBadRequest, msg: pdf.ErrNoDocuments.Error(), failed: failed}
	}

	cfg := session.Config(strings.TrimSpace(c.PostForm("output_name")))
	if v, ok := c.GetPostForm("separate"); ok {
		cfg.CreateSeparateFiles = parseBool(v)
	}

	id, err := a.svc.SubmitMerge(session.Items(), cfg)
	if err != nil {
		log.Error().Err(err).Msg("submit merge failed")
		return submitResponse{}, &requestError{status: http.StatusInternalServerError, msg: err.Error()}
	}
	return submitResponse{TaskID: id, Status: task.StatusPending, Failed: failed}, nil
}

func (a *API) submitSplit(c *gin.Context) (submitResponse, *requestError) {
	if err := a.checkBusy(c); err != nil {
		return submitResponse{}, err
	}
	doc, rerr := a.loadForm(c)
	if rerr != nil {
		return submitResponse{}, rerr
	}
	points, err := parseInts(c.PostForm("split_points"))
	if err != nil {
		return submitResponse{}, badRequest("invalid split_points: " + err.Error())
	}
	id, err := a.svc.SubmitSplit(doc, task.SplitConfig{
		BaseFileName: strings.TrimSpace(c.PostForm("base_name")),
		SplitPoints:  points,
	})
	if err != nil {
		log.Error().Err(err).Msg("submit split failed")
		return submitResponse{}, &requestError{status: http.StatusInternalServerError, msg: err.Error()}
	}
	return submitResponse{TaskID: id, Status: task.StatusPending}, nil
}

func (a *API) submitRender(c *gin.Context) (submitResponse, *requestError) {
	if err := a.checkBusy(c); err != nil {
		return submitResponse{}, err
	}
	src, rerr := a.formSource(c)
	if rerr != nil {
		return submitResponse{}, rerr
	}
	start, err1 := formInt(c, "start_page")
	end, err2 := formInt(c, "end_page")
	if err := errors.Join(err1, err2); err != nil {
		return submitResponse{}, badRequest(err.Error())
	}
	id, err := a.svc.SubmitRender(src.Name, src.Data, task.PdfToImageConfig{
		StartPage:    start,
		EndPage:      end,
		Quality:      task.ImageQuality(strings.ToLower(c.PostForm("quality"))),
		Format:       task.ImageFormat(strings.ToLower(c.PostForm("format"))),
		CreateFolder: formBool(c, "create_folder"),
	})
	if errors.Is(err, render.ErrUnsupportedFormat) {
		return submitResponse{}, badRequest(err.Error())
	}
	if err != nil {
		log.Error().Err(err).Msg("submit render failed")
		return submitResponse{}, &requestError{status: http.StatusInternalServerError, msg: err.Error()}
	}
	return submitResponse{TaskID: id, Status: task.StatusPending}, nil
}

// PageCount reports how many pages the uploaded document has.
func (a *API) PageCount(c *gin.Context) {
	doc, err := a.loadForm(c)
	if err != nil {
		c.JSON(err.status, gin.H{"error": err.msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": doc.Name, "pages": doc.PageCount})
}

// Preview renders a single page as PNG.
func (a *API) Preview(c *gin.Context) {
	src, rerr := a.formSource(c)
	if rerr != nil {
		c.JSON(rerr.status, gin.H{"error": rerr.msg})
		return
	}
	page, err := formInt(c, "page")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if page == 0 {
		page = 1
	}
	width, err := formInt(c, "width")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if width == 0 {
		width = previewDefaultWidth
	}
	img, err := a.svc.Renderer().Preview(src.Data, page, width)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, render.ErrPageRange) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func (a *API) checkBusy(c *gin.Context) *requestError {
	if !a.svc.IsBusy() {
		return nil
	}
	log.Warn().Str("path", c.FullPath()).Msg("rejecting task creation: server is at max concurrency")
	return &requestError{status: http.StatusServiceUnavailable, msg: "server busy"}
}

func formError(err error) *requestError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return &requestError{status: http.StatusRequestEntityTooLarge, msg: "upload too large"}
	}
	return badRequest(errNoFile.Error())
}

// formSource reads the single "file" field.
func (a *API) formSource(c *gin.Context) (pdf.Source, *requestError) {
	fh, err := c.FormFile("file")
	if err != nil {
		return pdf.Source{}, formError(err)
	}
	src, err := a.readUpload(fh)
	if err != nil {
		return pdf.Source{}, badRequest(err.Error())
	}
	return src, nil
}

func (a *API) loadForm(c *gin.Context) (*pdf.Document, *requestError) {
	src, rerr := a.formSource(c)
	if rerr != nil {
		return nil, rerr
	}
	doc, err := a.svc.Loader().Load(c.Request.Context(), src.Name, src.Data)
	if err != nil {
		log.Warn().Str("file", src.Name).Err(err).Msg("pdf load failed")
		return nil, &requestError{status: http.StatusUnprocessableEntity, msg: err.Error()}
	}
	return doc, nil
}

func (a *API) readUpload(fh *multipart.FileHeader) (pdf.Source, error) {
	name := filepath.Base(fh.Filename)
	if _, ok := a.allowed[strings.ToLower(filepath.Ext(name))]; !ok {
		return pdf.Source{}, fmt.Errorf("%s: extension not allowed", name)
	}
	f, err := fh.Open()
	if err != nil {
		return pdf.Source{}, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pdf.Source{}, fmt.Errorf("%s: %w", name, err)
	}
	return pdf.Source{Name: name, Data: data}, nil
}

// parseInts parses a comma separated list such as "1, 4,7".
func parseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func formInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func formBool(c *gin.Context, key string) bool {
	return parseBool(c.PostForm(key))
}

// parseBool also accepts "on", which is what HTML checkboxes submit.
func parseBool(v string) bool {
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}
