package detectionHandler

import (
	"VisionGuard/internal/api/detection"
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/handlerUtil"
	"VisionGuard/pkg/render"
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const previewWidth = 600

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	ModelName     string
	MinConfidence float64
	MaxConfidence float64
	Confidence    float64
	ShowChart     bool

	Error        string
	RequestID    string
	Preview      template.URL
	Output       template.URL
	Chart        template.URL
	Summary      *detection.DetectionSummary
	DownloadURL  string
	DownloadName string
	OutputURL    string
}

func (h *DetectionHandler) newPageData() pageData {
	return pageData{
		ModelName:     h.detectionService.ModelName(),
		MinConfidence: detection.MinConfidence,
		MaxConfidence: detection.MaxConfidence,
		Confidence:    detection.DefaultConfidence,
		ShowChart:     true,
	}
}

func (h *DetectionHandler) ShowPage(ctx *fiber.Ctx) error {
	return h.renderPage(ctx, fiber.StatusOK, h.newPageData())
}

// SubmitPage runs one session pass for the browser form. An unchecked
// checkbox is absent from the form, so show_chart defaults to false here.
func (h *DetectionHandler) SubmitPage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	data := h.newPageData()
	data.RequestID = requestID

	req, err := h.parseDetectionRequest(ctx, false)
	data.ShowChart = req.ShowChart
	if req.ConfidenceThreshold >= detection.MinConfidence && req.ConfidenceThreshold <= detection.MaxConfidence {
		data.Confidence = req.ConfidenceThreshold
	}
	if err != nil {
		status, message := errHandler.Resolve(requestID, err, ctx.Path(), "parse_detection_request")
		data.Error = message
		return h.renderPage(ctx, status, data)
	}

	if err := h.validator.Struct(req); err != nil {
		errHandler.Resolve(requestID, err, ctx.Path(), "validate_detection_request")
		data.Error = "Validation failed: " + handlerUtil.ValidationMessage(err)
		return h.renderPage(ctx, fiber.StatusBadRequest, data)
	}

	if img, err := render.Decode(req.Image); err == nil {
		if preview, err := render.EncodeJPEG(render.Preview(img, previewWidth)); err == nil {
			data.Preview = dataURI("image/jpeg", preview)
		}
	}

	view, err := h.detectionService.Run(c, req)
	if err != nil {
		status, message := errHandler.Resolve(requestID, err, ctx.Path(), "run_detection")
		data.Error = message
		return h.renderPage(ctx, status, data)
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
	}

	data.Output = dataURI(detection.DownloadMimeType, view.Result.Annotated)
	data.Summary = view.Summary
	if len(view.Summary.ChartPNG) > 0 {
		data.Chart = dataURI("image/png", view.Summary.ChartPNG)
	}
	data.DownloadURL = downloadRoute
	data.DownloadName = detection.DownloadFileName
	data.OutputURL = view.OutputURL

	return h.renderPage(ctx, fiber.StatusOK, data)
}

func (h *DetectionHandler) renderPage(ctx *fiber.Ctx, status int, data pageData) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return handlerUtil.New(h.log).Handle(ctx, data.RequestID, err, ctx.Path(), "render_page")
	}

	ctx.Type("html", "utf-8")
	return ctx.Status(status).Send(buf.Bytes())
}

func dataURI(mime string, data []byte) template.URL {
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}
