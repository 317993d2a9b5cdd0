package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/makecode"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
	"github.com/yungbote/blockbridge-backend/internal/render"
	"github.com/yungbote/blockbridge-backend/internal/store"
	"github.com/yungbote/blockbridge-backend/internal/uploads"
	"github.com/yungbote/blockbridge-backend/internal/vision"
)

// ProgramHandler owns the recognize-a-photo flow: store the upload, run
// the detector, run the pipeline, persist the result, and serve the
// generated code and preview back to the same session.
type ProgramHandler struct {
	log         *logger.Logger
	vision      vision.Client
	pipeline    *makecode.Pipeline
	uploads     uploads.Store
	submissions store.SubmissionRepo
	renderer    *render.Renderer

	maxUploadBytes int64
	visionTimeout  time.Duration
}

func NewProgramHandler(
	visionClient vision.Client,
	pipeline *makecode.Pipeline,
	uploadStore uploads.Store,
	submissions store.SubmissionRepo,
	renderer *render.Renderer,
	httpCfg config.HTTPConfig,
	visionCfg config.VisionConfig,
	log *logger.Logger,
) *ProgramHandler {
	maxBytes := httpCfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	timeout := visionCfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ProgramHandler{
		log:            log.With("handler", "ProgramHandler"),
		vision:         visionClient,
		pipeline:       pipeline,
		uploads:        uploadStore,
		submissions:    submissions,
		renderer:       renderer,
		maxUploadBytes: maxBytes,
		visionTimeout:  timeout,
	}
}

type uploadResponse struct {
	ID      uuid.UUID              `json:"id"`
	Code    string                 `json:"code"`
	Blocks  []makecode.BlockRecord `json:"blocks"`
	Dropped []string               `json:"dropped,omitempty"`

	// SubmissionCount is how many programs this session has uploaded so
	// far, counting this one. The client uses it for "your Nth program".
	SubmissionCount int64 `json:"submission_count"`
}

// POST /api/v1/programs
func (h *ProgramHandler) Upload(c *gin.Context) {
	sid := sessionID(c)
	if sid == uuid.Nil {
		respondError(c, http.StatusInternalServerError, "no_session", fmt.Errorf("session missing"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Errorf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		respondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedImageType(contentType) {
		respondError(c, http.StatusUnsupportedMediaType, "unsupported_image_type",
			fmt.Errorf("content type %q; want image/png or image/jpeg", contentType))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	key := uploads.NewKey(time.Now(), contentType)
	if err := h.uploads.Save(c.Request.Context(), key, contentType, img); err != nil {
		// The photo copy is a convenience; recognition proceeds without it.
		h.log.Warn("save upload failed", "key", key, "error", err)
		key = ""
	}

	detectCtx, cancel := context.WithTimeout(c.Request.Context(), h.visionTimeout)
	defer cancel()
	labels, err := h.vision.Detect(detectCtx, img, contentType)
	if err != nil {
		respondError(c, http.StatusBadGateway, "vision_failed", err)
		return
	}

	result := h.pipeline.Run(labels)

	records := result.BlockRecords()
	blocksJSON, err := json.Marshal(records)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "encode_failed", err)
		return
	}
	dropped := droppedTexts(result.Dropped)
	droppedJSON, err := json.Marshal(dropped)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "encode_failed", err)
		return
	}

	sub := &store.Submission{
		SessionID: sid.String(),
		ImageKey:  key,
		ImageMime: contentType,
		Code:      result.Code,
		Blocks:    blocksJSON,
		Dropped:   droppedJSON,
	}
	if err := h.submissions.Create(c.Request.Context(), sub); err != nil {
		respondError(c, http.StatusInternalServerError, "persist_failed", err)
		return
	}

	count, err := h.submissions.CountForSession(c.Request.Context(), sid.String())
	if err != nil {
		h.log.Warn("count submissions failed", "session_id", sid, "error", err)
		count = 1
	}

	h.log.Info("program recognized",
		"submission_id", sub.ID,
		"labels", len(labels),
		"blocks", len(records),
		"dropped", len(dropped),
		"submission_count", count,
	)
	respondOK(c, uploadResponse{
		ID:              sub.ID,
		Code:            result.Code,
		Blocks:          records,
		Dropped:         dropped,
		SubmissionCount: count,
	})
}

// GET /api/v1/programs/:id
func (h *ProgramHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	sub, err := h.submissions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "not_found", fmt.Errorf("submission %s", id))
			return
		}
		respondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	respondOK(c, sub)
}

// GET /api/v1/programs/current/code
func (h *ProgramHandler) CurrentCode(c *gin.Context) {
	sub, ok := h.latest(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/javascript; charset=utf-8", []byte(sub.Code))
}

// GET /api/v1/programs/current/preview.png
func (h *ProgramHandler) Preview(c *gin.Context) {
	sub, ok := h.latest(c)
	if !ok {
		return
	}

	var records []makecode.BlockRecord
	if len(sub.Blocks) > 0 {
		if err := json.Unmarshal(sub.Blocks, &records); err != nil {
			respondError(c, http.StatusInternalServerError, "decode_failed", err)
			return
		}
	}
	tree := h.pipeline.Rebuild(h.pipeline.Catalog.ResolveRecords(records))
	png, err := h.renderer.PNG(tree)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "render_failed", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// latest fetches the session's newest submission, writing the error
// response itself when there is none.
func (h *ProgramHandler) latest(c *gin.Context) (*store.Submission, bool) {
	sid := sessionID(c)
	sub, err := h.submissions.LatestForSession(c.Request.Context(), sid.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "no_program",
				fmt.Errorf("no program uploaded for this session yet"))
			return nil, false
		}
		respondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return nil, false
	}
	return sub, true
}

func allowedImageType(ct string) bool {
	switch ct {
	case "image/png", "image/jpeg", "image/jpg":
		return true
	default:
		return false
	}
}

func droppedTexts(labels []makecode.DetectedLabel) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Text)
	}
	return out
}
