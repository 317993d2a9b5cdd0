package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/blockbridge-backend/internal/llm"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
	"github.com/yungbote/blockbridge-backend/internal/store"
	"github.com/yungbote/blockbridge-backend/internal/tutor"
)

// TutorHandler exposes the feedback endpoints. Every endpoint grounds the
// reply in the session's most recent program; callers may also pass code
// explicitly, which the embedded editor uses while iterating before an
// upload.
type TutorHandler struct {
	log         *logger.Logger
	svc         tutor.Service
	submissions store.SubmissionRepo
}

func NewTutorHandler(svc tutor.Service, submissions store.SubmissionRepo, log *logger.Logger) *TutorHandler {
	return &TutorHandler{
		log:         log.With("handler", "TutorHandler"),
		svc:         svc,
		submissions: submissions,
	}
}

type tutorRequest struct {
	Code string `json:"code,omitempty"`
}

type chatRequest struct {
	Code     string        `json:"code,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// POST /api/v1/tutor/suggestions
func (h *TutorHandler) Suggestions(c *gin.Context) {
	code, ok := h.resolveCode(c, h.bindCode(c))
	if !ok {
		return
	}
	suggestion, err := h.svc.Suggestions(c.Request.Context(), code)
	if err != nil {
		respondError(c, http.StatusBadGateway, "tutor_failed", err)
		return
	}
	respondOK(c, suggestion)
}

// POST /api/v1/tutor/encouragement/stream
func (h *TutorHandler) EncouragementStream(c *gin.Context) {
	h.stream(c, h.svc.StreamEncouragement)
}

// POST /api/v1/tutor/idea/stream
func (h *TutorHandler) IdeaStream(c *gin.Context) {
	h.stream(c, h.svc.StreamIdea)
}

func (h *TutorHandler) stream(c *gin.Context, fn func(ctx context.Context, code string, onDelta func(string)) (string, error)) {
	code, ok := h.resolveCode(c, h.bindCode(c))
	if !ok {
		return
	}
	w, ok := newSSEWriter(c)
	if !ok {
		return
	}
	if _, err := fn(c.Request.Context(), code, w.delta); err != nil {
		w.fail("stream_failed", err)
		return
	}
	w.done()
}

// POST /api/v1/tutor/chat/stream
func (h *TutorHandler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	history := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			role = "user"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	if len(history) == 0 {
		respondError(c, http.StatusBadRequest, "empty_chat",
			errors.New("messages must contain at least one non-empty entry"))
		return
	}

	code, ok := h.resolveCode(c, req.Code)
	if !ok {
		return
	}
	w, ok := newSSEWriter(c)
	if !ok {
		return
	}
	if _, err := h.svc.StreamChat(c.Request.Context(), code, history, w.delta); err != nil {
		w.fail("stream_failed", err)
		return
	}
	w.done()
}

// GET /api/v1/tutor/cache/stats
func (h *TutorHandler) CacheStats(c *gin.Context) {
	respondOK(c, h.svc.CacheStats(c.Request.Context()))
}

func (h *TutorHandler) bindCode(c *gin.Context) string {
	var req tutorRequest
	// The body is optional; anything unparseable just means "use the
	// session's current program".
	_ = c.ShouldBindJSON(&req)
	return req.Code
}

// resolveCode prefers explicitly supplied code, then the session's latest
// submission, then empty code (the tutor still answers something friendly
// for an empty program).
func (h *TutorHandler) resolveCode(c *gin.Context, explicit string) (string, bool) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, true
	}
	sid := sessionID(c)
	sub, err := h.submissions.LatestForSession(c.Request.Context(), sid.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", true
		}
		respondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return "", false
	}
	return sub.Code, true
}
