package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/scoring"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type startRequest struct {
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
	Requirements   string `json:"requirements"`
	TotalSteps     int    `json:"total_steps"`
}

type questionView struct {
	Order      int                `json:"order"`
	Text       string             `json:"text"`
	Difficulty scoring.Difficulty `json:"difficulty"`
	Origin     interview.Origin   `json:"origin"`
	Audio      []byte             `json:"audio,omitempty"`
}

type startResponse struct {
	SessionID  string        `json:"session_id"`
	TotalSteps int           `json:"total_steps"`
	Question   *questionView `json:"question"`
}

type submitRequest struct {
	SessionID string `json:"session_id"`
	StepOrder int    `json:"step_order"`
	Text      string `json:"text"`
	Audio     []byte `json:"audio"`
	Video     []byte `json:"video"`
}

type submitResponse struct {
	Completed    bool          `json:"completed"`
	LastScore    float64       `json:"last_score"`
	ContentScore float64       `json:"content_score"`
	AudioScore   *float64      `json:"audio_score,omitempty"`
	VideoScore   *float64      `json:"video_score,omitempty"`
	Feedback     string        `json:"feedback,omitempty"`
	NextQuestion *questionView `json:"next_question,omitempty"`
	AverageScore *float64      `json:"average_score,omitempty"`
	TotalScore   *float64      `json:"total_score,omitempty"`
}

type questionResultView struct {
	Order        int                `json:"order"`
	Question     string             `json:"question"`
	Answer       string             `json:"answer"`
	Score        float64            `json:"score"`
	ContentScore float64            `json:"content_score"`
	AudioScore   *float64           `json:"audio_score,omitempty"`
	VideoScore   *float64           `json:"video_score,omitempty"`
	Feedback     string             `json:"feedback,omitempty"`
	Difficulty   scoring.Difficulty `json:"difficulty"`
	Origin       interview.Origin   `json:"origin"`
}

type resultResponse struct {
	SessionID    string               `json:"session_id"`
	Job          interview.Job        `json:"job"`
	TotalSteps   int                  `json:"total_steps"`
	AverageScore float64              `json:"average_score"`
	TotalScore   float64              `json:"total_score"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	PerQuestion  []questionResultView `json:"per_question"`
}

type abandonResponse struct {
	SessionID string           `json:"session_id"`
	Status    interview.Status `json:"status"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, codeInvalidInput, "malformed request body: "+err.Error())
		return
	}

	job := interview.Job{
		Title:        req.JobTitle,
		Description:  req.JobDescription,
		Requirements: req.Requirements,
	}

	session, first, err := h.svc.Start(r.Context(), job, req.TotalSteps)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	JSON(w, http.StatusCreated, startResponse{
		SessionID:  session.ID,
		TotalSteps: session.TotalSteps,
		Question:   h.question(r, first),
	})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, codeInvalidInput, "malformed request body: "+err.Error())
		return
	}

	res, err := h.svc.SubmitAnswer(r.Context(), req.SessionID, req.StepOrder, interview.RawAnswer{
		Text:  req.Text,
		Audio: req.Audio,
		Video: req.Video,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := submitResponse{
		Completed:    res.Completed,
		LastScore:    res.Score,
		ContentScore: res.ContentScore,
		AudioScore:   res.AudioScore,
		VideoScore:   res.VideoScore,
		Feedback:     res.Feedback,
	}
	if res.Completed {
		resp.AverageScore = &res.AverageScore
		resp.TotalScore = &res.TotalScore
	} else {
		resp.NextQuestion = h.question(r, res.NextQuestion)
	}

	JSON(w, http.StatusOK, resp)
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Result(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := resultResponse{
		SessionID:    report.SessionID,
		Job:          report.Job,
		TotalSteps:   report.TotalSteps,
		AverageScore: report.AverageScore,
		TotalScore:   report.TotalScore,
		CompletedAt:  report.CompletedAt,
		PerQuestion:  make([]questionResultView, 0, len(report.Questions)),
	}
	for _, q := range report.Questions {
		resp.PerQuestion = append(resp.PerQuestion, questionResultView(q))
	}

	JSON(w, http.StatusOK, resp)
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Abandon(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	JSON(w, http.StatusOK, abandonResponse{SessionID: session.ID, Status: session.Status})
}

func (h *Handler) question(r *http.Request, q *interview.Question) *questionView {
	if q == nil {
		return nil
	}

	view := &questionView{
		Order:      q.Order,
		Text:       q.Text,
		Difficulty: q.Difficulty,
		Origin:     q.Origin,
	}
	if h.wantsVoice(r) {
		view.Audio = h.svc.Vocalize(r.Context(), q.Text)
		if view.Audio == nil {
			h.logger.Debug("question audio unavailable", zap.Int("order", q.Order))
		}
	}
	return view
}

func (h *Handler) wantsVoice(r *http.Request) bool {
	raw := r.URL.Query().Get("voice")
	if raw == "" {
		return h.voice
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
