package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/auth"
	"timed-quiz-service/internal/domain"
)

// maxImageSize caps question image uploads.
const maxImageSize = 5 << 20

type handlers struct {
	quiz     *app.QuizService
	auth     *auth.Service
	presence LiveClients
	logger   *zap.Logger
}

// LiveClients counts connected WebSocket clients.
type LiveClients interface {
	Count(ctx context.Context) (int, error)
}

type credentialsRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	School   *string `json:"school"`
}

type createUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     domain.Role `json:"role" binding:"required"`
	School   *string     `json:"school"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type answerRequest struct {
	UserID       *int64   `json:"userId"`
	QuestionID   int64    `json:"questionId" binding:"required"`
	UserAnswer   *string  `json:"userAnswer"`
	ResponseTime *float64 `json:"responseTime"`
}

type resultRequest struct {
	UserID *int64 `json:"userId"`
	domain.ScoreSummary
	CompletionTime *int `json:"completionTime"`
}

// questionView is what students see: the correct answer is withheld.
type questionView struct {
	ID            int64             `json:"id"`
	QuestionText  *string           `json:"questionText"`
	QuestionImage *string           `json:"questionImage"`
	IsImage       bool              `json:"isImage"`
	OptionA       string            `json:"optionA"`
	OptionB       string            `json:"optionB"`
	OptionC       string            `json:"optionC"`
	OptionD       string            `json:"optionD"`
	Difficulty    domain.Difficulty `json:"difficulty"`
}

// answerView is a student's receipt for an answer. Correctness stays on the server.
type answerView struct {
	ID           int64     `json:"id"`
	QuestionID   int64     `json:"questionId"`
	UserAnswer   *string   `json:"userAnswer"`
	ResponseTime *float64  `json:"responseTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newAnswerView(a domain.QuizAnswer) answerView {
	return answerView{
		ID:           a.ID,
		QuestionID:   a.QuestionID,
		UserAnswer:   a.UserAnswer,
		ResponseTime: a.ResponseTimeSeconds,
		CreatedAt:    a.CreatedAt,
	}
}

func newQuestionView(q domain.Question) questionView {
	return questionView{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		QuestionImage: q.QuestionImage,
		IsImage:       q.IsImage,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		Difficulty:    q.Difficulty,
	}
}

func (h *handlers) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.School)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	token, user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.auth.CreateUser(c.Request.Context(), identity(c), req.Username, req.Password, req.Role, req.School)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) settings(c *gin.Context) {
	st, err := h.quiz.Settings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) startQuiz(c *gin.Context) {
	h.transition(c, h.quiz.StartQuiz)
}

func (h *handlers) finishQuiz(c *gin.Context) {
	h.transition(c, h.quiz.FinishQuiz)
}

func (h *handlers) resetQuiz(c *gin.Context) {
	h.transition(c, h.quiz.ResetQuiz)
}

func (h *handlers) transition(c *gin.Context, fn func(ctx context.Context, actor domain.Identity) (domain.QuizSetting, error)) {
	st, err := fn(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) listQuestions(c *gin.Context) {
	questions, err := h.quiz.ListQuestions(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if identity(c).Role.AtLeast(domain.RoleAdmin) {
		c.JSON(http.StatusOK, questions)
		return
	}
	views := make([]questionView, len(questions))
	for i, q := range questions {
		views[i] = newQuestionView(q)
	}
	c.JSON(http.StatusOK, views)
}

func (h *handlers) createQuestion(c *gin.Context) {
	in, image, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	defer closeUpload(image)
	q, err := h.quiz.CreateQuestion(c.Request.Context(), identity(c), in, image)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *handlers) updateQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, image, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	defer closeUpload(image)
	q, err := h.quiz.UpdateQuestion(c.Request.Context(), identity(c), id, in, image)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handlers) deleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.quiz.DeleteQuestion(c.Request.Context(), identity(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindQuestion accepts either a JSON body or a multipart form carrying an optional
// questionImage file.
func (h *handlers) bindQuestion(c *gin.Context) (domain.QuestionInput, *app.ImageUpload, bool) {
	var in domain.QuestionInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err.Error())
			return in, nil, false
		}
		return in, nil, true
	}

	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, err.Error())
		return in, nil, false
	}
	header, err := c.FormFile("questionImage")
	if err == http.ErrMissingFile {
		return in, nil, true
	}
	if err != nil {
		badRequest(c, err.Error())
		return in, nil, false
	}
	if header.Size > maxImageSize {
		badRequest(c, "questionImage exceeds 5MB")
		return in, nil, false
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, err.Error())
		return in, nil, false
	}
	return in, &app.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, true
}

func closeUpload(image *app.ImageUpload) {
	if image == nil {
		return
	}
	if c, ok := image.Body.(io.Closer); ok {
		_ = c.Close()
	}
}

func (h *handlers) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	actor := identity(c)
	userID := actor.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	answer, err := h.quiz.SubmitAnswer(c.Request.Context(), actor, app.AnswerSubmission{
		UserID:              userID,
		QuestionID:          req.QuestionID,
		UserAnswer:          req.UserAnswer,
		ResponseTimeSeconds: req.ResponseTime,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if actor.Role.AtLeast(domain.RoleAdmin) {
		c.JSON(http.StatusCreated, answer)
		return
	}
	c.JSON(http.StatusCreated, newAnswerView(answer))
}

func (h *handlers) saveResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	actor := identity(c)
	userID := actor.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	result, err := h.quiz.SaveResult(c.Request.Context(), actor, app.ResultSubmission{
		UserID:         userID,
		Claimed:        req.ScoreSummary,
		CompletionTime: req.CompletionTime,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) leaderboard(c *gin.Context) {
	entries, err := h.quiz.Leaderboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) resultForUser(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	result, err := h.quiz.ResultForUser(c.Request.Context(), identity(c), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) scoreForUser(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	summary, err := h.quiz.ScoreForUser(c.Request.Context(), identity(c), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) healthz(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC()}
	if h.presence != nil {
		n, err := h.presence.Count(c.Request.Context())
		if err != nil {
			h.logger.Warn("count live clients", zap.Error(err))
		} else {
			body["live_clients"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
