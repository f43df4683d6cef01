package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ctp-wound-eligibility-server/internal/domain"
	"github.com/ctp-wound-eligibility-server/internal/review"
	"github.com/ctp-wound-eligibility-server/internal/service"
)

// preEligibilityRequest carries one episode and its encounter history.
type preEligibilityRequest struct {
	Episode    *domain.Episode    `json:"episode" binding:"required"`
	Encounters []domain.Encounter `json:"encounters" binding:"required"`
}

// measurementInput is one dated wound area supplied directly by the caller
// for compliance and quality evaluations.
type measurementInput struct {
	EncounterID string  `json:"encounter_id,omitempty"`
	Date        string  `json:"date" binding:"required"`
	AreaCM2     float64 `json:"area_cm2" binding:"required"`
	Method      string  `json:"method,omitempty"`
	Status      string  `json:"status,omitempty"`
}

type complianceRequest struct {
	EpisodeID    string             `json:"episode_id" binding:"required"`
	Phase        string             `json:"phase" binding:"required"`
	CTPStartDate string             `json:"ctp_start_date,omitempty"`
	Measurements []measurementInput `json:"measurements" binding:"required"`
}

type geometryRequest struct {
	Wound         *domain.WoundDetailSnapshot `json:"wound" binding:"required"`
	EncounterDate string                      `json:"encounter_date,omitempty"`
}

type qualityRequest struct {
	Measurements []measurementInput `json:"measurements" binding:"required"`
}

// errorResponse writes a standardized APIError.
func errorResponse(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewAPIError(code, message, details, c.GetString("request_id")))
}

// toTimedAreas converts caller-supplied measurements into the engine's
// timed-area form, rejecting unparseable dates and non-positive areas.
func toTimedAreas(inputs []measurementInput) ([]domain.TimedArea, error) {
	history := make([]domain.TimedArea, 0, len(inputs))
	for _, in := range inputs {
		d, err := service.ParseClinicalDate(in.Date)
		if err != nil {
			return nil, domain.NewValidationError("date", err.Error(), in.Date)
		}
		if in.AreaCM2 <= 0 {
			return nil, domain.NewValidationError("area_cm2", "area must be positive", in.AreaCM2)
		}
		history = append(history, domain.TimedArea{
			EncounterID: in.EncounterID,
			Date:        d,
			AreaCM2:     in.AreaCM2,
			Method:      domain.MeasurementMethod(in.Method),
			Status:      domain.MeasurementStatus(in.Status),
		})
	}
	return history, nil
}

// handlePreEligibility runs the deterministic gate for one episode.
func (s *Server) handlePreEligibility(c *gin.Context) {
	var req preEligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return
	}

	key, err := s.cache.digest(&req)
	if err == nil {
		if cached, ok := s.cache.get(key); ok {
			s.metrics.cacheHitsTotal.Inc()
			c.Header("X-Verdict-Cache", "hit")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	result, err := s.engine.PerformPreEligibilityChecks(c.Request.Context(), req.Episode, req.Encounters)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeEligibility, "pre-eligibility check failed", err.Error())
		return
	}

	s.metrics.recordVerdict(result.OverallEligible)
	if key != "" {
		s.cache.add(key, result)
	}
	s.archiveVerdict(c, result)

	c.JSON(http.StatusOK, result)
}

// archiveVerdict persists the sanitized verdict when archiving is on.
// Archive failures are logged, never surfaced: the verdict itself is
// authoritative and already rendered.
func (s *Server) archiveVerdict(c *gin.Context, result *domain.PreEligibilityCheckResult) {
	if s.archive == nil || !s.configManager.GetServerConfig().ArchiveEnabled {
		return
	}
	if _, err := s.archive.SaveVerdict(c.Request.Context(), result); err != nil {
		s.logger.WithError(err).WithField("episode_id", result.EpisodeID).Error("Failed to archive verdict")
	}
}

// handleCompliance evaluates an LCD phase over a measurement history.
func (s *Server) handleCompliance(c *gin.Context) {
	var req complianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return
	}

	history, err := toTimedAreas(req.Measurements)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid measurement", err.Error())
		return
	}

	var ctpStart *time.Time
	if req.CTPStartDate != "" {
		d, err := service.ParseClinicalDate(req.CTPStartDate)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid CTP start date", err.Error())
			return
		}
		ctpStart = &d
	}

	result, err := s.compliance.EvaluateCompliance(c.Request.Context(), req.EpisodeID, history, domain.CompliancePhase(req.Phase), ctpStart)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPhase),
			errors.Is(err, domain.ErrMissingCTPStartDate),
			errors.Is(err, domain.ErrNoMeasurements):
			errorResponse(c, http.StatusBadRequest, domain.ErrCodeCompliance, "compliance evaluation rejected", err.Error())
		default:
			errorResponse(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "compliance evaluation failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGeometryArea parses one wound snapshot and returns the normalized
// measurement with its computed area.
func (s *Server) handleGeometryArea(c *gin.Context) {
	var req geometryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return
	}

	encounterDate := time.Now().UTC()
	if req.EncounterDate != "" {
		d, err := service.ParseClinicalDate(req.EncounterDate)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid encounter date", err.Error())
			return
		}
		encounterDate = d
	}

	measurement, vr := s.parser.ParseMeasurement(req.Wound, encounterDate)
	if measurement == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"validation": vr})
		return
	}

	area, method, err := service.AreaFromMeasurement(measurement)
	if err != nil {
		errorResponse(c, http.StatusUnprocessableEntity, domain.ErrCodeValidation, "area computation failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"measurement": measurement,
		"area_cm2":    area,
		"method":      method,
	})
}

// handleQuality assesses measurement quality over a supplied history.
func (s *Server) handleQuality(c *gin.Context) {
	var req qualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return
	}

	history, err := toTimedAreas(req.Measurements)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid measurement", err.Error())
		return
	}

	c.JSON(http.StatusOK, s.quality.AssessMeasurements(history))
}

// handleSaveReview records a clinician's review of a verdict.
func (s *Server) handleSaveReview(c *gin.Context) {
	var rev review.VerdictReview
	if err := c.ShouldBindJSON(&rev); err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return
	}
	if rev.EpisodeID == "" || rev.ReviewerID == "" {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "episode_id and reviewer_id are required", "")
		return
	}

	if err := s.reviews.Save(c.Request.Context(), &rev); err != nil {
		errorResponse(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to save review", err.Error())
		return
	}

	c.JSON(http.StatusCreated, rev)
}

// handleListReviews returns stored reviews with pagination.
func (s *Server) handleListReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	reviews, err := s.reviews.List(c.Request.Context(), limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list reviews", err.Error())
		return
	}

	count, err := s.reviews.Count(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to count reviews", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"count":   count,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleGetVerdict retrieves one archived verdict by ID.
func (s *Server) handleGetVerdict(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, domain.ErrCodeValidation, "invalid verdict ID", err.Error())
		return
	}

	verdict, err := s.archive.GetVerdict(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, domain.ErrCodeValidation, "verdict not found", "")
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to read verdict", err.Error())
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// handleListVerdicts lists archived verdicts for an episode.
func (s *Server) handleListVerdicts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	verdicts, err := s.archive.ListByEpisode(c.Request.Context(), c.Param("episode_id"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list verdicts", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"verdicts": verdicts})
}
