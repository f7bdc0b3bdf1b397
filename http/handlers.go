package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"scorecast/db"
	"scorecast/ml"
	"scorecast/monitoring"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// formColumns maps posted form fields onto record columns.
var formColumns = map[string]string{
	fieldGender:            ml.ColumnGender,
	fieldEthnicity:         ml.ColumnRaceEthnicity,
	fieldParentalEducation: ml.ColumnParentalLevelOfEducation,
	fieldLunch:             ml.ColumnLunch,
	fieldTestPreparation:   ml.ColumnTestPreparationCourse,
	fieldReadingScore:      ml.ColumnReadingScore,
	fieldWritingScore:      ml.ColumnWritingScore,
}

type predictResponse struct {
	ID         string  `json:"id"`
	Prediction float64 `json:"prediction"`
	RequestID  string  `json:"request_id"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, pageData{Error: &errorBody{Code: CodeBadRequest, Message: err.Error()}})
		return
	}

	form := make(map[string]string, len(formColumns))
	record := make(ml.Record, len(formColumns))
	for field, column := range formColumns {
		values, ok := r.PostForm[field]
		if !ok || len(values) == 0 {
			continue
		}
		form[field] = values[0]
		record[column] = values[0]
	}

	p, err := s.predict(r.Context(), record)
	if err != nil {
		status, body := classify(err)
		s.renderPage(w, status, pageData{Form: form, Error: &body})
		return
	}
	s.renderPage(w, http.StatusOK, pageData{Form: form, HasResult: true, Result: p.Prediction})
}

func (s *Server) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(r)
	if err != nil {
		var verr *ml.ValidationError
		var merr *http.MaxBytesError
		if errors.As(err, &verr) || errors.As(err, &merr) {
			writeError(w, err)
			return
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	p, err := s.predict(r.Context(), record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{ID: p.ID, Prediction: p.Prediction, RequestID: p.RequestID})
}

// decodeRecord accepts string or numeric JSON values for every field.
func decodeRecord(r *http.Request) (ml.Record, error) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		return nil, err
	}

	record := make(ml.Record, len(body))
	for key, value := range body {
		switch v := value.(type) {
		case nil:
		case string:
			record[key] = v
		case json.Number:
			record[key] = v.String()
		default:
			return nil, &ml.ValidationError{Field: key, Err: fmt.Errorf("unsupported value type %T", value)}
		}
	}
	return record, nil
}

// predict runs one record through the pipeline and records the outcome.
// Logging failures after a successful prediction do not fail the request.
func (s *Server) predict(ctx context.Context, record ml.Record) (*db.Prediction, error) {
	start := time.Now()
	p, err := s.score(ctx, record)
	if err != nil {
		status, body := classify(err)
		s.stats.RecordFailure(body.Code)
		log := s.logger.Warn
		if status >= http.StatusInternalServerError {
			log = s.logger.Error
		}
		log("prediction failed",
			zap.String("request_id", GetRequestID(ctx)),
			zap.String("code", body.Code),
			zap.Error(err))
		return nil, err
	}
	s.stats.RecordPrediction(time.Since(start))

	if s.store != nil {
		if err := s.store.SavePrediction(ctx, *p); err != nil {
			s.logger.Warn("save prediction failed", zap.String("id", p.ID), zap.Error(err))
		}
	}
	if s.recent != nil {
		s.recent.Add(*p)
	}
	if s.hub != nil {
		if err := s.hub.Publish(monitoring.PredictionEvent, p); err != nil {
			s.logger.Warn("publish prediction failed", zap.String("id", p.ID), zap.Error(err))
		}
	}
	s.logger.Info("prediction served",
		zap.String("request_id", p.RequestID),
		zap.String("id", p.ID),
		zap.Float64("prediction", p.Prediction))
	return p, nil
}

func (s *Server) score(ctx context.Context, record ml.Record) (*db.Prediction, error) {
	frame, err := s.schema.ToFrame(record)
	if err != nil {
		return nil, err
	}
	preds, err := s.predictor.Predict(ctx, frame)
	if err != nil {
		return nil, err
	}
	if len(preds) != 1 {
		return nil, &ml.InferenceError{Stage: ml.StagePredict, Err: fmt.Errorf("expected 1 prediction, got %d", len(preds))}
	}

	inputs := make(ml.Record, len(s.schema.Columns()))
	for _, column := range s.schema.Columns() {
		inputs[column] = record[column]
	}
	return &db.Prediction{
		ID:         uuid.NewString(),
		Inputs:     inputs,
		Prediction: preds[0],
		RequestID:  GetRequestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *Server) handleRecentPredictions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultRecentLimit)
	if s.store == nil {
		var cached []db.Prediction
		if s.recent != nil {
			cached = s.recent.Latest(limit)
		}
		if cached == nil {
			cached = []db.Prediction{}
		}
		writeJSON(w, http.StatusOK, cached)
		return
	}

	predictions, err := s.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictions)
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.recent != nil {
		if p, ok := s.recent.Get(id); ok {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	if s.store == nil {
		writeError(w, fmt.Errorf("prediction %s: %w", id, db.ErrNotFound))
		return
	}

	p, err := s.store.GetPrediction(r.Context(), id)
	if err != nil {
		writeError(w, fmt.Errorf("prediction %s: %w", id, err))
		return
	}
	if s.recent != nil {
		s.recent.Add(*p)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []db.TrainingLog{})
		return
	}
	logs, err := s.store.LoadTrainingLog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type readinessChecker interface {
	Ready() error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"stats":  s.stats.Snapshot(),
	}
	if rc, ok := s.predictor.(readinessChecker); ok {
		if err := rc.Ready(); err != nil {
			resp["model"] = err.Error()
		} else {
			resp["model"] = "ready"
		}
	}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}
	if s.hub != nil {
		resp["feed_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, defaultLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
