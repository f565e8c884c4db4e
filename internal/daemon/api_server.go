package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newscastd/internal/api"
	"newscastd/internal/config"
	"newscastd/internal/logging"
	"newscastd/internal/pipeline"
	"newscastd/internal/schedule"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/validate", srv.handleValidate)
	mux.HandleFunc("/api/trigger/", srv.handleTrigger)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		ActiveRunID:    status.ActiveRunID,
		PublishedRunID: status.PublishedRunID,
		DetailCursor:   status.DetailCursor,
		LastTick:       tickInfo(status.LastTick),
		StateDBPath:    status.StateDBPath,
		LockFilePath:   status.LockFilePath,
	})
}

// handleValidate checks a run's merged tracks. Without an explicit
// run-id it validates the active run. Promotion requires promote=true.
func (s *apiServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.finalizer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "finalizer unavailable")
		return
	}

	query := r.URL.Query()
	runID := strings.TrimSpace(query.Get("run-id"))
	if runID == "" {
		active, err := s.daemon.store.ActiveRunID(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		runID = active
	}
	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "no run to validate")
		return
	}
	promote := strings.EqualFold(query.Get("promote"), "true") || query.Get("promote") == "1"

	outcome, err := s.daemon.finalizer.Run(r.Context(), runID, promote)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := api.ValidateResponse{
		RunID:             outcome.RunID,
		Promoted:          outcome.Promoted,
		PreviousPublished: outcome.PreviousPublished,
		ValidCount:        outcome.ValidCount,
		Results:           make([]api.TopicValidation, 0, len(outcome.Results)),
	}
	for _, result := range outcome.Results {
		resp.Results = append(resp.Results, api.TopicValidation{
			TopicIndex: result.TopicIndex,
			Key:        result.Key,
			Valid:      result.Valid,
			SizeBytes:  result.SizeBytes,
			Reason:     result.Reason,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleTrigger dispatches one named stage immediately, outside the
// timetable.
func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/trigger/")
	if name == "" || strings.Contains(name, "/") {
		s.writeError(w, http.StatusNotFound, "unknown stage")
		return
	}
	kind, ok := schedule.ParseKind(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown stage: "+name)
		return
	}

	work := schedule.WorkItem{Kind: kind}
	if work.PerTopic() {
		value := strings.TrimSpace(r.URL.Query().Get("topic-index"))
		index, err := strconv.Atoi(value)
		if err != nil || index < 1 {
			s.writeError(w, http.StatusBadRequest, "stage requires topic-index")
			return
		}
		work.TopicIndex = index
	}

	report, err := s.daemon.coordinator.Trigger(r.Context(), work)
	if err != nil {
		s.log().Warn("manual trigger failed",
			logging.String(logging.FieldStage, name),
			logging.Error(err),
		)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TriggerResponse{Tick: tickInfo(report)})
}

func tickInfo(report pipeline.TickReport) api.TickInfo {
	return api.TickInfo{
		At:         report.At,
		Work:       report.Work,
		TopicIndex: report.TopicIndex,
		RunID:      report.RunID,
		Skipped:    report.Skipped,
		Error:      report.Error,
		DurationMS: report.DurationMS,
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
