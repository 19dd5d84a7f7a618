package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/models"
)

// fakeService is a minimal in-memory optimization service
type fakeService struct {
	t        *testing.T
	jobID    uuid.UUID
	polls    atomic.Int32
	canceled atomic.Bool
	// pollsUntilDone is how many status polls report RUNNING before
	// the job completes. Negative means run forever.
	pollsUntilDone int32
	failWith       string
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/v1/optimizations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			s.t.Errorf("Unexpected Authorization header: %q", got)
		}
		if got := r.Header.Get("X-Study-ID"); got != "study-1" {
			s.t.Errorf("Unexpected X-Study-ID header: %q", got)
		}

		var req models.SubmitOptimizationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Spec == nil || req.Spec.Name != "optimization/single_target" {
			s.t.Errorf("Submitted spec missing or misnamed: %+v", req.Spec)
		}

		_ = json.NewEncoder(w).Encode(models.JobResponse{
			ID:          s.jobID,
			Name:        req.Spec.Name,
			Status:      models.JobQueued,
			SubmittedAt: time.Now().UTC(),
		})
	})

	mux.HandleFunc("/v1/leadfields/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/v1/leadfields/")
		if name == "missing" {
			http.Error(w, `{"error":"no such leadfield"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(models.LeadfieldResponse{
			ID:         uuid.New(),
			Name:       name,
			Subject:    "ernie",
			Montage:    "EEG10-10",
			Electrodes: 74,
		})
	})

	mux.HandleFunc("/v1/optimizations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			s.canceled.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/solution") {
			_ = json.NewEncoder(w).Encode(models.SolutionResponse{
				Currents: []models.ElectrodeCurrent{
					{Channel: "F3", Current: 0.002},
					{Channel: "F4", Current: -0.002},
				},
				Targets: []models.TargetField{
					{Position: []float64{-55.4, -20.7, 73.4}, Intensity: 0.21},
				},
				Objective: 0.042,
			})
			return
		}

		job := models.JobResponse{ID: s.jobID, Status: models.JobRunning}
		n := s.polls.Add(1)
		if s.pollsUntilDone >= 0 && n > s.pollsUntilDone {
			if s.failWith != "" {
				job.Status = models.JobFailed
				job.Error = s.failWith
			} else {
				job.Status = models.JobCompleted
			}
		}
		_ = json.NewEncoder(w).Encode(job)
	})

	return mux
}

func newTestRemote(t *testing.T, url string) *RemoteEngine {
	cfg := &config.Engine{
		Name:    "cluster",
		Type:    config.EngineTypeRemote,
		URL:     url,
		StudyID: "study-1",
	}
	client, err := NewClient(Config{BaseURL: url, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	e := NewRemoteEngineWithClient(cfg, client)
	e.pollInterval = 10 * time.Millisecond
	return e
}

func TestRemoteEngineOptimize(t *testing.T) {
	svc := &fakeService{t: t, jobID: uuid.New(), pollsUntilDone: 2}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	e := newTestRemote(t, server.URL)

	if err := e.ValidateConnection(context.Background()); err != nil {
		t.Fatalf("ValidateConnection failed: %v", err)
	}

	result, err := e.Optimize(context.Background(), testSpec("lf://ernie-10-10"))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if result.JobID != svc.jobID.String() {
		t.Errorf("Expected job ID %s, got %s", svc.jobID, result.JobID)
	}
	if result.Engine != "cluster" {
		t.Errorf("Unexpected engine name: %s", result.Engine)
	}
	if len(result.Currents) != 2 {
		t.Fatalf("Expected 2 electrode currents, got %d", len(result.Currents))
	}
	if result.Currents[1].Channel != "F4" || result.Currents[1].Current != -0.002 {
		t.Errorf("Unexpected second electrode: %+v", result.Currents[1])
	}
	if result.Objective != 0.042 {
		t.Errorf("Expected objective 0.042, got %g", result.Objective)
	}
	if svc.polls.Load() < 3 {
		t.Errorf("Expected at least 3 status polls, got %d", svc.polls.Load())
	}
}

func TestRemoteEngineFailedJob(t *testing.T) {
	svc := &fakeService{
		t:              t,
		jobID:          uuid.New(),
		pollsUntilDone: 1,
		failWith:       "solver diverged on target 1",
	}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	e := newTestRemote(t, server.URL)

	_, err := e.Optimize(context.Background(), testSpec("lf://ernie-10-10"))
	if err == nil {
		t.Fatalf("Expected error for failed job")
	}
	if !strings.Contains(err.Error(), "solver diverged") {
		t.Errorf("Error should carry the service failure detail, got: %v", err)
	}
}

func TestRemoteEngineUnknownLeadfieldRef(t *testing.T) {
	svc := &fakeService{t: t, jobID: uuid.New(), pollsUntilDone: 0}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	e := newTestRemote(t, server.URL)

	_, err := e.Optimize(context.Background(), testSpec("lf://missing"))
	if err == nil {
		t.Fatalf("Expected error for unknown leadfield reference")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("Error should name the unresolved reference, got: %v", err)
	}
	if svc.polls.Load() != 0 {
		t.Errorf("Job must not be submitted when the leadfield fails to resolve")
	}
}

func TestRemoteEngineCancel(t *testing.T) {
	svc := &fakeService{t: t, jobID: uuid.New(), pollsUntilDone: -1}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	e := newTestRemote(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := e.Optimize(ctx, testSpec("lf://ernie-10-10"))
	if err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if !svc.canceled.Load() {
		t.Errorf("Expected a cancel request to reach the service")
	}
}
