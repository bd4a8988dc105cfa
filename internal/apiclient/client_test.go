package apiclient_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stemworker/internal/api"
	"stemworker/internal/apiclient"
	"stemworker/internal/validator"
)

func TestNewRequiresBind(t *testing.T) {
	if _, err := apiclient.New("  ", ""); !errors.Is(err, apiclient.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCreateJobSendsTokenAndBody(t *testing.T) {
	var gotAuth string
	var gotBody api.CreateJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.CreateJobResponse{ExecutionID: "abc", Status: "queued", FolderName: "song"})
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.CreateJob(t.Context(), api.CreateJobRequest{SourceLocation: "gs://b/song", DestinationLocation: "gs://b/out"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if resp.ExecutionID != "abc" || resp.FolderName != "song" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.SourceLocation != "gs://b/song" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestCreateJobRejectionCarriesScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.RejectionResponse{
			Error: "No _mix.wav file found in the specified folder",
			Scan:  &validator.Result{Status: validator.StatusOK},
		})
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	_, err := client.CreateJob(t.Context(), api.CreateJobRequest{SourceLocation: "a", DestinationLocation: "b"})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Scan == nil {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestListJobsEncodesStatuses(t *testing.T) {
	var gotQuery []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()["status"]
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.JobView{{ExecutionID: "1"}, {ExecutionID: "2"}}})
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	jobs, err := client.ListJobs(t.Context(), []string{"queued", " ", "error"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if len(gotQuery) != 2 || gotQuery[0] != "queued" || gotQuery[1] != "error" {
		t.Fatalf("unexpected status query %v", gotQuery)
	}
}

func TestHealthReturnsBodyWhenUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{
			Status: "unhealthy",
			Checks: []api.HealthCheck{{Name: "queue", Ready: false, Detail: "connection refused"}},
		})
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	health, err := client.Health(t.Context())
	if err == nil {
		t.Fatal("expected error for unhealthy daemon")
	}
	if health.Status != "unhealthy" || len(health.Checks) != 1 {
		t.Fatalf("expected decoded checks, got %+v", health)
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job not found"})
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	_, err := client.GetJob(t.Context(), "missing")
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "job not found" {
		t.Fatalf("unexpected error %v", err)
	}
}
