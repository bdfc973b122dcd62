package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yieldgap-ma/yg-backend/internal/tasks"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func submit(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/yield-csv", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func getJob(t *testing.T, h http.Handler, id string) (tasks.Job, int) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/"+id, nil))
	var job tasks.Job
	if rr.Code == http.StatusOK {
		if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
	}
	return job, rr.Code
}

func TestSubmitYieldCSV_RunsJob(t *testing.T) {
	d := migratedDB(t)
	dir := t.TempDir()
	writeCSV(t, dir, "yields.csv", header+"P-SET,SETTAT,province,,wheat,2020,3,5,2,40,\n")

	runner := tasks.NewRunner(context.Background(), d)
	h := tasks.SetupRoutes(runner, dir, rate.NewLimiter(rate.Inf, 1))

	rr := submit(t, h, `{"path":"yields.csv"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var queued tasks.Job
	if err := json.NewDecoder(rr.Body).Decode(&queued); err != nil {
		t.Fatal(err)
	}
	if queued.ID == "" || rr.Header().Get("Location") != "/api/tasks/"+queued.ID {
		t.Errorf("unexpected job %+v location %q", queued, rr.Header().Get("Location"))
	}

	runner.Wait()

	job, code := getJob(t, h, queued.ID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if job.Status != tasks.StatusSucceeded || job.Processed != 1 || job.FinishedAt == nil {
		t.Errorf("unexpected finished job %+v", job)
	}
}

func TestSubmitYieldCSV_RejectsBadInput(t *testing.T) {
	d := migratedDB(t)
	dir := t.TempDir()
	h := tasks.SetupRoutes(tasks.NewRunner(context.Background(), d), dir, rate.NewLimiter(rate.Inf, 1))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"path":`, http.StatusBadRequest},
		{"empty path", `{"path":""}`, http.StatusBadRequest},
		{"escapes data dir", `{"path":"../etc/passwd"}`, http.StatusBadRequest},
		{"absolute outside", `{"path":"/etc/passwd"}`, http.StatusBadRequest},
		{"missing file", `{"path":"nope.csv"}`, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if rr := submit(t, h, c.body); rr.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, rr.Code)
			}
		})
	}
}

func TestSubmitYieldCSV_RateLimited(t *testing.T) {
	d := migratedDB(t)
	dir := t.TempDir()
	writeCSV(t, dir, "yields.csv", header)

	runner := tasks.NewRunner(context.Background(), d)
	h := tasks.SetupRoutes(runner, dir, rate.NewLimiter(rate.Every(time.Hour), 1))

	if rr := submit(t, h, `{"path":"yields.csv"}`); rr.Code != http.StatusAccepted {
		t.Fatalf("first submit: expected 202, got %d", rr.Code)
	}
	rr := submit(t, h, `{"path":"yields.csv"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("expected 429 with Retry-After, got %d %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	runner.Wait()
}

func TestGetJob_Unknown(t *testing.T) {
	h := tasks.SetupRoutes(tasks.NewRunner(context.Background(), nil), t.TempDir(), rate.NewLimiter(rate.Inf, 1))

	if _, code := getJob(t, h, "does-not-exist"); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestRunner_RecordsFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	runner := tasks.NewRunnerWith(context.Background(), nil, func(ctx context.Context, d *gorm.DB, path string) (int, error) {
		return 0, boom
	})

	queued := runner.Enqueue("x.csv")
	if queued.Status != tasks.StatusQueued {
		t.Errorf("expected queued snapshot, got %s", queued.Status)
	}
	runner.Wait()

	job, ok := runner.Get(queued.ID)
	if !ok {
		t.Fatal("job not found")
	}
	if job.Status != tasks.StatusFailed || job.Message != boom.Error() {
		t.Errorf("unexpected failed job %+v", job)
	}
}
