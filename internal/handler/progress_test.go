package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bethesda/readingplan/internal/progress"
)

type progressBody struct {
	Outcome      progress.Outcome       `json:"outcome"`
	Notification *progress.Notification `json:"notification"`
	Stats        progress.Stats         `json:"stats"`
}

func (env *testEnv) mark(t *testing.T, method, userID, day string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/progress/"+day, nil)
	req.SetPathValue("day", day)
	req = asUser(req, userID, true)
	rec := httptest.NewRecorder()
	if method == "PUT" {
		env.prog.Mark(rec, req)
	} else {
		env.prog.Unmark(rec, req)
	}
	return rec
}

func TestMarkAndUnmark(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)

	rec := env.mark(t, "PUT", u.ID, "3")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark: status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}
	body := decode[progressBody](t, rec)
	if body.Outcome != progress.OutcomeApplied {
		t.Errorf("outcome = %q, want applied", body.Outcome)
	}
	if body.Stats.CompletedCount != 1 || body.Stats.CurrentDay != 50 {
		t.Errorf("stats = %+v, want 1 completed on day 50", body.Stats)
	}

	days, _ := env.progress.FetchProgress(context.Background(), u.ID)
	if len(days) != 1 || days[0] != 3 {
		t.Errorf("stored days = %v, want [3]", days)
	}

	// a second mark of a completed day is a no-op
	body = decode[progressBody](t, env.mark(t, "PUT", u.ID, "3"))
	if body.Outcome != progress.OutcomeSkipped {
		t.Errorf("repeat mark outcome = %q, want skipped", body.Outcome)
	}

	rec = env.mark(t, "DELETE", u.ID, "3")
	body = decode[progressBody](t, rec)
	if body.Outcome != progress.OutcomeApplied || body.Stats.CompletedCount != 0 {
		t.Errorf("unmark = %+v, want applied with 0 completed", body)
	}
	if len(body.Stats.MissedDays) != 49 {
		t.Errorf("missed = %d, want 49", len(body.Stats.MissedDays))
	}
}

func TestMarkInvalidDay(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)

	for _, day := range []string{"0", "366", "abc"} {
		rec := env.mark(t, "PUT", u.ID, day)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("day %s: status = %d, want %d", day, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestMarkRollsBackOnStoreFailure(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)
	env.progress.UpsertProgress(context.Background(), u.ID, 1, testNow)

	// build and load the engine while the table still exists
	rec := httptest.NewRecorder()
	env.prog.Stats(rec, asUser(httptest.NewRequest("GET", "/api/progress", nil), u.ID, true))
	if got := decode[progress.Stats](t, rec); got.CompletedCount != 1 {
		t.Fatalf("completed = %d, want 1", got.CompletedCount)
	}

	if _, err := env.db.Exec(`DROP TABLE reading_progress`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	rec = env.mark(t, "PUT", u.ID, "2")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decode[progressBody](t, rec)
	if body.Outcome != progress.OutcomeRolledBack {
		t.Errorf("outcome = %q, want rolled_back", body.Outcome)
	}
	if body.Notification == nil || body.Notification.Day != 2 {
		t.Errorf("notification = %+v, want one for day 2", body.Notification)
	}
	if body.Stats.CompletedCount != 1 {
		t.Errorf("completed = %d, want 1 after rollback", body.Stats.CompletedCount)
	}
	if len(body.Stats.InFlight) != 0 {
		t.Errorf("in flight = %v, want none", body.Stats.InFlight)
	}
}

func TestFailedLoadIsNotCached(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)

	if _, err := env.db.Exec(`ALTER TABLE reading_progress RENAME TO reading_progress_old`); err != nil {
		t.Fatalf("rename table: %v", err)
	}

	rec := httptest.NewRecorder()
	env.prog.Stats(rec, asUser(httptest.NewRequest("GET", "/api/progress", nil), u.ID, true))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusServiceUnavailable, rec.Body)
	}
	body := decode[progressBody](t, rec)
	if body.Outcome != progress.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", body.Outcome)
	}
	if body.Notification == nil || body.Notification.Kind != progress.NotifyLoadFailed {
		t.Errorf("notification = %+v, want load_failed", body.Notification)
	}
	if n := env.registry.Len(); n != 0 {
		t.Errorf("registry len = %d, want 0 after failed load", n)
	}

	rec = httptest.NewRecorder()
	env.prog.Plan(rec, asUser(httptest.NewRequest("GET", "/api/plan", nil), u.ID, true))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("plan status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	// once the store recovers the next request loads afresh
	if _, err := env.db.Exec(`ALTER TABLE reading_progress_old RENAME TO reading_progress`); err != nil {
		t.Fatalf("restore table: %v", err)
	}
	env.progress.UpsertProgress(context.Background(), u.ID, 4, testNow)

	rec = httptest.NewRecorder()
	env.prog.Stats(rec, asUser(httptest.NewRequest("GET", "/api/progress", nil), u.ID, true))
	if rec.Code != http.StatusOK {
		t.Fatalf("status after recovery = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decode[progress.Stats](t, rec); got.CompletedCount != 1 {
		t.Errorf("completed = %d, want 1", got.CompletedCount)
	}
}

func TestPlanFilters(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)
	ctx := context.Background()
	for day := 1; day <= 40; day++ {
		env.progress.UpsertProgress(ctx, u.ID, day, testNow)
	}

	type planBody struct {
		CurrentDay int `json:"current_day"`
		Entries    []struct {
			DayNumber int  `json:"day_number"`
			Completed bool `json:"completed"`
		} `json:"entries"`
	}

	get := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.prog.Plan(rec, asUser(httptest.NewRequest("GET", "/api/plan"+query, nil), u.ID, true))
		return rec
	}

	feb := decode[planBody](t, get("?month=2"))
	if len(feb.Entries) != 28 {
		t.Fatalf("february entries = %d, want 28", len(feb.Entries))
	}
	if feb.Entries[0].DayNumber != 32 || !feb.Entries[0].Completed {
		t.Errorf("first february entry = %+v, want completed day 32", feb.Entries[0])
	}
	if feb.Entries[27].Completed {
		t.Error("day 59 should not be completed")
	}

	missed := decode[planBody](t, get("?missed=1"))
	if missed.CurrentDay != 50 {
		t.Errorf("current_day = %d, want 50", missed.CurrentDay)
	}
	if len(missed.Entries) != 9 {
		t.Fatalf("missed entries = %d, want 9 (days 41-49)", len(missed.Entries))
	}
	if missed.Entries[0].DayNumber != 41 || missed.Entries[8].DayNumber != 49 {
		t.Errorf("missed range = %d..%d, want 41..49", missed.Entries[0].DayNumber, missed.Entries[8].DayNumber)
	}

	all := decode[planBody](t, get(""))
	if len(all.Entries) != 365 {
		t.Errorf("all entries = %d, want 365", len(all.Entries))
	}

	if rec := get("?month=13"); rec.Code != http.StatusBadRequest {
		t.Errorf("month=13: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRefreshPicksUpExternalWrites(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)

	rec := httptest.NewRecorder()
	env.prog.Stats(rec, asUser(httptest.NewRequest("GET", "/api/progress", nil), u.ID, true))

	env.progress.UpsertProgress(context.Background(), u.ID, 12, testNow)

	rec = httptest.NewRecorder()
	env.prog.Refresh(rec, asUser(httptest.NewRequest("POST", "/api/progress/refresh", nil), u.ID, true))
	body := decode[progressBody](t, rec)
	if body.Outcome != progress.OutcomeApplied || body.Stats.CompletedCount != 1 {
		t.Errorf("refresh = %+v, want applied with day 12", body)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.member(t, "anna@example.com", true)

	// a loaded engine must be dropped by raw writes
	env.prog.Stats(httptest.NewRecorder(), asUser(httptest.NewRequest("GET", "/api/progress", nil), u.ID, true))
	if env.registry.Len() != 1 {
		t.Fatalf("registry = %d, want 1", env.registry.Len())
	}

	req := httptest.NewRequest("PUT", "/api/records/progress/5", strings.NewReader(`{"completed_at":"2026-02-01T08:00:00Z"}`))
	req.SetPathValue("day", "5")
	rec := httptest.NewRecorder()
	env.records.Upsert(rec, asUser(req, u.ID, true))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("upsert: status = %d, want %d (body %s)", rec.Code, http.StatusNoContent, rec.Body)
	}
	if env.registry.Len() != 0 {
		t.Errorf("registry = %d, want 0 after raw write", env.registry.Len())
	}

	req = httptest.NewRequest("PUT", "/api/records/progress/6", nil)
	req.SetPathValue("day", "6")
	rec = httptest.NewRecorder()
	env.records.Upsert(rec, asUser(req, u.ID, true))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("upsert without body: status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	env.records.List(rec, asUser(httptest.NewRequest("GET", "/api/records/progress", nil), u.ID, true))
	list := decode[struct {
		Days []int `json:"days"`
	}](t, rec)
	if len(list.Days) != 2 || list.Days[0] != 5 || list.Days[1] != 6 {
		t.Errorf("days = %v, want [5 6]", list.Days)
	}

	req = httptest.NewRequest("DELETE", "/api/records/progress/5", nil)
	req.SetPathValue("day", "5")
	rec = httptest.NewRecorder()
	env.records.Delete(rec, asUser(req, u.ID, true))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	days, _ := env.progress.FetchProgress(context.Background(), u.ID)
	if len(days) != 1 || days[0] != 6 {
		t.Errorf("stored = %v, want [6]", days)
	}
}
