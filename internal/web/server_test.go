package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smileynet/fiche"
	"github.com/smileynet/fiche/internal/contact"
	"github.com/smileynet/fiche/internal/store"
)

// envelope mirrors Response with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// failingStore returns a fixed error from every operation.
type failingStore struct {
	err error
}

func (f failingStore) Load() (store.Collection, error) { return store.Collection{}, f.err }
func (f failingStore) Submit(contact.Candidate) (store.Confirmation, error) {
	return store.Confirmation{}, f.err
}
func (f failingStore) ExportSnapshot() (store.Snapshot, error) { return store.Snapshot{}, f.err }

// panicStore panics on Load.
type panicStore struct{ failingStore }

func (panicStore) Load() (store.Collection, error) { panic("boom") }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	return store.New(filepath.Join(t.TempDir(), store.DefaultPath), store.WithClock(func() time.Time { return now }))
}

func newTestServer(t *testing.T, s RecordStore) *Server {
	t.Helper()
	srv, err := New(s, fiche.Templates, fiche.FormTemplate, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, h, req)
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, h, req)
}

func postMultipart(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range form {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/contacts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, h, req)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestNew_MissingTemplate(t *testing.T) {
	if _, err := New(newTestStore(t), fiche.Templates, "nope.html.tmpl", zerolog.Nop()); err == nil {
		t.Error("New(missing template) error = nil, want error")
	}
}

func TestIndex_RendersEmptyForm(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`name="last_name"`,
		`name="phone"`,
		`value="Ne sait pas"`,
		`maxlength="5"`,
		`min="1950-01-01"`,
		"Aucune fiche enregistrée.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestIndex_ShowsFlashAndRecords(t *testing.T) {
	// Given a stored record
	s := newTestStore(t)
	if _, err := s.Submit(contact.Candidate{LastName: "dupont", FirstName: "marie", Phone: "06"}); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, s).Handler()

	// When the page is requested with an error flash
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/?flash=Attention&error=1", nil))

	// Then both the flash and the record are rendered
	body := rec.Body.String()
	if !strings.Contains(body, `class="flash err">Attention`) {
		t.Errorf("page missing error flash:\n%s", body)
	}
	if !strings.Contains(body, "<td>DUPONT</td>") {
		t.Errorf("page missing stored record")
	}
	if !strings.Contains(body, "(1)") {
		t.Errorf("page missing record count")
	}
}

func TestIndex_LoadErrorStillRenders(t *testing.T) {
	h := newTestServer(t, failingStore{err: &store.StorageReadError{Path: "x", Err: store.ErrSchemaMismatch}}).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Lecture des données impossible.") {
		t.Error("page missing load error notice")
	}
}

func TestCreate_JSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess bool
		wantMessage string
		wantStored  int
	}{
		{
			name:        "valid submission",
			body:        `{"last_name":"dupont","first_name":"marie","age":"34","birth_date":"1990-05-02","postal_code":"75011","registration_status":"Non","phone":"0600000000"}`,
			wantStatus:  http.StatusCreated,
			wantSuccess: true,
			wantMessage: "Profil de Marie DUPONT enregistré avec succès !",
			wantStored:  1,
		},
		{
			name:        "numeric age",
			body:        `{"last_name":"dupont","phone":"0600000000","age":34}`,
			wantStatus:  http.StatusCreated,
			wantSuccess: true,
			wantMessage: "Profil de DUPONT enregistré avec succès !",
			wantStored:  1,
		},
		{
			name:       "numeric age out of range",
			body:       `{"last_name":"dupont","phone":"06","age":12}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:        "missing phone",
			body:        `{"last_name":"dupont"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: contact.RequiredMessage,
		},
		{
			name:        "blank last name",
			body:        `{"last_name":"   ","phone":"06"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: contact.RequiredMessage,
		},
		{
			name:       "age out of range",
			body:       `{"last_name":"dupont","phone":"06","age":"12"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed body",
			body:       `{"last_name":`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			h := newTestServer(t, s).Handler()

			rec := postJSON(t, h, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if env.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", env.Success, tt.wantSuccess)
			}
			if tt.wantMessage != "" && env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
			col, err := s.Load()
			if err != nil {
				t.Fatal(err)
			}
			if col.Len() != tt.wantStored {
				t.Errorf("stored records = %d, want %d", col.Len(), tt.wantStored)
			}
		})
	}
}

func TestCreate_JSONReturnsRecord(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	rec := postJSON(t, h, `{"last_name":"lefèvre","first_name":"élodie","phone":"06"}`)

	env := decodeEnvelope(t, rec)
	var got contact.Record
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.LastName != "LEFÈVRE" || got.FirstName != "Élodie" {
		t.Errorf("record names = %q %q, want Élodie LEFÈVRE", got.FirstName, got.LastName)
	}
	if got.EnteredAt != "2025-03-14 09:00:00" {
		t.Errorf("entered_at = %q, want %q", got.EnteredAt, "2025-03-14 09:00:00")
	}
	if got.Status != string(contact.StatusYes) {
		t.Errorf("status = %q, want default %q", got.Status, contact.StatusYes)
	}
}

func TestCreate_FormRedirectsWithFlash(t *testing.T) {
	encodings := []struct {
		name string
		post func(*testing.T, http.Handler, url.Values) *httptest.ResponseRecorder
	}{
		{name: "urlencoded", post: postForm},
		{name: "multipart", post: postMultipart},
	}
	for _, enc := range encodings {
		t.Run(enc.name, func(t *testing.T) {
			// Given a browser form post
			s := newTestStore(t)
			h := newTestServer(t, s).Handler()
			form := url.Values{
				"last_name":           {"dupont"},
				"first_name":          {"marie"},
				"phone":               {"06"},
				"registration_status": {"Ne sait pas"},
				"notes":               {"ligne 1\r\nligne 2"},
			}

			// When it is submitted
			rec := enc.post(t, h, form)

			// Then the browser is sent back to the form with the confirmation
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			loc, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatal(err)
			}
			if loc.Path != "/" {
				t.Errorf("redirect path = %q, want /", loc.Path)
			}
			if got := loc.Query().Get("flash"); got != "Profil de Marie DUPONT enregistré avec succès !" {
				t.Errorf("flash = %q", got)
			}
			if loc.Query().Get("error") != "" {
				t.Error("success redirect should not carry error flag")
			}

			col, err := s.Load()
			if err != nil {
				t.Fatal(err)
			}
			if col.Len() != 1 || col.Records[0].Status != "Ne sait pas" {
				t.Errorf("stored = %+v, want one record with status Ne sait pas", col.Records)
			}
		})
	}
}

func TestCreate_FormValidationRedirectsWithError(t *testing.T) {
	s := newTestStore(t)
	h := newTestServer(t, s).Handler()

	rec := postForm(t, h, url.Values{"first_name": {"marie"}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.Query().Get("flash"); got != contact.RequiredMessage {
		t.Errorf("flash = %q, want %q", got, contact.RequiredMessage)
	}
	if loc.Query().Get("error") != "1" {
		t.Error("error redirect should carry error=1")
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("storage file should not exist, stat err = %v", err)
	}
}

func TestCreate_StorageError(t *testing.T) {
	h := newTestServer(t, failingStore{err: &store.StorageWriteError{Path: "x", Err: errors.New("disk full")}}).Handler()

	rec := postJSON(t, h, `{"last_name":"dupont","phone":"06"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("success = true, want false")
	}
	if strings.Contains(env.Message, "disk full") {
		t.Errorf("message leaks internal error: %q", env.Message)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"dupont", "martin"} {
		if _, err := s.Submit(contact.Candidate{LastName: name, Phone: "06"}); err != nil {
			t.Fatal(err)
		}
	}
	h := newTestServer(t, s).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/contacts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var got listData
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || len(got.Records) != 2 {
		t.Fatalf("list = %+v, want 2 records", got)
	}
	if got.Records[0].LastName != "DUPONT" || got.Records[1].LastName != "MARTIN" {
		t.Errorf("order = %q, %q, want DUPONT, MARTIN", got.Records[0].LastName, got.Records[1].LastName)
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/contacts", nil))

	if !strings.Contains(rec.Body.String(), `"records":[]`) {
		t.Errorf("body = %s, want empty records array", rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	// Given a stored record
	s := newTestStore(t)
	if _, err := s.Submit(contact.Candidate{LastName: "dupont", Phone: "06"}); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, s).Handler()

	// When the export is downloaded
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/export", nil))

	// Then it is the storage file as a CSV attachment
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="contacts_proximite.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	stored, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Body.Bytes(), stored) {
		t.Errorf("export body = %q, want %q", rec.Body.Bytes(), stored)
	}
}

func TestExport_Error(t *testing.T) {
	h := newTestServer(t, failingStore{err: &store.StorageReadError{Path: "x", Err: store.ErrSchemaMismatch}}).Handler()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/export", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok", rec.Code, rec.Body.String())
	}
}

func TestRouting_Errors(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodDelete, "/contacts", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := do(t, h, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestRecoverer(t *testing.T) {
	h := newTestServer(t, panicStore{}).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/contacts", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Error("success = true, want false")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	srv, err := New(newTestStore(t), fiche.Templates, fiche.FormTemplate, zerolog.New(&buf))
	if err != nil {
		t.Fatal(err)
	}

	postJSON(t, srv.Handler(), `{"last_name":"dupont","phone":"06"}`)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		if err := json.Unmarshal(line, &e); err == nil && e["message"] == "request" {
			entry = e
		}
	}
	if entry == nil {
		t.Fatalf("no request log line in %q", buf.String())
	}
	if entry["status"] != float64(http.StatusCreated) || entry["path"] != "/contacts" || entry["method"] != "POST" {
		t.Errorf("request log = %v", entry)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	// Given a server on an ephemeral port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln, Options{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second})
	}()

	// When it answers a request and the context is cancelled
	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("healthz body = %q, want ok", body)
	}
	cancel()

	// Then Serve returns cleanly
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
