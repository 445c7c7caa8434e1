package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smileynet/fiche/internal/contact"
)

// maxBodyBytes caps submission bodies.
const maxBodyBytes = 1 << 20

type pageData struct {
	Flash            string
	FlashError       bool
	LoadError        string
	Statuses         []contact.Status
	Columns          []string
	Records          []contact.Record
	MinAge           int
	MaxAge           int
	MinBirthDate     string
	PostalCodeMaxLen int
}

type listData struct {
	Count   int              `json:"count"`
	Records []contact.Record `json:"records"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pageData{
		Flash:            q.Get("flash"),
		FlashError:       q.Get("error") != "",
		Statuses:         contact.Statuses(),
		Columns:          contact.Columns(),
		MinAge:           contact.MinAge,
		MaxAge:           contact.MaxAge,
		MinBirthDate:     contact.MinBirthDate.Format(contact.DateLayout),
		PostalCodeMaxLen: contact.PostalCodeMaxLen,
	}
	col, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("index: load failed")
		data.LoadError = "Lecture des données impossible."
	} else {
		data.Records = col.Records
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Error().Err(err).Msg("index: rendering failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	htmlForm := isFormPost(r)

	in, err := decodeInput(w, r, htmlForm)
	if err != nil {
		s.reject(w, r, htmlForm, http.StatusBadRequest, "Requête invalide.")
		return
	}
	c, err := in.Parse()
	if err != nil {
		s.reject(w, r, htmlForm, http.StatusUnprocessableEntity, err.Error())
		return
	}

	conf, err := s.store.Submit(c)
	switch {
	case errors.Is(err, contact.ErrValidation):
		s.reject(w, r, htmlForm, http.StatusUnprocessableEntity, contact.RequiredMessage)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("create: submit failed")
		s.reject(w, r, htmlForm, http.StatusInternalServerError, "Échec de l'enregistrement.")
		return
	}

	if htmlForm {
		redirectWithFlash(w, r, conf.Message(), false)
		return
	}
	SuccessResponse(w, http.StatusCreated, conf.Record, conf.Message())
}

// reject answers a failed submission: a flash redirect for browser posts,
// an error envelope otherwise.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, htmlForm bool, status int, msg string) {
	if htmlForm {
		redirectWithFlash(w, r, msg, true)
		return
	}
	ErrorResponse(w, status, msg)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	col, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("list: load failed")
		ErrorResponse(w, http.StatusInternalServerError, "Lecture des données impossible.")
		return
	}
	records := col.Records
	if records == nil {
		records = []contact.Record{}
	}
	SuccessResponse(w, http.StatusOK, listData{Count: len(records), Records: records}, "")
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.store.ExportSnapshot()
	if err != nil {
		s.log.Error().Err(err).Msg("export: snapshot failed")
		ErrorResponse(w, http.StatusInternalServerError, "Export impossible.")
		return
	}
	h := w.Header()
	h.Set("Content-Type", snap.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Filename))
	h.Set("Content-Length", strconv.Itoa(len(snap.Data)))
	_, _ = w.Write(snap.Data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

const (
	mediaURLEncoded = "application/x-www-form-urlencoded"
	mediaMultipart  = "multipart/form-data"
)

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// isFormPost reports whether r carries an HTML form body.
func isFormPost(r *http.Request) bool {
	mt := mediaType(r)
	return mt == mediaURLEncoded || mt == mediaMultipart
}

func decodeInput(w http.ResponseWriter, r *http.Request, htmlForm bool) (contact.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if !htmlForm {
		var in contact.Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return contact.Input{}, fmt.Errorf("web: decoding json: %w", err)
		}
		return in, nil
	}

	// ParseForm leaves multipart bodies unread.
	parse := r.ParseForm
	if mediaType(r) == mediaMultipart {
		parse = func() error { return r.ParseMultipartForm(maxBodyBytes) }
	}
	if err := parse(); err != nil {
		return contact.Input{}, fmt.Errorf("web: parsing form: %w", err)
	}
	return contact.Input{
		LastName:   r.PostFormValue("last_name"),
		FirstName:  r.PostFormValue("first_name"),
		Age:        r.PostFormValue("age"),
		BirthDate:  r.PostFormValue("birth_date"),
		Address:    r.PostFormValue("address"),
		PostalCode: r.PostFormValue("postal_code"),
		Status:     r.PostFormValue("registration_status"),
		Phone:      r.PostFormValue("phone"),
		Notes:      r.PostFormValue("notes"),
	}, nil
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, msg string, isErr bool) {
	q := url.Values{"flash": {msg}}
	if isErr {
		q.Set("error", "1")
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}
