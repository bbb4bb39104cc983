// Package portaltest runs an in-process imitation of the tender portal: a
// landing page that hands out a session cookie, the DataTables listing
// endpoint, detail views and attachment downloads.
package portaltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
)

const SessionCookie = "JSESSIONID"

type Server struct {
	*httptest.Server

	mutex sync.Mutex

	rows    [][]any
	details map[string]string
	files   map[string][]byte

	// failFiles counts down the failing responses left for a file path.
	failFiles map[string]int

	// failListing is the number of listing requests that fail with
	// failStatus, -1 fails every one.
	failListing int
	failStatus  int
	// rejectDetails answers every detail request with this status when set.
	rejectDetails int
	expireOnce  bool
	noCookie    bool
	malformed   bool

	sessions    map[string]bool
	nextSession int

	LandingHits int
	ListingHits int
	DetailHits  int
	FileHits    map[string]int
	LastForm    url.Values
	LastHeaders http.Header
}

func New() *Server {
	s := &Server{
		details:   map[string]string{},
		files:     map[string][]byte{},
		failFiles: map[string]int{},
		sessions:  map[string]bool{},
		FileHits:  map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/TenderDetailsHome.html", s.landing)
	mux.HandleFunc("/TenderDetailsHomeJson.html", s.listing)
	mux.HandleFunc("/ViewDetailTenderDetail.html", s.detail)
	mux.HandleFunc("/files/", s.file)
	s.Server = httptest.NewServer(mux)
	return s
}

// Row builds a listing row the way the portal renders one, with markup in
// some cells and the detail action in the last.
func Row(id, title string) []any {
	return []any{
		"<span class=\"dept\">Roads &amp; Buildings</span>",
		"NIT-" + id,
		"Works",
		"<b>" + title + "</b>",
		"1,00,000",
		"01-03-2024",
		"02-03-2024",
		"20-03-2024",
		id,
		fmt.Sprintf(`<a href="#" onclick="GetTenderInfo('%s','O','R%s')">View</a>`, id, id),
	}
}

func (s *Server) SetRows(rows ...[]any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rows = rows
}

// SetDetail registers the detail html served for a tender id.
func (s *Server) SetDetail(id, html string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.details[id] = html
}

// SetFile registers a download under /files/<name> and returns its url.
func (s *Server) SetFile(name string, contents []byte) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.files["/files/"+name] = contents
	return s.URL + "/files/" + name
}

// FailFile makes the next n downloads of name answer with a 503.
func (s *Server) FailFile(name string, n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failFiles["/files/"+name] = n
}

func (s *Server) FailListing(n, status int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failListing = n
	s.failStatus = status
}

// RejectDetails makes every detail request fail with status, regardless of
// the session.
func (s *Server) RejectDetails(status int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rejectDetails = status
}

// ExpireSessionOnce makes the next listing request fail as if the session
// had timed out.
func (s *Server) ExpireSessionOnce() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.expireOnce = true
}

func (s *Server) WithholdCookie() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.noCookie = true
}

func (s *Server) ServeMalformed() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.malformed = true
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LandingHits++
	if !s.noCookie {
		s.nextSession++
		id := strconv.Itoa(s.nextSession)
		s.sessions[id] = true
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/"})
	}
	w.Header().Set("content-type", "text/html")
	fmt.Fprint(w, `<html><body><table id="pagetable13"></table></body></html>`)
}

func (s *Server) hasSession(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	return err == nil && s.sessions[cookie.Value]
}

func (s *Server) listing(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ListingHits++
	if s.failListing != 0 {
		if s.failListing > 0 {
			s.failListing--
		}
		w.WriteHeader(s.failStatus)
		return
	}
	if s.expireOnce {
		s.expireOnce = false
		s.sessions = map[string]bool{}
	}
	if !s.hasSession(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	err := r.ParseForm()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.LastForm = r.PostForm
	s.LastHeaders = r.Header.Clone()

	w.Header().Set("content-type", "application/json")
	if s.malformed {
		fmt.Fprint(w, `{"sEcho": 1, "aaData": [[`)
		return
	}

	start, _ := strconv.Atoi(r.PostForm.Get("iDisplayStart"))
	length, _ := strconv.Atoi(r.PostForm.Get("iDisplayLength"))
	end := start + length
	if start > len(s.rows) {
		start = len(s.rows)
	}
	if end > len(s.rows) {
		end = len(s.rows)
	}
	window := s.rows[start:end]
	if window == nil {
		window = [][]any{}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"sEcho":                r.PostForm.Get("sEcho"),
		"iTotalRecords":        len(s.rows),
		"iTotalDisplayRecords": strconv.Itoa(len(s.rows)),
		"aaData":               window,
	})
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.DetailHits++
	if s.rejectDetails != 0 {
		w.WriteHeader(s.rejectDetails)
		return
	}
	if !s.hasSession(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	html, ok := s.details[r.URL.Query().Get("tenderNo")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("content-type", "text/html")
	fmt.Fprint(w, html)
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.FileHits[r.URL.Path]++
	if s.failFiles[r.URL.Path] > 0 {
		s.failFiles[r.URL.Path]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	contents, ok := s.files[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("content-type", "application/octet-stream")
	w.Write(contents)
}

func (s *Server) Hits() (landing, listing, detail int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.LandingHits, s.ListingHits, s.DetailHits
}

func (s *Server) Downloads(name string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.FileHits["/files/"+name]
}
