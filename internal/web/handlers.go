package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sammcj/mcp-base64/internal/tools"
)

const (
	themeCookie = "theme"
	themeMaxAge = 365 * 24 * time.Hour
	// jsonOverhead allows for the envelope and escaping around the text field
	jsonOverhead = 1024
)

// ConvertRequest is the body of POST /api/convert
type ConvertRequest struct {
	Mode string `json:"mode"`
	Text string `json:"text"`
}

// ThemeRequest is the body of POST /api/theme
type ThemeRequest struct {
	Dark bool `json:"dark"`
}

type pageData struct {
	Nonce string
	Dark  bool
	Modes []converter.Mode
	Year  int
}

func (s *Server) pageData(r *http.Request) pageData {
	return pageData{
		Nonce: nonceFromContext(r.Context()),
		Dark:  s.isDark(r),
		Modes: []converter.Mode{converter.ModeEncode, converter.ModeDecode},
		Year:  time.Now().Year(),
	}
}

// isDark prefers the client's cookie over the persisted preference
func (s *Server) isDark(r *http.Request) bool {
	if c, err := r.Cookie(themeCookie); err == nil {
		switch c.Value {
		case "dark":
			return true
		case "light":
			return false
		}
	}
	if s.theme == nil {
		return true
	}
	return s.theme.IsDarkMode()
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, s.pageData(r)); err != nil {
		s.logger.WithError(err).WithField("template", name).Error("Failed to render page")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html")
}

func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "privacy.html")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleConvert runs one conversion. Conversion failures are results, so they
// are returned with status 200.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	maxInput := s.config.Get().MaxInputBytes
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxInput)*2+jsonOverhead)

	var body ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode, err := converter.ParseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Text) > maxInput {
		writeError(w, http.StatusRequestEntityTooLarge, "text exceeds the maximum input size")
		return
	}

	req := converter.Request{Mode: mode, Text: body.Text}
	result := telemetry.TraceConvert(r.Context(), "web", req)
	if result.Failed() {
		tools.GetGlobalFailureLogger().LogFailure(r.Context(), "web", req, result)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleTheme stores the theme choice in a cookie for this browser only
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonOverhead)

	var body ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	value := "light"
	if body.Dark {
		value = "dark"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(themeMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]any{"dark": body.Dark})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
