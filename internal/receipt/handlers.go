package receipt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/splitit/internal/scanning"
)

type imagePayload struct {
	ImageB64  string `json:"image_b64"`
	MediaType string `json:"media_type"`
}

type multiImagePayload struct {
	Images json.RawMessage `json:"images"`
}

type successResponse struct {
	OK   bool    `json:"ok"`
	Data Receipt `json:"data"`
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes an {"error": message} response
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeParseError maps a parse failure to a response. Quota failures are rewritten
// into renewal guidance; everything else reports its own message.
func writeParseError(w http.ResponseWriter, err error) {
	var providerErr *scanning.ProviderError
	if errors.As(err, &providerErr) && scanning.IsQuotaError(err) {
		writeError(w, http.StatusBadRequest, quotaMessage)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleHealth reports whether extraction is configured
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// handleParse extracts a receipt from one image
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var payload imagePayload
	if !s.readPayload(w, r, &payload) {
		return
	}

	img, err := decodeImage(payload)
	if err != nil {
		writeParseError(w, err)
		return
	}

	receipt, err := s.service.ParseImage(r.Context(), img)
	if err != nil {
		slog.Error("Error parsing receipt", "error", err)
		writeParseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{OK: true, Data: receipt})
}

// handleParseMulti extracts one receipt from several images of it.
// Entries that are not objects or carry no image are skipped.
func (s *Server) handleParseMulti(w http.ResponseWriter, r *http.Request) {
	var payload multiImagePayload
	if !s.readPayload(w, r, &payload) {
		return
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(payload.Images, &entries); err != nil || len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "Missing images[]")
		return
	}

	imgs := make([]Image, 0, len(entries))
	for _, raw := range entries {
		var entry imagePayload
		if err := json.Unmarshal(raw, &entry); err != nil || entry.ImageB64 == "" {
			continue
		}
		img, err := decodeImage(entry)
		if err != nil {
			writeParseError(w, err)
			return
		}
		imgs = append(imgs, img)
	}

	receipt, err := s.service.ParseImages(r.Context(), imgs)
	if err != nil {
		slog.Error("Error parsing receipt images", "images", len(imgs), "error", err)
		writeParseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{OK: true, Data: receipt})
}

// readPayload checks configuration, bounds the body size and decodes the JSON body.
// It writes the error response itself and reports whether decoding succeeded.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := s.service.Ready(); err != nil {
		writeParseError(w, err)
		return false
	}

	tooLarge := fmt.Sprintf("Request too large (> %d bytes). Use smaller images.", MaxRequestBytes)
	if r.ContentLength > MaxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return false
		}
		writeError(w, http.StatusBadRequest, "Error reading request body")
		return false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Empty request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// decodeImage decodes strict base64 image data. Data URLs are accepted and supply
// the media type when the payload does not.
func decodeImage(p imagePayload) (Image, error) {
	data := strings.TrimSpace(p.ImageB64)
	mediaType := strings.TrimSpace(p.MediaType)

	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, encoded, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return Image{}, &InputError{Msg: "Invalid image_b64 data URL"}
		}
		if mediaType == "" {
			mediaType = strings.TrimSuffix(header, ";base64")
		}
		data = encoded
	}

	if data == "" {
		return Image{}, &InputError{Msg: "Missing image_b64"}
	}
	if mediaType == "" {
		mediaType = scanning.DefaultMediaType
	}

	decoded, err := base64.StdEncoding.Strict().DecodeString(data)
	if err != nil {
		return Image{}, &InputError{Msg: fmt.Sprintf("Invalid base64 in image_b64: %v", err)}
	}
	return Image{Data: decoded, MediaType: mediaType}, nil
}
