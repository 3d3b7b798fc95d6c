package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
