package authguard

import (
	"encoding/json"
	"net/http"
)

// Middleware returns an http.Handler that refuses requests while the
// session is not Active. Locked sessions get 423, verifying sessions 428,
// each with a JSON body naming the state.
func (s *Session) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := s.State()
		if st == Active {
			next.ServeHTTP(w, r)
			return
		}

		code := http.StatusLocked
		if st == Verifying {
			code = http.StatusPreconditionRequired
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"blocked":    true,
			"state":      st.String(),
			"session_id": s.ID(),
		})
	})
}
