package controlplane

import (
	"net/http"
	"strconv"
	"strings"
)

// DefaultUserHeader é onde o interceptor de autenticação deixa o usuário
// resolvido. O id segue como parâmetro explícito a partir daqui.
const DefaultUserHeader = "X-User-Id"

func userID(r *http.Request, header string) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
