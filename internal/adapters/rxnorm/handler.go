package rxnorm

import (
	"encoding/json"
	"net/http"
	"strings"

	"careline/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, client *Client) {
	r.Get("/rxnorm/suggest", suggestHandler(client))
}

// suggestHandler godoc
// @Summary Sugerencias de nombres de medicamentos
// @Description Autocompleta nombres de medicamentos vía RxNorm. Consultas de menos de 3 caracteres o fallas del servicio externo devuelven lista vacía.
// @Tags rxnorm
// @Produce json
// @Param query query string true "Texto parcial del nombre"
// @Success 200 {array} Suggestion
// @Failure 401 {string} string "unauthorized"
// @Router /rxnorm/suggest [get]
func suggestHandler(client *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items := client.Suggest(r.Context(), r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(items)
	}
}
