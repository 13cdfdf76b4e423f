package rxnorm

import (
	"context"
	"net/url"
	"strings"
	"time"

	"careline/internal/platform/httpclient"

	"github.com/rs/zerolog"
)

// DefaultBaseURL es la API pública de RxNav.
const DefaultBaseURL = "https://rxnav.nlm.nih.gov/REST"

const (
	// cacheTTL define cuánto tiempo se reutiliza una respuesta cacheada.
	cacheTTL = 7 * 24 * time.Hour

	minQueryLen    = 3
	maxSuggestions = 10
)

// Suggestion es un concepto de RxNorm candidato para autocompletar el nombre
// del medicamento.
type Suggestion struct {
	RxCUI string `json:"rxcui"`
	Name  string `json:"name"`
}

// Cache guarda respuestas por consulta normalizada. Get solo devuelve
// entradas con fetched_at >= freshSince.
type Cache interface {
	Get(ctx context.Context, query string, freshSince time.Time) ([]Suggestion, bool, error)
	Put(ctx context.Context, query string, items []Suggestion, fetchedAt time.Time) error
}

// Client consulta RxNav con caché de 7 días. Todas las fallas (red, API,
// caché) degradan a lista vacía: el autocompletado nunca bloquea el alta de
// un medicamento.
type Client struct {
	http  *httpclient.Client
	cache Cache
	log   zerolog.Logger
	now   func() time.Time
}

func New(http *httpclient.Client, cache Cache, log zerolog.Logger) *Client {
	return &Client{
		http:  http,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// forma de /drugs.json de RxNav
type drugsResponse struct {
	DrugGroup struct {
		ConceptGroup []struct {
			ConceptProperties []struct {
				RxCUI string `json:"rxcui"`
				Name  string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"drugGroup"`
}

// Suggest devuelve hasta 10 conceptos para la consulta. Consultas de menos
// de 3 caracteres devuelven lista vacía sin tocar la red.
func (c *Client) Suggest(ctx context.Context, query string) []Suggestion {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < minQueryLen {
		return []Suggestion{}
	}

	now := c.now()
	if c.cache != nil {
		items, ok, err := c.cache.Get(ctx, q, now.Add(-cacheTTL))
		if err != nil {
			c.log.Warn().Err(err).Str("query", q).Msg("rxnorm cache read failed")
		} else if ok {
			return items
		}
	}

	var resp drugsResponse
	if err := c.http.GetJSON(ctx, "/drugs.json?name="+url.QueryEscape(q), nil, &resp); err != nil {
		c.log.Warn().Err(err).Str("query", q).Msg("rxnorm lookup failed")
		return []Suggestion{}
	}

	items := make([]Suggestion, 0, maxSuggestions)
	for _, group := range resp.DrugGroup.ConceptGroup {
		for _, p := range group.ConceptProperties {
			if strings.TrimSpace(p.RxCUI) == "" || strings.TrimSpace(p.Name) == "" {
				continue
			}
			items = append(items, Suggestion{RxCUI: p.RxCUI, Name: p.Name})
			if len(items) == maxSuggestions {
				break
			}
		}
		if len(items) == maxSuggestions {
			break
		}
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, q, items, now); err != nil {
			c.log.Warn().Err(err).Str("query", q).Msg("rxnorm cache write failed")
		}
	}
	return items
}
