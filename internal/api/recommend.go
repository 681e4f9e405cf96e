package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/PriceEngine/internal/cache"
	"github.com/MikeSquared-Agency/PriceEngine/internal/hermes"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
)

const (
	maxBodyBytes = 1 << 20

	RecommendationIDHeader = "X-Recommendation-ID"
)

type RecommendHandler struct {
	holder  *pricing.Holder
	store   store.Store
	hermes  hermes.Client
	cache   cache.Cache
	metrics *metrics.Recorder
	logger  *slog.Logger
}

func NewRecommendHandler(d Deps) *RecommendHandler {
	return &RecommendHandler{
		holder:  d.Holder,
		store:   d.Store,
		hermes:  d.Hermes,
		cache:   d.Cache,
		metrics: d.Metrics,
		logger:  d.Logger,
	}
}

func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	explain := explainFlag(body["explain"]) || explainFlag(r.URL.Query().Get("explain"))
	delete(body, "explain")

	snap := h.holder.Load()
	res, err := h.evaluate(r, body, snap, explain)
	if err != nil {
		h.writeEvalError(w, err)
		return
	}

	id := uuid.New()
	w.Header().Set(RecommendationIDHeader, id.String())
	listingID := listingIDOf(body)

	if h.store != nil {
		rec := &store.Recommendation{
			ID:                 id,
			ListingID:          listingID,
			RecommendedPrice:   res.RecommendedPrice,
			Confidence:         res.Confidence,
			ModelVersion:       res.ModelVersion,
			WeightsFingerprint: snap.Fingerprint,
			Branch:             res.Branch,
			MinPriceHit:        res.MinPriceHit,
			CeilingHit:         res.CeilingHit,
			Request:            body,
		}
		if err := h.store.RecordRecommendation(r.Context(), rec); err != nil {
			h.logger.Warn("failed to record recommendation", "id", id, "error", err)
		}
	}

	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectRecommendationCreated, hermes.RecommendationCreatedEvent{
			RecommendationID: id.String(),
			ListingID:        listingID,
			RecommendedPrice: res.RecommendedPrice,
			Confidence:       res.Confidence,
			ModelVersion:     res.ModelVersion,
			Branch:           res.Branch,
			MinPriceHit:      res.MinPriceHit,
			CeilingHit:       res.CeilingHit,
			Timestamp:        time.Now().UTC(),
		})
	}

	h.metrics.RecordRecommendation(res.Branch, res.Confidence, res.MinPriceHit, res.CeilingHit, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

func (h *RecommendHandler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		h.metrics.RecordError("bad_request")
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	body, ok := raw.(map[string]any)
	if !ok {
		h.metrics.RecordError("bad_request")
		writeMessage(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return body, true
}

// evaluate serves from the cache when one is configured. Cache failures fall
// back to evaluating.
func (h *RecommendHandler) evaluate(r *http.Request, body map[string]any, snap *pricing.Snapshot, explain bool) (*pricing.Result, error) {
	var key string
	if h.cache != nil {
		var err error
		key, err = cache.Key(snap.Fingerprint, body, explain)
		if err == nil {
			res, hit, err := h.cache.Get(r.Context(), key)
			if err != nil {
				h.logger.Warn("cache lookup failed", "error", err)
			}
			h.metrics.RecordCache(hit)
			if hit {
				return res, nil
			}
		}
	}

	res, err := pricing.EvaluateBody(body, snap.Weights, explain)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := h.cache.Set(r.Context(), key, res); err != nil {
			h.logger.Warn("cache store failed", "error", err)
		}
	}
	return res, nil
}

func (h *RecommendHandler) writeEvalError(w http.ResponseWriter, err error) {
	var verr *pricing.ValidationError
	var cerr *pricing.ComputationError
	switch {
	case errors.As(err, &verr):
		h.metrics.RecordError("validation")
		writeJSON(w, http.StatusUnprocessableEntity, verr)
	case errors.As(err, &cerr):
		h.metrics.RecordError("computation")
		h.logger.Error("computation error", "stage", cerr.Stage, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "computation_error",
			"message": cerr.Error(),
		})
	default:
		h.metrics.RecordError("internal")
		h.logger.Error("recommendation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

// explainFlag accepts true, 1, "1", "true" and "yes".
func explainFlag(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

func listingIDOf(body map[string]any) string {
	id, ok := body["listing_id"]
	if !ok || id == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(id))
}
