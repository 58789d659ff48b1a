// Forge is a parametric 3D-model build service.
// Copyright (C) 2025  Matthew Burns
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package web exposes the model catalog and the generate endpoint over HTTP.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"forge/internal/build"
	"forge/internal/cache"
	"forge/internal/ctxkeys"
	"forge/internal/database"
	"forge/pkg/models"
)

// Handler handles the JSON API
type Handler struct {
	db        *database.DB
	cache     *cache.Cache
	buildPath string
}

// New creates a new API handler
func New(db *database.DB, c *cache.Cache, buildPath string) http.Handler {
	h := &Handler{db: db, cache: c, buildPath: buildPath}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /models", h.handleListModels)
	mux.HandleFunc("GET /models/{id}", h.handleGetModel)
	mux.HandleFunc("POST /generate/{model_id}/{part_id}", h.handleGenerate)

	return h.withRequestLog(mux)
}

// withRequestLog tags each request with a correlation ID and logs completion.
func (h *Handler) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, id := ctxkeys.EnsureCorrelationID(r.Context())
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.Info("Handled request", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start), "correlation_id", id)
	})
}

// displayModel is the catalog listing entry.
type displayModel struct {
	ModelID      int64  `json:"model_id"`
	Name         string `json:"name"`
	CreationDate string `json:"creation_date"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	ImagePath    string `json:"image_path"`
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	ms, err := h.db.GetModels(r.Context())
	if err != nil {
		h.serverError(w, r, "failed to list models", err)
		return
	}

	out := make([]displayModel, 0, len(ms))
	for _, m := range ms {
		out = append(out, displayModel{
			ModelID:      m.ID,
			Name:         m.Name,
			CreationDate: m.CreationDate,
			Description:  m.Description,
			Author:       m.Author,
			ImagePath:    m.ImagePath,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// displayModelDetail is the detail entry: the script and parts of one model.
type displayModelDetail struct {
	ModelID  int64         `json:"model_id"`
	Name     string        `json:"name"`
	ScadPath string        `json:"script_path"`
	Parts    []models.Part `json:"parts"`
}

func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "model id must be an integer")
		return
	}

	m, err := h.db.GetModel(r.Context(), id)
	if err != nil {
		h.serverError(w, r, "failed to load model", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no model with id %d", id))
		return
	}

	parts := m.Parts
	if parts == nil {
		parts = []models.Part{}
	}
	writeJSON(w, http.StatusOK, displayModelDetail{
		ModelID:  m.ID,
		Name:     m.Name,
		ScadPath: m.ScadPath,
		Parts:    parts,
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	modelID, err := strconv.ParseInt(r.PathValue("model_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "model id must be an integer")
		return
	}
	partID, err := strconv.ParseInt(r.PathValue("part_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "part id must be an integer")
		return
	}

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	m, err := h.db.GetModel(r.Context(), modelID)
	if err != nil {
		h.serverError(w, r, "failed to load model", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no model with id %d", modelID))
		return
	}

	var part *models.Part
	for i := range m.Parts {
		if m.Parts[i].ID == partID {
			part = &m.Parts[i]
			break
		}
	}
	if part == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("model %d has no part with id %d", modelID, partID))
		return
	}

	values, err := bindValues(part.Parameters, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.cache.Generate(r.Context(), cache.Request{
		ModelID:  modelID,
		PartID:   partID,
		PartName: part.Name,
		ScadPath: filepath.Join(h.buildPath, m.ScadPath),
		Values:   values,
	})
	if err != nil {
		var scadErr *build.ScadError
		if errors.As(err, &scadErr) {
			h.serverError(w, r, "compiler rejected the part instance", err)
			return
		}
		h.serverError(w, r, "failed to generate part instance", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// bindValues converts the parameter_id-keyed request body into the ordered
// (name, value) sequence the key derivation and command synthesis consume.
// The schema order of parameters is preserved.
func bindValues(params []models.Parameter, body map[string]any) ([]models.NamedValue, error) {
	values := make([]models.NamedValue, 0, len(params))
	for _, p := range params {
		raw, ok := body[strconv.FormatInt(p.ID(), 10)]
		if !ok {
			return nil, fmt.Errorf("missing value for parameter %d (%s)", p.ID(), p.ParamName())
		}

		var value models.ParamValue
		switch p.(type) {
		case models.BoolParameter:
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("parameter %s requires a boolean", p.ParamName())
			}
			value = models.BoolValue(b)
		case models.IntRangeParameter, models.IntListParameter:
			n, ok := raw.(json.Number)
			if !ok {
				return nil, fmt.Errorf("parameter %s requires an integer", p.ParamName())
			}
			v, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("parameter %s requires an integer", p.ParamName())
			}
			value = models.IntValue(v)
		case models.FloatRangeParameter, models.FloatListParameter:
			n, ok := raw.(json.Number)
			if !ok {
				return nil, fmt.Errorf("parameter %s requires a number", p.ParamName())
			}
			v, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("parameter %s requires a number", p.ParamName())
			}
			value = models.FloatValue(v)
		default:
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %s requires a string", p.ParamName())
			}
			value = models.StringValue(s)
		}

		values = append(values, models.NamedValue{Name: p.ParamName(), Value: value})
	}

	return values, nil
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "correlation_id", ctxkeys.GetCorrelationID(r.Context()))
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
