package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/registry"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// MachineResponse describes a machine.
type MachineResponse struct {
	Name     string                `json:"name"`
	State    statemachine.State    `json:"state"`
	Previous statemachine.State    `json:"previous,omitempty"`
	Actions  []statemachine.Action `json:"actions"`
}

// TransitionResponse is returned by the action endpoints. Payload echoes the
// request payload after computed targets had a chance to modify it.
type TransitionResponse struct {
	Name    string             `json:"name"`
	State   statemachine.State `json:"state"`
	Payload any                `json:"payload,omitempty"`
}

// HistoryResponse wraps a machine's audit log.
type HistoryResponse struct {
	Name    string               `json:"name"`
	History statemachine.History `json:"history"`
}

type handlers struct {
	reg        *registry.Registry
	log        *slog.Logger
	maxPayload int64
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	name, m, err := h.reg.Create(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(name, m))
}

func (h *handlers) show(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, err := h.reg.Get(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(name, m))
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, err := h.reg.Get(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Name: name, History: m.History()})
}

func (h *handlers) do(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	action := statemachine.Action(chi.URLParam(r, "action"))

	payload, err := h.decodePayload(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	state, err := h.reg.Do(r.Context(), name, action, payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Name: name, State: state, Payload: payload})
}

func (h *handlers) next(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state, err := h.reg.Next(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Name: name, State: state})
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state, err := h.reg.Reset(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Name: name, State: state})
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	purge := false
	if v := r.URL.Query().Get("purge"); v != "" {
		var err error
		if purge, err = strconv.ParseBool(v); err != nil {
			h.fail(w, r, ErrBadRequest)
			return
		}
	}

	if err := h.reg.Remove(r.Context(), name, purge); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodePayload reads an optional JSON body. An empty body yields nil.
func (h *handlers) decodePayload(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return payload, nil
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			logger.Component("api"),
			logger.Machine(chi.URLParam(r, "name")),
			logger.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func describe(name string, m *statemachine.Machine) MachineResponse {
	prev, _ := m.PreviousState()
	actions := m.Actions()
	if actions == nil {
		actions = []statemachine.Action{}
	}
	return MachineResponse{
		Name:     name,
		State:    m.CurrentState(),
		Previous: prev,
		Actions:  actions,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
