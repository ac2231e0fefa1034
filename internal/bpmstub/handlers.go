package bpmstub

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/florianilch/bpm-client/bpm"
)

// defaultPageSize is the page size when a request does not set one.
const defaultPageSize = 10

// handleToken implements the OAuth2 password grant.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.checkClient(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2/client"`)
		writeJSON(ctx, w, TokenErrorResponse{Error: "invalid_client", ErrorDescription: "bad client credentials"}, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		writeJSON(ctx, w, TokenErrorResponse{Error: "invalid_request", ErrorDescription: err.Error()}, http.StatusBadRequest)
		return
	}
	if grant := r.PostForm.Get("grant_type"); grant != "password" {
		writeJSON(ctx, w, TokenErrorResponse{Error: "unsupported_grant_type", ErrorDescription: "unsupported grant type: " + grant}, http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	password, ok := s.opts.Users[username]
	if !ok || password != r.PostForm.Get("password") {
		writeJSON(ctx, w, TokenErrorResponse{Error: "invalid_grant", ErrorDescription: "bad credentials"}, http.StatusBadRequest)
		return
	}

	token := s.store.issueToken(username)
	s.opts.Logger.DebugContext(ctx, "issued access token", "user", username)

	writeJSON(ctx, w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   43199,
		"scope":        "api",
		"jti":          uuid.NewString(),
	}, http.StatusOK)
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	latest, err := boolParam(q, "latest")
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	suspended, err := boolParam(q, "suspended")
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	if latest != nil && *latest {
		for _, name := range []string{"name", "nameLike", "category", "suspended"} {
			if q.Has(name) {
				writeStoreError(r.Context(), w, fmt.Errorf("%w: 'latest' can only be used together with 'key' and 'keyLike'", errInvalid))
				return
			}
		}
	}

	defs := s.store.listDefinitions(definitionFilter{
		key:       q.Get("key"),
		keyLike:   q.Get("keyLike"),
		name:      q.Get("name"),
		nameLike:  q.Get("nameLike"),
		category:  q.Get("category"),
		suspended: suspended,
		latest:    latest != nil && *latest,
	})

	start, size, err := pageParams(q)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, page(defs, start, size, q.Get("sort"), q.Get("order")), http.StatusOK)
}

func (s *Server) handleDefinitionAction(w http.ResponseWriter, r *http.Request) {
	var req bpm.ProcessDefinitionActionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	var suspend bool
	switch req.Action {
	case bpm.ProcessDefinitionSuspend:
		suspend = true
	case bpm.ProcessDefinitionActivate:
	default:
		writeStoreError(r.Context(), w, fmt.Errorf("%w: invalid action: '%s'", errInvalid, req.Action))
		return
	}

	cascade := req.IncludeProcessInstances != nil && *req.IncludeProcessInstances
	def, err := s.store.setDefinitionSuspended(r.PathValue("id"), suspend, cascade)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, def, http.StatusOK)
}

func (s *Server) handleIdentityLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.store.identityLinks(r.PathValue("id"))
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, links, http.StatusOK)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	suspended, err := boolParam(q, "suspended")
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	includeVariables, err := boolParam(q, "includeProcessVariables")
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	instances, err := s.store.listInstances(instanceFilter{
		id:                   q.Get("id"),
		processDefinitionID:  q.Get("processDefinitionId"),
		processDefinitionKey: q.Get("processDefinitionKey"),
		businessKey:          q.Get("businessKey"),
		businessKeyLike:      q.Get("businessKeyLike"),
		startedBy:            q.Get("startedBy"),
		suspended:            suspended,
		includeVariables:     includeVariables != nil && *includeVariables,
	})
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	start, size, err := pageParams(q)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, page(instances, start, size, q.Get("sort"), q.Get("order")), http.StatusOK)
}

func (s *Server) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	var req bpm.ProcessInstanceCreateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	inst, err := s.store.startInstance(req, userFrom(r.Context()))
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	s.opts.Logger.DebugContext(r.Context(), "started process instance", "id", inst.ID, "definition", inst.ProcessDefinitionID)
	writeJSON(r.Context(), w, inst, http.StatusCreated)
}

func (s *Server) handleQueryInstances(w http.ResponseWriter, r *http.Request) {
	var req bpm.ProcessInstanceQueryRequest
	if err := readJSON(w, r, &req); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	instances, err := s.store.listInstances(instanceFilter{
		id:                   req.ProcessInstanceID,
		ids:                  req.ProcessInstanceIDs,
		processDefinitionID:  req.ProcessDefinitionID,
		processDefinitionKey: req.ProcessDefinitionKey,
		businessKey:          req.ProcessBusinessKey,
		businessKeyLike:      req.ProcessBusinessKeyLike,
		startedBy:            req.StartedBy,
		suspended:            req.Suspended,
		includeVariables:     req.IncludeProcessVariables != nil && *req.IncludeProcessVariables,
		variables:            req.Variables,
	})
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, page(instances, deref(req.Start, 0), deref(req.Size, defaultPageSize), req.Sort, req.Order), http.StatusOK)
}

func (s *Server) handleQueryTasks(w http.ResponseWriter, r *http.Request) {
	var req bpm.TaskQueryRequest
	if err := readJSON(w, r, &req); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	tasks, err := s.store.queryTasks(taskFilter{
		name:              req.Name,
		nameLike:          req.NameLike,
		assignee:          req.Assignee,
		assigneeLike:      req.AssigneeLike,
		owner:             req.Owner,
		unassigned:        req.Unassigned,
		candidateUser:     req.CandidateUser,
		candidateGroup:    req.CandidateGroup,
		processInstanceID: req.ProcessInstanceID,
		processDefKey:     req.ProcessDefinitionKey,
		includeVariables:  req.IncludeProcessVariables != nil && *req.IncludeProcessVariables,
		variables:         req.ProcessInstanceVariables,
	})
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, page(tasks, deref(req.Start, 0), deref(req.Size, defaultPageSize), req.Sort, req.Order), http.StatusOK)
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	var req bpm.TaskActionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	if err := s.store.taskAction(r.PathValue("id"), req, userFrom(r.Context())); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListVariables(w http.ResponseWriter, r *http.Request) {
	vars, err := s.store.instanceVariables(r.PathValue("id"))
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, vars, http.StatusOK)
}

func (s *Server) handleUpdateVariables(w http.ResponseWriter, r *http.Request) {
	var vars []bpm.RestVariable
	if err := readJSON(w, r, &vars); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	stored, err := s.store.setInstanceVariables(r.PathValue("id"), vars)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, stored, http.StatusCreated)
}

// page slices items into a DataResponse the way the engine pages list results.
func page[T any](items []T, start, size int, sort, order string) bpm.DataResponse[T] {
	total := len(items)
	start = min(max(start, 0), total)
	end := min(start+max(size, 0), total)

	data := items[start:end]
	if data == nil {
		data = []T{}
	}
	return bpm.DataResponse[T]{
		Data:  data,
		Total: total,
		Start: start,
		Sort:  sort,
		Order: order,
		Size:  len(data),
	}
}

func pageParams(q url.Values) (start, size int, err error) {
	start, size = 0, defaultPageSize
	if v := q.Get("start"); v != "" {
		if start, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: invalid start %q", errInvalid, v)
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: invalid size %q", errInvalid, v)
		}
	}
	return start, size, nil
}

func boolParam(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid boolean %s=%q", errInvalid, name, v)
	}
	return &b, nil
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
