package bpmstub

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/florianilch/bpm-client/bpm"
)

// Definition seeds one deployed process definition.
type Definition struct {
	Key         string
	Name        string
	Version     int
	Category    string
	Description string

	// TaskName is the user task created for every started instance.
	TaskName string

	CandidateUsers  []string
	CandidateGroups []string
}

// DefaultDefinitions are deployed when Options.Definitions is empty.
var DefaultDefinitions = []Definition{
	{Key: "order", Name: "Order process", Version: 1, Category: "sales", TaskName: "Approve order", CandidateUsers: []string{"admin"}, CandidateGroups: []string{"sales"}},
	{Key: "order", Name: "Order process", Version: 2, Category: "sales", TaskName: "Approve order", CandidateUsers: []string{"admin"}, CandidateGroups: []string{"sales"}},
	{Key: "leave", Name: "Leave request", Version: 1, Category: "hr", TaskName: "Review leave request", CandidateGroups: []string{"managers"}},
}

// timeLayout matches the ISO-8601 timestamps BPM servers emit.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("conflict")
	errInvalid  = errors.New("invalid request")
)

type definitionEntry struct {
	def      bpm.ProcessDefinition
	taskName string
	links    []bpm.RestIdentityLink
}

type instanceEntry struct {
	inst bpm.ProcessInstance
	vars []bpm.RestVariable
}

// store holds the emulated engine state. Methods lock mu and return copies,
// except the definition and instance lookups, which expect mu to be held.
type store struct {
	mu          sync.Mutex
	apiRoot     string
	definitions []*definitionEntry
	instances   []*instanceEntry
	tasks       []*bpm.Task
	tokens      map[string]string
	now         func() time.Time
}

func newStore(apiRoot string, seeds []Definition) *store {
	s := &store{
		apiRoot: apiRoot,
		tokens:  make(map[string]string),
		now:     time.Now,
	}
	for _, seed := range seeds {
		s.deploy(seed)
	}
	return s
}

func (s *store) deploy(seed Definition) {
	id := fmt.Sprintf("%s:%d", seed.Key, seed.Version)
	taskName := seed.TaskName
	if taskName == "" {
		taskName = "Review"
	}

	entry := &definitionEntry{
		def: bpm.ProcessDefinition{
			ID:          id,
			URL:         s.apiRoot + "/repository/process-definitions/" + id,
			Key:         seed.Key,
			Version:     seed.Version,
			Name:        seed.Name,
			Description: seed.Description,
			Category:    seed.Category,
			Resource:    seed.Key + ".bpmn20.xml",
		},
		taskName: taskName,
	}
	for _, user := range seed.CandidateUsers {
		entry.links = append(entry.links, bpm.RestIdentityLink{User: user, Type: "candidate"})
	}
	for _, group := range seed.CandidateGroups {
		entry.links = append(entry.links, bpm.RestIdentityLink{Group: group, Type: "candidate"})
	}
	s.definitions = append(s.definitions, entry)
}

// issueToken records a new access token for user.
func (s *store) issueToken(user string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = user
	return token
}

// tokenUser returns the user an access token was issued to.
func (s *store) tokenUser(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.tokens[token]
	return user, ok
}

type definitionFilter struct {
	key       string
	keyLike   string
	name      string
	nameLike  string
	category  string
	suspended *bool
	latest    bool
}

func (s *store) listDefinitions(f definitionFilter) []bpm.ProcessDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[string]int)
	for _, e := range s.definitions {
		latest[e.def.Key] = max(latest[e.def.Key], e.def.Version)
	}

	var out []bpm.ProcessDefinition
	for _, e := range s.definitions {
		d := e.def
		switch {
		case f.key != "" && d.Key != f.key,
			f.keyLike != "" && !like(d.Key, f.keyLike, false),
			f.name != "" && d.Name != f.name,
			f.nameLike != "" && !like(d.Name, f.nameLike, false),
			f.category != "" && d.Category != f.category,
			f.suspended != nil && d.Suspended != *f.suspended,
			f.latest && latest[d.Key] != d.Version:
			continue
		}
		out = append(out, d)
	}
	return out
}

func (s *store) definition(id string) (*definitionEntry, error) {
	for _, e := range s.definitions {
		if e.def.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: could not find a process definition with id '%s'", errNotFound, id)
}

func (s *store) identityLinks(id string) ([]bpm.RestIdentityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.definition(id)
	if err != nil {
		return nil, err
	}
	return append([]bpm.RestIdentityLink{}, e.links...), nil
}

// setDefinitionSuspended suspends or activates a definition, optionally
// cascading to its instances and their tasks.
func (s *store) setDefinitionSuspended(id string, suspended, cascade bool) (bpm.ProcessDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.definition(id)
	if err != nil {
		return bpm.ProcessDefinition{}, err
	}
	if e.def.Suspended == suspended {
		state := "active"
		if suspended {
			state = "suspended"
		}
		return bpm.ProcessDefinition{}, fmt.Errorf("%w: process definition with id '%s' is already %s", errConflict, id, state)
	}

	e.def.Suspended = suspended
	if cascade {
		for _, ie := range s.instances {
			if ie.inst.ProcessDefinitionID != id || ie.inst.Ended {
				continue
			}
			ie.inst.Suspended = suspended
			for _, t := range s.tasks {
				if t.ProcessInstanceID == ie.inst.ID {
					t.Suspended = suspended
				}
			}
		}
	}
	return e.def, nil
}

// startInstance starts an instance of the definition selected by id or key and
// creates its user task.
func (s *store) startInstance(req bpm.ProcessInstanceCreateRequest, user string) (bpm.ProcessInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var def *definitionEntry
	switch {
	case req.ProcessDefinitionID != "":
		e, err := s.definition(req.ProcessDefinitionID)
		if err != nil {
			return bpm.ProcessInstance{}, fmt.Errorf("%w: %w", errInvalid, err)
		}
		def = e
	case req.ProcessDefinitionKey != "":
		for _, e := range s.definitions {
			if e.def.Key == req.ProcessDefinitionKey && (def == nil || e.def.Version > def.def.Version) {
				def = e
			}
		}
		if def == nil {
			return bpm.ProcessInstance{}, fmt.Errorf("%w: no processes deployed with key '%s'", errInvalid, req.ProcessDefinitionKey)
		}
	case req.Message != "":
		return bpm.ProcessInstance{}, fmt.Errorf("%w: starting by message is not supported", errInvalid)
	default:
		return bpm.ProcessInstance{}, fmt.Errorf("%w: either processDefinitionId or processDefinitionKey is required", errInvalid)
	}
	if def.def.Suspended {
		return bpm.ProcessInstance{}, fmt.Errorf("%w: cannot start process instance, process definition %s is suspended", errConflict, def.def.ID)
	}

	now := s.now().UTC().Format(timeLayout)
	id := uuid.NewString()
	ie := &instanceEntry{
		inst: bpm.ProcessInstance{
			ID:                           id,
			URL:                          s.apiRoot + "/runtime/process-instances/" + id,
			Name:                         req.Name,
			BusinessKey:                  req.BusinessKey,
			ProcessDefinitionID:          def.def.ID,
			ProcessDefinitionURL:         def.def.URL,
			ProcessDefinitionName:        def.def.Name,
			ProcessDefinitionDescription: def.def.Description,
			StartUserID:                  user,
			StartTime:                    now,
			TenantID:                     req.TenantID,
		},
	}
	ie.vars = upsertVariables(nil, req.Variables)
	s.instances = append(s.instances, ie)

	taskID := uuid.NewString()
	s.tasks = append(s.tasks, &bpm.Task{
		ID:                   taskID,
		URL:                  s.apiRoot + "/runtime/tasks/" + taskID,
		Name:                 def.taskName,
		CreateTime:           now,
		Priority:             50,
		TaskDefinitionKey:    "userTask",
		ExecutionID:          id,
		ProcessInstanceID:    id,
		ProcessInstanceURL:   ie.inst.URL,
		ProcessDefinitionID:  def.def.ID,
		ProcessDefinitionURL: def.def.URL,
		TenantID:             req.TenantID,
	})

	inst := ie.inst
	if req.ReturnVariables {
		inst.Variables = append([]bpm.RestVariable{}, ie.vars...)
	}
	return inst, nil
}

func (s *store) instance(id string) (*instanceEntry, error) {
	for _, ie := range s.instances {
		if ie.inst.ID == id {
			return ie, nil
		}
	}
	return nil, fmt.Errorf("%w: could not find a process instance with id '%s'", errNotFound, id)
}

type instanceFilter struct {
	id                   string
	ids                  []string
	processDefinitionID  string
	processDefinitionKey string
	businessKey          string
	businessKeyLike      string
	startedBy            string
	suspended            *bool
	includeVariables     bool
	variables            []bpm.QueryVariable
}

// listInstances returns running instances matching f.
func (s *store) listInstances(f instanceFilter) ([]bpm.ProcessInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bpm.ProcessInstance
	for _, ie := range s.instances {
		inst := ie.inst
		if inst.Ended {
			continue
		}

		def, _ := s.definition(inst.ProcessDefinitionID)
		switch {
		case f.id != "" && inst.ID != f.id,
			len(f.ids) > 0 && !slices.Contains(f.ids, inst.ID),
			f.processDefinitionID != "" && inst.ProcessDefinitionID != f.processDefinitionID,
			f.processDefinitionKey != "" && (def == nil || def.def.Key != f.processDefinitionKey),
			f.businessKey != "" && inst.BusinessKey != f.businessKey,
			f.businessKeyLike != "" && !like(inst.BusinessKey, f.businessKeyLike, false),
			f.startedBy != "" && inst.StartUserID != f.startedBy,
			f.suspended != nil && inst.Suspended != *f.suspended:
			continue
		}

		ok, err := matchVariables(ie.vars, f.variables)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if f.includeVariables {
			inst.Variables = append([]bpm.RestVariable{}, ie.vars...)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *store) instanceVariables(id string) ([]bpm.RestVariable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ie, err := s.instance(id)
	if err != nil {
		return nil, err
	}
	return append([]bpm.RestVariable{}, ie.vars...), nil
}

// setInstanceVariables creates or replaces variables by name and returns the
// stored representation of the given ones.
func (s *store) setInstanceVariables(id string, vars []bpm.RestVariable) ([]bpm.RestVariable, error) {
	for _, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variable name is required", errInvalid)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ie, err := s.instance(id)
	if err != nil {
		return nil, err
	}
	ie.vars = upsertVariables(ie.vars, vars)
	return upsertVariables(nil, vars), nil
}

type taskFilter struct {
	name              string
	nameLike          string
	assignee          string
	assigneeLike      string
	owner             string
	unassigned        *bool
	candidateUser     string
	candidateGroup    string
	processInstanceID string
	processDefKey     string
	includeVariables  bool
	variables         []bpm.QueryVariable
}

func (s *store) queryTasks(f taskFilter) ([]bpm.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bpm.Task
	for _, t := range s.tasks {
		ie, err := s.instance(t.ProcessInstanceID)
		if err != nil {
			return nil, err
		}
		def, err := s.definition(t.ProcessDefinitionID)
		if err != nil {
			return nil, err
		}

		switch {
		case f.name != "" && t.Name != f.name,
			f.nameLike != "" && !like(t.Name, f.nameLike, false),
			f.assignee != "" && t.Assignee != f.assignee,
			f.assigneeLike != "" && !like(t.Assignee, f.assigneeLike, false),
			f.owner != "" && t.Owner != f.owner,
			f.unassigned != nil && (t.Assignee == "") != *f.unassigned,
			f.candidateUser != "" && (t.Assignee != "" || !hasLink(def.links, f.candidateUser, "")),
			f.candidateGroup != "" && (t.Assignee != "" || !hasLink(def.links, "", f.candidateGroup)),
			f.processInstanceID != "" && t.ProcessInstanceID != f.processInstanceID,
			f.processDefKey != "" && def.def.Key != f.processDefKey:
			continue
		}

		ok, err := matchVariables(ie.vars, f.variables)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		task := *t
		if f.includeVariables {
			task.Variables = append([]bpm.RestVariable{}, ie.vars...)
		}
		out = append(out, task)
	}
	return out, nil
}

// taskAction applies a task action on behalf of user.
func (s *store) taskAction(id string, req bpm.TaskActionRequest, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: could not find a task with id '%s'", errNotFound, id)
	}
	t := s.tasks[idx]
	if t.Suspended {
		return fmt.Errorf("%w: task with id '%s' is suspended", errConflict, id)
	}

	switch req.Action {
	case bpm.TaskComplete:
		ie, err := s.instance(t.ProcessInstanceID)
		if err != nil {
			return err
		}
		ie.vars = upsertVariables(ie.vars, req.Variables)
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		ie.inst.Ended = true
		ie.inst.Completed = true
	case bpm.TaskClaim:
		assignee := req.Assignee
		if assignee == "" {
			assignee = user
		}
		if t.Assignee != "" && t.Assignee != assignee {
			return fmt.Errorf("%w: task '%s' is already claimed by someone else", errConflict, id)
		}
		t.Assignee = assignee
		t.ClaimTime = s.now().UTC().Format(timeLayout)
	case bpm.TaskDelegate:
		if req.Assignee == "" {
			return fmt.Errorf("%w: an assignee is required when delegating a task", errInvalid)
		}
		t.Owner = t.Assignee
		t.Assignee = req.Assignee
		t.DelegationState = "pending"
	case bpm.TaskResolve:
		if t.DelegationState != "pending" {
			return fmt.Errorf("%w: task '%s' is not delegated", errConflict, id)
		}
		t.Assignee = t.Owner
		t.DelegationState = "resolved"
	default:
		return fmt.Errorf("%w: invalid action: '%s'", errInvalid, req.Action)
	}
	return nil
}

// upsertVariables replaces variables by name, appending new ones, and fills
// in the type and scope the engine would report.
func upsertVariables(current, updates []bpm.RestVariable) []bpm.RestVariable {
	out := append([]bpm.RestVariable{}, current...)
	for _, v := range updates {
		if v.Type == "" {
			v.Type = variableType(v.Value)
		}
		v.Scope = "local"

		replaced := false
		for i := range out {
			if out[i].Name == v.Name {
				out[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, v)
		}
	}
	return out
}

func variableType(value any) string {
	switch v := value.(type) {
	case bool:
		return "boolean"
	case float64:
		if v == math.Trunc(v) {
			return "integer"
		}
		return "double"
	case nil:
		return "null"
	case string:
		return "string"
	default:
		return "json"
	}
}

func matchVariables(vars []bpm.RestVariable, conditions []bpm.QueryVariable) (bool, error) {
	for _, cond := range conditions {
		var value any
		found := false
		for _, v := range vars {
			if v.Name == cond.Name {
				value, found = v.Value, true
				break
			}
		}
		if !found {
			return false, nil
		}

		ok, err := compare(value, cond.Operation, cond.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(actual any, op bpm.QueryOperation, expected any) (bool, error) {
	switch op {
	case bpm.QueryEquals, "":
		return fmt.Sprint(actual) == fmt.Sprint(expected), nil
	case bpm.QueryNotEquals:
		return fmt.Sprint(actual) != fmt.Sprint(expected), nil
	case bpm.QueryEqualsIgnoreCase:
		return strings.EqualFold(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	case bpm.QueryNotEqualsIgnoreCase:
		return !strings.EqualFold(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	case bpm.QueryLike:
		return like(fmt.Sprint(actual), fmt.Sprint(expected), false), nil
	case bpm.QueryLikeIgnoreCase:
		return like(fmt.Sprint(actual), fmt.Sprint(expected), true), nil
	case bpm.QueryGreaterThan, bpm.QueryGreaterThanOrEquals, bpm.QueryLessThan, bpm.QueryLessThanOrEquals:
		a, aok := actual.(float64)
		b, bok := expected.(float64)
		if !aok || !bok {
			return false, fmt.Errorf("%w: operation %s requires numeric values", errInvalid, op)
		}
		switch op {
		case bpm.QueryGreaterThan:
			return a > b, nil
		case bpm.QueryGreaterThanOrEquals:
			return a >= b, nil
		case bpm.QueryLessThan:
			return a < b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, fmt.Errorf("%w: unsupported variable operation '%s'", errInvalid, op)
	}
}

// like matches s against a SQL LIKE pattern where % is the only wildcard.
func like(s, pattern string, ignoreCase bool) bool {
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), "%", ".*") + "$"
	if ignoreCase {
		expr = "(?i)" + expr
	}
	matched, err := regexp.MatchString(expr, s)
	return err == nil && matched
}

func hasLink(links []bpm.RestIdentityLink, user, group string) bool {
	for _, l := range links {
		if (user != "" && l.User == user) || (group != "" && l.Group == group) {
			return true
		}
	}
	return false
}

