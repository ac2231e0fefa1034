package bpm

import "time"

// Ptr returns a pointer to v, for filling optional request fields.
func Ptr[T any](v T) *T {
	return &v
}

// DataResponse is a page of results as returned by list and query endpoints.
type DataResponse[T any] struct {
	Data  []T    `json:"data"`
	Total int    `json:"total"`
	Start int    `json:"start"`
	Sort  string `json:"sort,omitempty"`
	Order string `json:"order,omitempty"`
	Size  int    `json:"size"`
}

// ProcessDefinition describes a deployed process definition.
type ProcessDefinition struct {
	ID                       string `json:"id,omitempty"`
	URL                      string `json:"url,omitempty"`
	Key                      string `json:"key,omitempty"`
	Version                  int    `json:"version,omitempty"`
	Name                     string `json:"name,omitempty"`
	Description              string `json:"description,omitempty"`
	TenantID                 string `json:"tenantId,omitempty"`
	DeploymentID             string `json:"deploymentId,omitempty"`
	DeploymentURL            string `json:"deploymentUrl,omitempty"`
	Resource                 string `json:"resource,omitempty"`
	DiagramResource          string `json:"diagramResource,omitempty"`
	Category                 string `json:"category,omitempty"`
	GraphicalNotationDefined bool   `json:"graphicalNotationDefined"`
	Suspended                bool   `json:"suspended"`
	StartFormDefined         bool   `json:"startFormDefined"`
}

// ProcessDefinitionSort is a property process definitions can be sorted on.
type ProcessDefinitionSort string

const (
	ProcessDefinitionSortName         ProcessDefinitionSort = "name"
	ProcessDefinitionSortID           ProcessDefinitionSort = "id"
	ProcessDefinitionSortKey          ProcessDefinitionSort = "key"
	ProcessDefinitionSortCategory     ProcessDefinitionSort = "category"
	ProcessDefinitionSortDeploymentID ProcessDefinitionSort = "deploymentId"
	ProcessDefinitionSortVersion      ProcessDefinitionSort = "version"
)

// ListProcessDefinitionsRequest filters ListProcessDefinitions. Nil fields are not sent.
type ListProcessDefinitionsRequest struct {
	Version           *int    `json:"version,omitempty"`
	Name              *string `json:"name,omitempty"`
	NameLike          *string `json:"nameLike,omitempty"`
	Key               *string `json:"key,omitempty"`
	KeyLike           *string `json:"keyLike,omitempty"`
	ResourceName      *string `json:"resourceName,omitempty"`
	ResourceNameLike  *string `json:"resourceNameLike,omitempty"`
	Category          *string `json:"category,omitempty"`
	CategoryLike      *string `json:"categoryLike,omitempty"`
	CategoryNotEquals *string `json:"categoryNotEquals,omitempty"`
	DeploymentID      *string `json:"deploymentId,omitempty"`
	StartableByUser   *string `json:"startableByUser,omitempty"`
	Suspended         *bool   `json:"suspended,omitempty"`

	// Latest can only be combined with Key and KeyLike; the server rejects other filters with 400.
	Latest *bool `json:"latest,omitempty"`

	Sort  *ProcessDefinitionSort `json:"sort,omitempty"`
	Order *string                `json:"order,omitempty"`
	Start *int                   `json:"start,omitempty"`
	Size  *int                   `json:"size,omitempty"`
}

// ProcessDefinitionAction is an action applicable to a process definition.
type ProcessDefinitionAction string

const (
	ProcessDefinitionActivate ProcessDefinitionAction = "activate"
	ProcessDefinitionSuspend  ProcessDefinitionAction = "suspend"
)

// ProcessDefinitionActionRequest suspends or activates a process definition.
type ProcessDefinitionActionRequest struct {
	Action ProcessDefinitionAction `json:"action"`

	// IncludeProcessInstances also suspends/activates the running instances.
	IncludeProcessInstances *bool `json:"includeProcessInstances,omitempty"`

	// Date schedules the action; nil means immediately.
	Date *time.Time `json:"date,omitempty"`
}

// RestIdentityLink links a user or group to a process definition.
type RestIdentityLink struct {
	URL   string `json:"url,omitempty"`
	User  string `json:"user,omitempty"`
	Group string `json:"group,omitempty"`
	Type  string `json:"type,omitempty"`
}

// RestVariable is a process or task variable. Value is passed through untyped.
type RestVariable struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    any    `json:"value,omitempty"`
	ValueURL string `json:"valueUrl,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// ProcessInstance describes a running or finished process instance.
type ProcessInstance struct {
	ID                           string         `json:"id,omitempty"`
	URL                          string         `json:"url,omitempty"`
	Name                         string         `json:"name,omitempty"`
	BusinessKey                  string         `json:"businessKey,omitempty"`
	Suspended                    bool           `json:"suspended"`
	Ended                        bool           `json:"ended"`
	ProcessDefinitionID          string         `json:"processDefinitionId,omitempty"`
	ProcessDefinitionURL         string         `json:"processDefinitionUrl,omitempty"`
	ProcessDefinitionName        string         `json:"processDefinitionName,omitempty"`
	ProcessDefinitionDescription string         `json:"processDefinitionDescription,omitempty"`
	ActivityID                   string         `json:"activityId,omitempty"`
	StartUserID                  string         `json:"startUserId,omitempty"`
	StartTime                    string         `json:"startTime,omitempty"`
	Variables                    []RestVariable `json:"variables,omitempty"`
	CallbackID                   string         `json:"callbackId,omitempty"`
	CallbackType                 string         `json:"callbackType,omitempty"`
	ReferenceID                  string         `json:"referenceId,omitempty"`
	ReferenceType                string         `json:"referenceType,omitempty"`
	TenantID                     string         `json:"tenantId,omitempty"`
	Completed                    bool           `json:"completed"`
}

// ListProcessInstancesRequest filters ListProcessInstances. Nil fields are not sent.
type ListProcessInstancesRequest struct {
	ID                             *string `json:"id,omitempty"`
	Name                           *string `json:"name,omitempty"`
	NameLike                       *string `json:"nameLike,omitempty"`
	NameLikeIgnoreCase             *string `json:"nameLikeIgnoreCase,omitempty"`
	ProcessDefinitionKey           *string `json:"processDefinitionKey,omitempty"`
	ProcessDefinitionID            *string `json:"processDefinitionId,omitempty"`
	ProcessDefinitionCategory      *string `json:"processDefinitionCategory,omitempty"`
	ProcessDefinitionVersion       *int    `json:"processDefinitionVersion,omitempty"`
	ProcessDefinitionEngineVersion *string `json:"processDefinitionEngineVersion,omitempty"`
	BusinessKey                    *string `json:"businessKey,omitempty"`
	BusinessKeyLike                *string `json:"businessKeyLike,omitempty"`
	StartedBy                      *string `json:"startedBy,omitempty"`
	StartedBefore                  *string `json:"startedBefore,omitempty"`
	StartedAfter                   *string `json:"startedAfter,omitempty"`
	InvolvedUser                   *string `json:"involvedUser,omitempty"`
	Suspended                      *bool   `json:"suspended,omitempty"`
	SuperProcessInstanceID         *string `json:"superProcessInstanceId,omitempty"`
	SubProcessInstanceID           *string `json:"subProcessInstanceId,omitempty"`
	ExcludeSubprocesses            *bool   `json:"excludeSubprocesses,omitempty"`
	IncludeProcessVariables        *bool   `json:"includeProcessVariables,omitempty"`
	CallbackID                     *string `json:"callbackId,omitempty"`
	CallbackType                   *string `json:"callbackType,omitempty"`
	TenantID                       *string `json:"tenantId,omitempty"`
	TenantIDLike                   *string `json:"tenantIdLike,omitempty"`
	WithoutTenantID                *bool   `json:"withoutTenantId,omitempty"`
	Sort                           *string `json:"sort,omitempty"`
	Order                          *string `json:"order,omitempty"`
	Start                          *int    `json:"start,omitempty"`
	Size                           *int    `json:"size,omitempty"`
}

// ProcessInstanceCreateRequest starts a process instance. Set exactly one of
// ProcessDefinitionID, ProcessDefinitionKey or Message.
type ProcessInstanceCreateRequest struct {
	ProcessDefinitionID        string         `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey       string         `json:"processDefinitionKey,omitempty"`
	Message                    string         `json:"message,omitempty"`
	Name                       string         `json:"name,omitempty"`
	BusinessKey                string         `json:"businessKey,omitempty"`
	Variables                  []RestVariable `json:"variables,omitempty"`
	TransientVariables         []RestVariable `json:"transientVariables,omitempty"`
	StartFormVariables         []RestVariable `json:"startFormVariables,omitempty"`
	Outcome                    string         `json:"outcome,omitempty"`
	TenantID                   string         `json:"tenantId,omitempty"`
	OverrideDefinitionTenantID string         `json:"overrideDefinitionTenantId,omitempty"`
	ReturnVariables            bool           `json:"returnVariables,omitempty"`
}

// QueryOperation compares a variable in query requests.
type QueryOperation string

const (
	QueryEquals              QueryOperation = "equals"
	QueryNotEquals           QueryOperation = "notEquals"
	QueryEqualsIgnoreCase    QueryOperation = "equalsIgnoreCase"
	QueryNotEqualsIgnoreCase QueryOperation = "notEqualsIgnoreCase"
	QueryLike                QueryOperation = "like"
	QueryLikeIgnoreCase      QueryOperation = "likeIgnoreCase"
	QueryGreaterThan         QueryOperation = "greaterThan"
	QueryGreaterThanOrEquals QueryOperation = "greaterThanOrEquals"
	QueryLessThan            QueryOperation = "lessThan"
	QueryLessThanOrEquals    QueryOperation = "lessThanOrEquals"
)

// QueryVariable is a variable condition in query requests.
type QueryVariable struct {
	Name      string         `json:"name,omitempty"`
	Operation QueryOperation `json:"operation,omitempty"`
	Value     any            `json:"value,omitempty"`
	Type      string         `json:"type,omitempty"`
}

// ProcessInstanceQueryRequest is the body of QueryProcessInstances.
type ProcessInstanceQueryRequest struct {
	Start                             *int            `json:"start,omitempty"`
	Size                              *int            `json:"size,omitempty"`
	Sort                              string          `json:"sort,omitempty"`
	Order                             string          `json:"order,omitempty"`
	ProcessInstanceID                 string          `json:"processInstanceId,omitempty"`
	ProcessInstanceIDs                []string        `json:"processInstanceIds,omitempty"`
	ProcessInstanceName               string          `json:"processInstanceName,omitempty"`
	ProcessInstanceNameLike           string          `json:"processInstanceNameLike,omitempty"`
	ProcessInstanceNameLikeIgnoreCase string          `json:"processInstanceNameLikeIgnoreCase,omitempty"`
	ProcessBusinessKey                string          `json:"processBusinessKey,omitempty"`
	ProcessBusinessKeyLike            string          `json:"processBusinessKeyLike,omitempty"`
	ProcessDefinitionID               string          `json:"processDefinitionId,omitempty"`
	ProcessDefinitionIDs              []string        `json:"processDefinitionIds,omitempty"`
	ProcessDefinitionKey              string          `json:"processDefinitionKey,omitempty"`
	ProcessDefinitionKeys             []string        `json:"processDefinitionKeys,omitempty"`
	ProcessDefinitionName             string          `json:"processDefinitionName,omitempty"`
	ProcessDefinitionCategory         string          `json:"processDefinitionCategory,omitempty"`
	ProcessDefinitionVersion          *int            `json:"processDefinitionVersion,omitempty"`
	ProcessDefinitionEngineVersion    string          `json:"processDefinitionEngineVersion,omitempty"`
	DeploymentID                      string          `json:"deploymentId,omitempty"`
	DeploymentIDIn                    []string        `json:"deploymentIdIn,omitempty"`
	SuperProcessInstanceID            string          `json:"superProcessInstanceId,omitempty"`
	SubProcessInstanceID              string          `json:"subProcessInstanceId,omitempty"`
	ExcludeSubprocesses               *bool           `json:"excludeSubprocesses,omitempty"`
	InvolvedUser                      string          `json:"involvedUser,omitempty"`
	StartedBy                         string          `json:"startedBy,omitempty"`
	StartedBefore                     *time.Time      `json:"startedBefore,omitempty"`
	StartedAfter                      *time.Time      `json:"startedAfter,omitempty"`
	Suspended                         *bool           `json:"suspended,omitempty"`
	IncludeProcessVariables           *bool           `json:"includeProcessVariables,omitempty"`
	Variables                         []QueryVariable `json:"variables,omitempty"`
	CallbackID                        string          `json:"callbackId,omitempty"`
	CallbackType                      string          `json:"callbackType,omitempty"`
	TenantID                          string          `json:"tenantId,omitempty"`
	TenantIDLike                      string          `json:"tenantIdLike,omitempty"`
	WithoutTenantID                   *bool           `json:"withoutTenantId,omitempty"`
}

// Task is a user task.
type Task struct {
	ID                        string         `json:"id,omitempty"`
	URL                       string         `json:"url,omitempty"`
	Owner                     string         `json:"owner,omitempty"`
	Assignee                  string         `json:"assignee,omitempty"`
	DelegationState           string         `json:"delegationState,omitempty"` // "", "pending" or "resolved"
	Name                      string         `json:"name,omitempty"`
	Description               string         `json:"description,omitempty"`
	CreateTime                string         `json:"createTime,omitempty"`
	DueDate                   string         `json:"dueDate,omitempty"`
	Priority                  int            `json:"priority,omitempty"`
	Suspended                 bool           `json:"suspended"`
	ClaimTime                 string         `json:"claimTime,omitempty"`
	TaskDefinitionKey         string         `json:"taskDefinitionKey,omitempty"`
	ScopeDefinitionID         string         `json:"scopeDefinitionId,omitempty"`
	ScopeID                   string         `json:"scopeId,omitempty"`
	SubScopeID                string         `json:"subScopeId,omitempty"`
	ScopeType                 string         `json:"scopeType,omitempty"`
	PropagatedStageInstanceID string         `json:"propagatedStageInstanceId,omitempty"`
	TenantID                  string         `json:"tenantId,omitempty"`
	Category                  string         `json:"category,omitempty"`
	FormKey                   string         `json:"formKey,omitempty"`
	ParentTaskID              string         `json:"parentTaskId,omitempty"`
	ParentTaskURL             string         `json:"parentTaskUrl,omitempty"`
	ExecutionID               string         `json:"executionId,omitempty"`
	ExecutionURL              string         `json:"executionUrl,omitempty"`
	ProcessInstanceID         string         `json:"processInstanceId,omitempty"`
	ProcessInstanceURL        string         `json:"processInstanceUrl,omitempty"`
	ProcessDefinitionID       string         `json:"processDefinitionId,omitempty"`
	ProcessDefinitionURL      string         `json:"processDefinitionUrl,omitempty"`
	Variables                 []RestVariable `json:"variables,omitempty"`
}

// TaskQueryRequest is the body of QueryTasks.
type TaskQueryRequest struct {
	Start                          *int            `json:"start,omitempty"`
	Size                           *int            `json:"size,omitempty"`
	Sort                           string          `json:"sort,omitempty"`
	Order                          string          `json:"order,omitempty"`
	Name                           string          `json:"name,omitempty"`
	NameLike                       string          `json:"nameLike,omitempty"`
	Description                    string          `json:"description,omitempty"`
	DescriptionLike                string          `json:"descriptionLike,omitempty"`
	Priority                       *int            `json:"priority,omitempty"`
	MinimumPriority                *int            `json:"minimumPriority,omitempty"`
	MaximumPriority                *int            `json:"maximumPriority,omitempty"`
	Assignee                       string          `json:"assignee,omitempty"`
	AssigneeLike                   string          `json:"assigneeLike,omitempty"`
	Owner                          string          `json:"owner,omitempty"`
	OwnerLike                      string          `json:"ownerLike,omitempty"`
	Unassigned                     *bool           `json:"unassigned,omitempty"`
	DelegationState                string          `json:"delegationState,omitempty"`
	CandidateUser                  string          `json:"candidateUser,omitempty"`
	CandidateGroup                 string          `json:"candidateGroup,omitempty"`
	CandidateGroupIn               []string        `json:"candidateGroupIn,omitempty"`
	InvolvedUser                   string          `json:"involvedUser,omitempty"`
	ProcessInstanceID              string          `json:"processInstanceId,omitempty"`
	ProcessInstanceIDWithChildren  string          `json:"processInstanceIdWithChildren,omitempty"`
	ProcessInstanceBusinessKey     string          `json:"processInstanceBusinessKey,omitempty"`
	ProcessInstanceBusinessKeyLike string          `json:"processInstanceBusinessKeyLike,omitempty"`
	ProcessDefinitionID            string          `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey           string          `json:"processDefinitionKey,omitempty"`
	ProcessDefinitionName          string          `json:"processDefinitionName,omitempty"`
	ProcessDefinitionKeyLike       string          `json:"processDefinitionKeyLike,omitempty"`
	ProcessDefinitionNameLike      string          `json:"processDefinitionNameLike,omitempty"`
	ExecutionID                    string          `json:"executionId,omitempty"`
	CreatedOn                      *time.Time      `json:"createdOn,omitempty"`
	CreatedBefore                  *time.Time      `json:"createdBefore,omitempty"`
	CreatedAfter                   *time.Time      `json:"createdAfter,omitempty"`
	ExcludeSubTasks                *bool           `json:"excludeSubTasks,omitempty"`
	TaskDefinitionKey              string          `json:"taskDefinitionKey,omitempty"`
	TaskDefinitionKeyLike          string          `json:"taskDefinitionKeyLike,omitempty"`
	TaskDefinitionKeys             []string        `json:"taskDefinitionKeys,omitempty"`
	DueDate                        *time.Time      `json:"dueDate,omitempty"`
	DueBefore                      *time.Time      `json:"dueBefore,omitempty"`
	DueAfter                       *time.Time      `json:"dueAfter,omitempty"`
	WithoutDueDate                 *bool           `json:"withoutDueDate,omitempty"`
	Active                         *bool           `json:"active,omitempty"`
	IncludeTaskLocalVariables      *bool           `json:"includeTaskLocalVariables,omitempty"`
	IncludeProcessVariables        *bool           `json:"includeProcessVariables,omitempty"`
	ScopeDefinitionID              string          `json:"scopeDefinitionId,omitempty"`
	ScopeID                        string          `json:"scopeId,omitempty"`
	ScopeType                      string          `json:"scopeType,omitempty"`
	TenantID                       string          `json:"tenantId,omitempty"`
	TenantIDLike                   string          `json:"tenantIdLike,omitempty"`
	WithoutTenantID                *bool           `json:"withoutTenantId,omitempty"`
	CandidateOrAssigned            string          `json:"candidateOrAssigned,omitempty"`
	Category                       string          `json:"category,omitempty"`
	TaskVariables                  []QueryVariable `json:"taskVariables,omitempty"`
	ProcessInstanceVariables       []QueryVariable `json:"processInstanceVariables,omitempty"`
}

// TaskAction is an action applicable to a task.
type TaskAction string

const (
	TaskComplete TaskAction = "complete"
	TaskClaim    TaskAction = "claim"
	TaskDelegate TaskAction = "delegate"
	TaskResolve  TaskAction = "resolve"
)

// TaskActionRequest is the body of ExecuteTaskAction.
type TaskActionRequest struct {
	Action TaskAction `json:"action"`

	// Assignee is used by claim and delegate.
	Assignee string `json:"assignee,omitempty"`

	// FormDefinitionID is required when completing a task with a form.
	FormDefinitionID string `json:"formDefinitionId,omitempty"`
	Outcome          string `json:"outcome,omitempty"`

	// Variables and TransientVariables are applied on complete.
	Variables          []RestVariable `json:"variables,omitempty"`
	TransientVariables []RestVariable `json:"transientVariables,omitempty"`
}
