package rulebook

import "fmt"

// Task priorities accepted in templates.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// AssigneePolicy values: who the generated task lands on.
const (
	AssigneeAccountManager = "account_manager"
	AssigneePayrollOfficer = "payroll_officer"
	AssigneeUnassigned     = "unassigned"
)

// TaskTemplate describes the task a rule emits for each due period. Title
// and Description may reference {{period}}, {{due_date}} and {{client}};
// substitution happens at task creation time.
type TaskTemplate struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	TaskType       string `json:"task_type"`
	Priority       string `json:"priority,omitempty"`
	ProofRequired  bool   `json:"proof_required,omitempty"`
	AssigneePolicy string `json:"assignee_policy,omitempty"`
}

// Validate rejects unusable templates at the store boundary.
func (t TaskTemplate) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("task template requires a title")
	}
	if t.TaskType == "" {
		return fmt.Errorf("task template requires a task_type")
	}
	switch t.Priority {
	case "", PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
	default:
		return fmt.Errorf("unknown task priority %q", t.Priority)
	}
	switch t.AssigneePolicy {
	case "", AssigneeAccountManager, AssigneePayrollOfficer, AssigneeUnassigned:
	default:
		return fmt.Errorf("unknown assignee policy %q", t.AssigneePolicy)
	}
	return nil
}
