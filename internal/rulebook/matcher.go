package rulebook

// Override is the per-client exception layer consulted by the matcher. A
// disabled override suppresses the rule outright; enabled overrides may
// swap the due rule or the task template.
type Override struct {
	IsEnabled    bool
	DueRule      *DueRule
	TaskTemplate *TaskTemplate
}

// RuleApplies decides whether a rule targets a client. A disabled override
// wins over everything; an absent or empty condition matches every client.
// The rule's own is_active flag is filtered by the caller.
func RuleApplies(cond *Condition, profile Profile, override *Override) bool {
	if override != nil && !override.IsEnabled {
		return false
	}
	return Evaluate(cond, profile)
}
