package cron

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
)

const (
	triggerSeparator      = ";"
	workflowSeparator     = ":"
	workflowListSeparator = ","
)

// TriggerSpec is one parsed trigger: the workflows to start and the cron
// schedule to start them on.
type TriggerSpec struct {
	Workflows []string
	CronSpec  string
}

// specParser accepts the standard 5-field cron format
// (minute, hour, day of month, month, day of week).
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseTriggerSpecs parses a multi-trigger specification string. The format
// is "workflow1,workflow2:cron_expression;workflow3:cron_expression2", e.g.
//
//	"linkage,cleanup:0 2 * * *;report:0 3 * * *"
//
// Every invalid trigger is reported, not just the first, so a misconfigured
// deployment surfaces all its problems in one pass. Workflow names must be
// registered, unique within a trigger, and each cron expression must parse.
func ParseTriggerSpecs(spec string, registered map[string]bool) ([]TriggerSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("trigger spec cannot be empty")
	}

	var specs []TriggerSpec
	var errs []error

	for _, triggerStr := range strings.Split(spec, triggerSeparator) {
		triggerStr = strings.TrimSpace(triggerStr)
		if triggerStr == "" {
			// Trailing or doubled semicolon.
			continue
		}

		triggerSpec, err := parseSingleTrigger(triggerStr, registered)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, triggerSpec)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(specs) == 0 {
		return nil, errors.New("no triggers found in spec")
	}
	return specs, nil
}

func parseSingleTrigger(triggerStr string, registered map[string]bool) (TriggerSpec, error) {
	parts := strings.Split(triggerStr, workflowSeparator)
	if len(parts) != 2 {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: expected format 'workflows:cron', got '%s'", triggerStr)
	}

	workflowsStr := strings.TrimSpace(parts[0])
	cronSpec := strings.TrimSpace(parts[1])

	if workflowsStr == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing workflows in '%s'", triggerStr)
	}
	if cronSpec == "" {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: missing cron schedule in '%s'", triggerStr)
	}

	var workflows []string
	seen := make(map[string]bool)
	for _, w := range strings.Split(workflowsStr, workflowListSeparator) {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if seen[w] {
			return TriggerSpec{}, fmt.Errorf("invalid trigger spec: duplicate workflow '%s' in '%s'", w, triggerStr)
		}
		seen[w] = true

		if !registered[w] {
			return TriggerSpec{}, fmt.Errorf("invalid trigger spec: unknown workflow '%s' in '%s' (registered: %s)",
				w, triggerStr, formatRegistered(registered))
		}
		workflows = append(workflows, w)
	}
	if len(workflows) == 0 {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: no workflows in '%s'", triggerStr)
	}

	if _, err := specParser.Parse(cronSpec); err != nil {
		return TriggerSpec{}, fmt.Errorf("invalid trigger spec: invalid cron expression in '%s': %w", triggerStr, err)
	}

	return TriggerSpec{Workflows: workflows, CronSpec: cronSpec}, nil
}

func formatRegistered(registered map[string]bool) string {
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
