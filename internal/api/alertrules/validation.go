package alertrules

import (
	"fmt"
	"time"

	"github.com/truthsource/syncwatch/internal/models"
)

// ruleFromRequest builds and validates a rule from the request body.
func ruleFromRequest(req *CreateRequest) (*models.AlertRule, error) {
	checkFreq, err := parseDuration(req.CheckFrequency, "check_frequency")
	if err != nil {
		return nil, err
	}
	evalWindow, err := parseDuration(req.EvaluationWindow, "evaluation_window")
	if err != nil {
		return nil, err
	}

	ets := make([]models.EntityType, len(req.EntityTypes))
	for i, et := range req.EntityTypes {
		ets[i] = models.EntityType(et)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	rule := &models.AlertRule{
		OrganizationID:            req.OrganizationID,
		Name:                      req.Name,
		IsActive:                  active,
		EntityTypes:               ets,
		SeverityThreshold:         models.Severity(req.SeverityThreshold),
		AccuracyThreshold:         req.AccuracyThreshold,
		DiscrepancyCountThreshold: req.DiscrepancyCountThreshold,
		CheckFrequency:            checkFreq,
		EvaluationWindow:          evalWindow,
		NotificationChannels:      req.NotificationChannels,
		AutoRemediate:             req.AutoRemediate,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", field, err)
	}
	return d, nil
}
