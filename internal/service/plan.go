package service

import (
	"context"

	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/plan"
)

// Recommendations derives the per-pattern remediation summary from a
// completed scan without persisting anything.
func (s *Service) Recommendations(ctx context.Context, project, scanID string) ([]plan.Recommendation, error) {
	scanRecord, err := s.store.GetScan(ctx, project, scanID)
	if err != nil {
		return nil, err
	}
	return plan.Recommendations(scanRecord)
}

// GenerateActionPlan builds and persists the phased plan for a scan,
// replacing any previously generated one.
func (s *Service) GenerateActionPlan(ctx context.Context, project, scanID string) (*models.ActionPlan, error) {
	scanRecord, err := s.store.GetScan(ctx, project, scanID)
	if err != nil {
		return nil, err
	}

	var phraser plan.Phraser
	if s.model != nil {
		phraser = s.model
	}
	p, err := plan.Generate(ctx, scanRecord, phraser)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertActionPlan(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetActionPlan retrieves the persisted plan for a scan.
func (s *Service) GetActionPlan(ctx context.Context, project, scanID string) (*models.ActionPlan, error) {
	return s.store.GetActionPlan(ctx, project, scanID)
}

// ToggleActionItem flips one item's completion flag and persists the plan.
func (s *Service) ToggleActionItem(ctx context.Context, project, scanID, actionID string, completed bool) (*models.ActionPlan, error) {
	p, err := s.store.GetActionPlan(ctx, project, scanID)
	if err != nil {
		return nil, err
	}
	if err := plan.ToggleItem(p, actionID, completed); err != nil {
		return nil, err
	}
	if err := s.store.UpdateActionItem(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
