package coordinator

import (
	"context"
	"os"
	"time"

	"github.com/graphindex/core/internal/types"
)

// RecoveryType classifies how an interrupted update should be healed.
type RecoveryType string

const (
	RecoveryResume         RecoveryType = "resume"
	RecoveryFullReindex    RecoveryType = "full_reindex"
	RecoveryManualRequired RecoveryType = "manual_required"
)

// RecoveryStrategy is the §4.8 recommendation for one interrupted
// repository.
type RecoveryStrategy struct {
	Type           RecoveryType
	Reason         string
	CanAutoRecover bool
	EstimatedWork  string
}

// InterruptedRepository pairs a repository left with updateInProgress
// set with its recommended recovery strategy.
type InterruptedRepository struct {
	Info     types.RepositoryInfo
	Strategy RecoveryStrategy
}

// DetectInterruptedUpdates scans every stored repository for one whose
// updateInProgress marker was never cleared, meaning the process
// handling its last update died mid-batch (crash, SIGKILL, OOM) before
// reaching the step-7 marker clear in Coordinator.UpdateRepository.
func (c *Coordinator) DetectInterruptedUpdates() ([]InterruptedRepository, error) {
	repos, err := c.repos.List()
	if err != nil {
		return nil, err
	}

	var out []InterruptedRepository
	for _, info := range repos {
		if !info.UpdateInProgress {
			continue
		}
		out = append(out, InterruptedRepository{
			Info:     info,
			Strategy: evaluateRecoveryStrategy(info),
		})
	}
	return out, nil
}

// evaluateRecoveryStrategy picks a recovery path for an interrupted
// repository without touching disk beyond checking the clone's
// presence: resume when there's a commit to resume from and the clone
// is still there, full_reindex when the clone is gone, and
// manual_required when there's no prior commit to anchor a diff on at
// all (e.g. interrupted during the very first index).
func evaluateRecoveryStrategy(info types.RepositoryInfo) RecoveryStrategy {
	if info.LastIndexedCommitSha == "" {
		return RecoveryStrategy{
			Type:           RecoveryManualRequired,
			Reason:         "no prior indexed commit to resume from",
			CanAutoRecover: false,
		}
	}

	if _, err := os.Stat(info.LocalPath); err != nil {
		return RecoveryStrategy{
			Type:           RecoveryFullReindex,
			Reason:         "local clone is missing; cannot diff from lastIndexedCommitSha",
			CanAutoRecover: true,
			EstimatedWork:  "full repository reindex",
		}
	}

	return RecoveryStrategy{
		Type:           RecoveryResume,
		Reason:         "clone present; update can resume from lastIndexedCommitSha",
		CanAutoRecover: true,
		EstimatedWork:  "incremental update from " + info.LastIndexedCommitSha,
	}
}

// ExecuteRecovery carries out the recovery strategy for one
// repository. full_reindex only clears the marker and flags the
// repository for a caller-driven full reindex (C2 is out of this
// package's scope); resume re-enters the normal update path.
func (c *Coordinator) ExecuteRecovery(ctx context.Context, info types.RepositoryInfo, strategy RecoveryStrategy) (CoordinatorResult, error) {
	switch strategy.Type {
	case RecoveryResume:
		return c.UpdateRepository(ctx, info.Name)

	case RecoveryFullReindex:
		c.clearMarker(info.Name)
		c.repos.Update(info.Name, func(r *types.RepositoryInfo) {
			r.Status = types.RepositoryIndexing
		})
		return CoordinatorResult{Status: StatusFailed, Errors: []string{"full reindex required; dispatch to the indexing pipeline"}}, nil

	default: // manual_required
		now := time.Now()
		c.repos.Update(info.Name, func(r *types.RepositoryInfo) {
			r.UpdateInProgress = false
			r.UpdateStartedAt = nil
			r.Status = types.RepositoryError
			r.ErrorMessage = "interrupted update requires manual recovery: " + strategy.Reason
			r.LastIndexedAt = &now
		})
		return CoordinatorResult{Status: StatusFailed, Errors: []string{strategy.Reason}}, nil
	}
}
