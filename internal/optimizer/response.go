package optimizer

import (
	"github.com/capbudget/portfolio/api/v1alpha1"
	"github.com/capbudget/portfolio/pkg/core"
)

// Response converts the result into its wire form. Lists are never null.
func (r *Result) Response() v1alpha1.SolveResponse {
	resp := v1alpha1.SolveResponse{
		SessionID:         r.SessionID,
		RequestID:         r.RequestID,
		Status:            string(r.Status),
		Objective:         r.Objective,
		SelectedIDs:       r.SelectedIDs,
		Pool:              r.Pool,
		RequestedPoolSize: r.RequestedPoolSize,
		AchievedPoolSize:  r.AchievedPoolSize,
		Partial:           r.Partial,
		StopReason:        string(r.StopReason),
		Rounds:            r.Rounds,
		Message:           r.Message,
		ElapsedSeconds:    r.Elapsed.Seconds(),
		RegionSummary:     r.Regions,
	}
	if resp.SelectedIDs == nil {
		resp.SelectedIDs = []string{}
	}
	if resp.Pool == nil {
		resp.Pool = []core.Solution{}
	}
	if resp.RegionSummary == nil {
		resp.RegionSummary = []core.RegionSummary{}
	}
	return resp
}
