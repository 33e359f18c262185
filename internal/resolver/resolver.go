package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/repository"
)

// Directory is the read surface the resolver runs on. The gorm directory
// repository satisfies it; tests plug in fakes.
type Directory interface {
	GetBoat(ctx context.Context, id int64) (*model.Boat, error)
	ListPortProviders(ctx context.Context, portID int64) ([]int64, error)
	FilterByCapability(ctx context.Context, capabilityID int64, userIDs []int64) ([]int64, error)
	ClientHistory(ctx context.Context, clientID int64, providerIDs []int64) (map[int64]repository.HistoryStat, error)
}

// Stage names which narrowing step produced the result.
type Stage string

const (
	StageCoverage   Stage = "coverage"
	StageCapability Stage = "capability"
	StageHistory    Stage = "history"
	StageFallback   Stage = "fallback"
	StageUnresolved Stage = "unresolved"
)

// Resolution is the outcome of a resolution run. Resolved=false (no covering
// provider) is an expected outcome, not an error: the request stays open for
// manual assignment.
type Resolution struct {
	ProviderID int64
	Resolved   bool
	Stage      Stage
}

func unresolved() Resolution {
	return Resolution{Stage: StageUnresolved}
}

func resolvedAs(id int64, stage Stage) Resolution {
	return Resolution{ProviderID: id, Resolved: true, Stage: stage}
}

type Resolver struct {
	dir Directory
}

func New(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve picks the provider for a service request by staged narrowing:
// port coverage, then declared capability, then the client's history with
// the remaining candidates, then smallest id. Identical inputs over
// identical directory content always produce the identical result.
//
// Resolution never leaves the boat's home port; a boat without a home port
// or a port nobody covers yields an unresolved outcome.
func (r *Resolver) Resolve(ctx context.Context, boatID, capabilityID, clientID int64) (Resolution, error) {
	boat, err := r.dir.GetBoat(ctx, boatID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load boat %d: %w", boatID, err)
	}
	if boat.PortID == nil {
		return unresolved(), nil
	}

	candidates, err := r.dir.ListPortProviders(ctx, *boat.PortID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load coverage for port %d: %w", *boat.PortID, err)
	}
	if len(candidates) == 0 {
		return unresolved(), nil
	}
	sortIDs(candidates)
	if len(candidates) == 1 {
		return resolvedAs(candidates[0], StageCoverage), nil
	}

	capable, err := r.dir.FilterByCapability(ctx, capabilityID, candidates)
	if err != nil {
		return Resolution{}, fmt.Errorf("filter by capability %d: %w", capabilityID, err)
	}
	if len(capable) == 1 {
		return resolvedAs(capable[0], StageCapability), nil
	}
	// An empty capability match widens back to the full coverage set.
	active := capable
	if len(active) == 0 {
		active = candidates
	}
	sortIDs(active)

	stats, err := r.dir.ClientHistory(ctx, clientID, active)
	if err != nil {
		return Resolution{}, fmt.Errorf("load client %d history: %w", clientID, err)
	}
	if len(stats) > 0 {
		return resolvedAs(rank(active, stats), StageHistory), nil
	}

	return resolvedAs(active[0], StageFallback), nil
}

// rank orders candidates by history count desc, most recent request desc,
// then id asc, and returns the winner. Candidates without history rank with
// count 0 and the zero time.
func rank(candidates []int64, stats map[int64]repository.HistoryStat) int64 {
	ranked := make([]int64, len(candidates))
	copy(ranked, candidates)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := stats[ranked[i]], stats[ranked[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.MostRecent.Equal(b.MostRecent) {
			return a.MostRecent.After(b.MostRecent)
		}
		return ranked[i] < ranked[j]
	})

	return ranked[0]
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
