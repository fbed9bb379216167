package permissions

import (
	"context"
	"errors"

	"adboard-api/internal/domain"
	"adboard-api/internal/observability/logger"
	"adboard-api/internal/repo"

	"go.uber.org/zap"
)

// FailOpenOnLookupError is reviewed policy, not an accident: when a
// permission lookup fails at the infrastructure level (store
// unreachable, malformed row), resolution yields FULL ACCESS instead
// of locking a legitimate user out of their own dashboard during a
// transient backend fault. This trades confidentiality for
// availability. Do not flip it to fail-closed without a product
// decision; every occurrence is logged at error level and counted in
// the fail_open metric so it is never silent.
const FailOpenOnLookupError = true

// WorkspaceDirectory is the read contract the resolver needs from the
// workspace store. Satisfied by *repo.WorkspaceRepository.
type WorkspaceDirectory interface {
	FindByOwner(ctx context.Context, ownerID string) (*domain.Workspace, error)
}

// MembershipDirectory is the read contract the resolver needs from
// the membership store. Satisfied by *repo.MembershipRepository.
type MembershipDirectory interface {
	FindActiveByPrincipal(ctx context.Context, principal domain.Principal) (*domain.MembershipWithAccessLevel, error)
}

// Outcome labels which branch of the decision procedure produced a
// resolved value. Used for logging and metrics only.
type Outcome string

const (
	OutcomeOwner         Outcome = "owner"
	OutcomeMemberCustom  Outcome = "member_custom"
	OutcomeMemberAdmin   Outcome = "member_admin"
	OutcomeMemberDefault Outcome = "member_default"
	OutcomeRestricted    Outcome = "restricted"
	OutcomeFailOpen      Outcome = "fail_open"
)

// Resolution is the outcome of one resolution pass. WorkspaceID names
// the tenant whose data produced the outcome; it is empty for the
// restricted and fail-open branches and lets cached resolutions be
// invalidated when that workspace's access levels change.
type Resolution struct {
	Permissions *domain.ResolvedPermissions
	Outcome     Outcome
	WorkspaceID string
}

// Resolver computes ResolvedPermissions for a principal. It is a pure
// decision procedure over the two directories; all caching and
// concurrency control lives in Session and Manager.
type Resolver struct {
	workspaces  WorkspaceDirectory
	memberships MembershipDirectory
	log         *logger.Logger
}

// NewResolver creates a Resolver with its store dependencies injected.
func NewResolver(workspaces WorkspaceDirectory, memberships MembershipDirectory, log *logger.Logger) *Resolver {
	return &Resolver{
		workspaces:  workspaces,
		memberships: memberships,
		log:         log,
	}
}

// Resolve runs the decision procedure top to bottom, first matching
// branch wins:
//
//  1. Principal owns a workspace        -> full access, admin.
//  2. Active member with a non-empty
//     custom access level              -> stored config merged over
//     the default member profile.
//  3. Active member, no custom level,
//     legacy role "admin"              -> full access, admin.
//  4. Active member otherwise          -> default view-only profile.
//  5. No workspace, no membership      -> restricted profile.
//
// Infrastructure errors anywhere resolve fail-open to full access
// (see FailOpenOnLookupError). Resolve therefore never returns an
// error; the Resolution names the branch taken.
func (r *Resolver) Resolve(ctx context.Context, principal domain.Principal) Resolution {
	res := r.resolve(ctx, principal)
	resolutionsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, principal domain.Principal) Resolution {
	workspace, err := r.workspaces.FindByOwner(ctx, principal.ID)
	if err != nil && !errors.Is(err, repo.ErrWorkspaceNotFound) {
		return r.failOpen(ctx, principal, "workspace lookup failed", err)
	}
	if err == nil {
		// Owner branch. Owners never fall through to membership
		// resolution, so an owner is never resolved as a restricted
		// member of their own workspace.
		r.log.Debug(ctx, "resolved as workspace owner",
			logger.Module("permissions"),
			logger.Action("resolve"),
			zap.String("resolved_workspace_id", workspace.ID),
		)
		return Resolution{
			Permissions: &domain.ResolvedPermissions{
				Config:  domain.FullAccessProfile(),
				IsAdmin: true,
			},
			Outcome:     OutcomeOwner,
			WorkspaceID: workspace.ID,
		}
	}

	membership, err := r.memberships.FindActiveByPrincipal(ctx, principal)
	if err != nil && !errors.Is(err, repo.ErrMembershipNotFound) {
		return r.failOpen(ctx, principal, "membership lookup failed", err)
	}
	if errors.Is(err, repo.ErrMembershipNotFound) {
		// Authenticated but neither owner nor member: dashboard only.
		return Resolution{
			Permissions: &domain.ResolvedPermissions{
				Config:  domain.RestrictedProfile(),
				IsAdmin: false,
			},
			Outcome: OutcomeRestricted,
		}
	}

	if membership.AccessLevel != nil && len(membership.AccessLevel.Permissions) > 0 {
		// Stored configs may predate newer feature keys; merging over
		// the default profile keeps the result total.
		return Resolution{
			Permissions: &domain.ResolvedPermissions{
				Config:  membership.AccessLevel.Permissions.MergeOverDefaults(domain.DefaultMemberProfile()),
				IsAdmin: false,
			},
			Outcome:     OutcomeMemberCustom,
			WorkspaceID: membership.WorkspaceID,
		}
	}

	if membership.Role == domain.MemberRoleAdmin {
		// Legacy role flag from before named access levels existed.
		return Resolution{
			Permissions: &domain.ResolvedPermissions{
				Config:  domain.FullAccessProfile(),
				IsAdmin: true,
			},
			Outcome:     OutcomeMemberAdmin,
			WorkspaceID: membership.WorkspaceID,
		}
	}

	return Resolution{
		Permissions: &domain.ResolvedPermissions{
			Config:  domain.DefaultMemberProfile(),
			IsAdmin: false,
		},
		Outcome:     OutcomeMemberDefault,
		WorkspaceID: membership.WorkspaceID,
	}
}

// failOpen converts an infrastructure failure into the documented
// full-access outcome. Granting full access on a fault is a
// security-relevant event, so it is always logged and counted.
func (r *Resolver) failOpen(ctx context.Context, principal domain.Principal, msg string, err error) Resolution {
	failOpenTotal.Inc()
	r.log.Error(ctx, "permission lookup failed, resolving fail-open to full access",
		logger.Module("permissions"),
		logger.Action("resolve"),
		zap.String("cause", msg),
		zap.String("principal_id", principal.ID),
		zap.Error(err),
	)

	return Resolution{
		Permissions: &domain.ResolvedPermissions{
			Config:  domain.FullAccessProfile(),
			IsAdmin: true,
		},
		Outcome: OutcomeFailOpen,
	}
}
