package hierarchy

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
)

type Service struct {
	users UserRepository
	edges EdgeRepository
}

func NewService(users UserRepository, edges EdgeRepository) *Service {
	return &Service{users: users, edges: edges}
}

// ---- Users ----

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.Name == "" {
		return apperr.Validation("name is required", map[string][]string{"name": {"name is required"}})
	}
	if !validDepartments[u.Department] {
		return apperr.Newf(apperr.KindValidation, "invalid department: %s", u.Department)
	}
	u.IsActive = true
	return s.users.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "user not found", err)
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if u.Department != "" && !validDepartments[u.Department] {
		return apperr.Newf(apperr.KindValidation, "invalid department: %s", u.Department)
	}
	return s.users.Update(ctx, u)
}

func (s *Service) DeactivateUser(ctx context.Context, id, by uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindReference, "user not found", err)
	}
	return s.users.SoftDelete(ctx, id, by)
}

func (s *Service) ListUsers(ctx context.Context, department string, limit, offset int) ([]*User, int, error) {
	if department != "" && !validDepartments[department] {
		return nil, 0, apperr.Newf(apperr.KindValidation, "invalid department: %s", department)
	}
	return s.users.List(ctx, department, limit, offset)
}

// ---- Supervisor graph ----

// AddEdge links a supervisor to a reportee. The edge is rejected when it
// would close a cycle, including the trivial self-edge.
func (s *Service) AddEdge(ctx context.Context, supervisorID, reporteeID uuid.UUID) (*SupervisorEdge, error) {
	if supervisorID == reporteeID {
		return nil, apperr.New(apperr.KindValidation, "a user cannot supervise themselves")
	}
	if _, err := s.users.GetByID(ctx, supervisorID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "supervisor not found", err)
	}
	if _, err := s.users.GetByID(ctx, reporteeID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "reportee not found", err)
	}

	// The supervisor must not already be reachable from the reportee.
	reach, err := s.closure(ctx, reporteeID)
	if err != nil {
		return nil, err
	}
	if reach[supervisorID] {
		return nil, apperr.New(apperr.KindInvariantViolation, "edge would create a cycle in the supervisor graph")
	}

	e := &SupervisorEdge{SupervisorID: supervisorID, ReporteeID: reporteeID}
	if err := s.edges.Add(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) RemoveEdge(ctx context.Context, supervisorID, reporteeID uuid.UUID) error {
	return s.edges.Remove(ctx, supervisorID, reporteeID)
}

func (s *Service) ListDirectReportees(ctx context.Context, supervisorID uuid.UUID) ([]*SupervisorEdge, error) {
	return s.edges.ListForSupervisor(ctx, supervisorID)
}

// ManageableUserIDs returns the transitive closure of users the given user
// supervises, always including the user themselves. ADMIN callers are not
// special-cased here; department-wide visibility is decided by the caller.
func (s *Service) ManageableUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if c := cacheFromContext(ctx); c != nil {
		if ids, ok := c.get(userID); ok {
			return ids, nil
		}
	}

	reach, err := s.closure(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(reach))
	for id := range reach {
		ids = append(ids, id)
	}

	if c := cacheFromContext(ctx); c != nil {
		c.put(userID, ids)
	}
	return ids, nil
}

// IsSupervisorOf reports whether target falls in the caller's closure.
func (s *Service) IsSupervisorOf(ctx context.Context, userID, target uuid.UUID) (bool, error) {
	ids, err := s.ManageableUserIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == target {
			return true, nil
		}
	}
	return false, nil
}

// closure walks the supervisor graph breadth-first from root until no new
// reportees appear. The visited set guards against edges added concurrently
// that would otherwise loop the walk.
func (s *Service) closure(ctx context.Context, root uuid.UUID) (map[uuid.UUID]bool, error) {
	visited := map[uuid.UUID]bool{root: true}
	frontier := []uuid.UUID{root}

	for len(frontier) > 0 {
		next, err := s.edges.ReporteeIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, id := range next {
			if !visited[id] {
				visited[id] = true
				frontier = append(frontier, id)
			}
		}
	}
	return visited, nil
}

// Scope is the visibility set applied to listing queries. All means the
// caller sees every user's records; Empty means they see none.
type Scope struct {
	All bool        `json:"all"`
	IDs []uuid.UUID `json:"ids,omitempty"`
}

func (s Scope) Empty() bool { return !s.All && len(s.IDs) == 0 }

// Contains reports whether id falls inside the scope.
func (s Scope) Contains(id uuid.UUID) bool {
	if s.All {
		return true
	}
	for _, v := range s.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// VisibleScope resolves the set of users whose records the caller may see.
// ADMIN sees everyone. A disabled user sees nothing. A caller with no
// profile row is treated as a plain member and sees only themselves.
func (s *Service) VisibleScope(ctx context.Context, userID uuid.UUID) (Scope, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Scope{IDs: []uuid.UUID{userID}}, nil
	}
	if !u.IsActive {
		return Scope{}, nil
	}
	if u.Department == DeptAdmin {
		return Scope{All: true}, nil
	}
	ids, err := s.ManageableUserIDs(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{IDs: ids}, nil
}

// TerritoryFilter returns the MCC/MPP restriction for a user, or nil when
// the user has none and sees all territories.
func (s *Service) TerritoryFilter(ctx context.Context, userID uuid.UUID) (*Territory, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "user not found", err)
	}
	if u.MCCCode == nil && u.MPPCode == nil {
		return nil, nil
	}
	return &Territory{MCCCode: u.MCCCode, MPPCode: u.MPPCode}, nil
}

// ---- Per-request memoization ----

type cacheKeyType struct{}

var cacheKey cacheKeyType

type closureCache struct {
	mu sync.Mutex
	m  map[uuid.UUID][]uuid.UUID
}

func (c *closureCache) get(id uuid.UUID) ([]uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.m[id]
	return ids, ok
}

func (c *closureCache) put(id uuid.UUID, ids []uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = ids
}

// WithClosureCache attaches a memoization cache for closure lookups.
// Handlers that resolve the same closure several times within one request
// wrap their context with this once.
func WithClosureCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheKey, &closureCache{m: make(map[uuid.UUID][]uuid.UUID)})
}

func cacheFromContext(ctx context.Context) *closureCache {
	c, _ := ctx.Value(cacheKey).(*closureCache)
	return c
}
