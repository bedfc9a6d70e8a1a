package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dairysangam/vetcore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// isUniqueViolation reports a Postgres unique-constraint error. The case
// number retry path depends on it.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- Cases ----

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const caseCols = `id, case_no, created_by, assignee_id, member_owner_id,
	non_member_owner_id, animal_id, status, visit_at, is_tagged_animal,
	is_emergency, disease, address, remark, computed_cost, is_synced,
	is_deleted, created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.CaseNo, &c.CreatedBy, &c.AssigneeID, &c.MemberOwnerID,
		&c.NonMemberOwnerID, &c.AnimalID, &c.Status, &c.VisitAt, &c.IsTaggedAnimal,
		&c.IsEmergency, &c.Disease, &c.Address, &c.Remark, &c.ComputedCost, &c.IsSynced,
		&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cases (id, case_no, created_by, assignee_id, member_owner_id,
			non_member_owner_id, animal_id, status, visit_at, is_tagged_animal,
			is_emergency, disease, address, remark, computed_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		c.ID, c.CaseNo, c.CreatedBy, c.AssigneeID, c.MemberOwnerID,
		c.NonMemberOwnerID, c.AnimalID, c.Status, c.VisitAt, c.IsTaggedAnimal,
		c.IsEmergency, c.Disease, c.Address, c.Remark, c.ComputedCost)
	return err
}

func (r *repoPG) getBy(ctx context.Context, column string, value interface{}, forUpdate bool) (*Case, error) {
	q := `SELECT ` + caseCols + ` FROM cases WHERE ` + column + ` = $1 AND is_deleted = FALSE`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanCase(conn(ctx, r.pool).QueryRow(ctx, q, value))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*Case, error) {
	return r.getBy(ctx, "id", id, forUpdate)
}

func (r *repoPG) GetByCaseNo(ctx context.Context, caseNo string, forUpdate bool) (*Case, error) {
	return r.getBy(ctx, "case_no", caseNo, forUpdate)
}

func (r *repoPG) Update(ctx context.Context, c *Case) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cases SET assignee_id = $2, status = $3, disease = $4, address = $5,
			remark = $6, is_synced = $7, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		c.ID, c.AssigneeID, c.Status, c.Disease, c.Address, c.Remark, c.IsSynced)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cases SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Case, int, error) {
	where := ` WHERE is_deleted = FALSE`
	args := []interface{}{}
	idx := 0
	add := func(clause string, value interface{}) {
		idx++
		where += fmt.Sprintf(clause, idx)
		args = append(args, value)
	}

	if f.Status != "" {
		add(` AND status = $%d`, f.Status)
	}
	switch f.OwnerType {
	case OwnerTypeMember:
		where += ` AND member_owner_id IS NOT NULL`
	case OwnerTypeNonMember:
		where += ` AND non_member_owner_id IS NOT NULL`
	}
	if f.Mobile != "" {
		add(` AND (member_owner_id IN (SELECT id FROM members WHERE mobile = $%d)`, f.Mobile)
		where += fmt.Sprintf(` OR non_member_owner_id IN (SELECT id FROM non_members WHERE mobile = $%d))`, idx)
	}
	if f.AssigneeID != nil {
		add(` AND assignee_id = $%d`, *f.AssigneeID)
	}
	if f.IsEmergency != nil {
		add(` AND is_emergency = $%d`, *f.IsEmergency)
	}
	if f.From != nil {
		add(` AND visit_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND visit_at < $%d`, *f.To)
	}
	if f.VisibleTo != nil {
		add(` AND (created_by = ANY($%d)`, f.VisibleTo)
		where += fmt.Sprintf(` OR assignee_id = ANY($%d))`, idx)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM cases`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT `+caseCols+` FROM cases`+where+
		` ORDER BY visit_at DESC LIMIT $%d OFFSET $%d`, idx+1, idx+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Dashboard(ctx context.Context, visibleTo []uuid.UUID, dayStart, dayEnd time.Time, tz string) (*Dashboard, error) {
	scope := ``
	args := []interface{}{dayStart, dayEnd}
	if visibleTo != nil {
		scope = ` AND (created_by = ANY($3) OR assignee_id = ANY($3))`
		args = append(args, visibleTo)
	}

	d := &Dashboard{ByStatus: map[string]int{}}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
			COUNT(*) FILTER (WHERE member_owner_id IS NOT NULL),
			COUNT(*) FILTER (WHERE non_member_owner_id IS NOT NULL),
			COUNT(*) FILTER (WHERE is_emergency)
		FROM cases WHERE is_deleted = FALSE`+scope, args...).
		Scan(&d.TotalCases, &d.TodayCases, &d.MemberCases, &d.NonMemberCases, &d.EmergencyCases)
	if err != nil {
		return nil, err
	}

	statusScope := ``
	statusArgs := []interface{}{}
	if visibleTo != nil {
		statusScope = ` AND (created_by = ANY($1) OR assignee_id = ANY($1))`
		statusArgs = append(statusArgs, visibleTo)
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT status, COUNT(*) FROM cases WHERE is_deleted = FALSE`+statusScope+
		` GROUP BY status`, statusArgs...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		d.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	monthScope := ``
	monthArgs := []interface{}{tz}
	if visibleTo != nil {
		monthScope = ` AND (created_by = ANY($2) OR assignee_id = ANY($2))`
		monthArgs = append(monthArgs, visibleTo)
	}
	rows, err = conn(ctx, r.pool).Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE $1, 'YYYY-MM') AS month, COUNT(*)
		FROM cases WHERE is_deleted = FALSE`+monthScope+
		` GROUP BY month ORDER BY month`, monthArgs...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var mc MonthlyCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		d.Monthly = append(d.Monthly, mc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = conn(ctx, r.pool).Query(ctx, `
		SELECT `+caseCols+` FROM cases WHERE is_deleted = FALSE`+statusScope+
		` ORDER BY created_at DESC LIMIT 5`, statusArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		d.Recent = append(d.Recent, c)
	}
	return d, rows.Err()
}

// ---- Assignment logs ----

type assignmentLogRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentLogRepoPG(pool *pgxpool.Pool) AssignmentLogRepository {
	return &assignmentLogRepoPG{pool: pool}
}

func (r *assignmentLogRepoPG) Create(ctx context.Context, l *CaseAssignmentLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_assignment_logs (id, case_id, from_user_id, to_user_id, remarks)
		VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.CaseID, l.FromUserID, l.ToUserID, l.Remarks)
	return err
}

func (r *assignmentLogRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseAssignmentLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, from_user_id, to_user_id, remarks, created_at
		FROM case_assignment_logs WHERE case_id = $1 ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CaseAssignmentLog
	for rows.Next() {
		var l CaseAssignmentLog
		if err := rows.Scan(&l.ID, &l.CaseID, &l.FromUserID, &l.ToUserID, &l.Remarks, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ---- Diagnoses ----

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *CaseDiagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_diagnoses (id, case_id, disease, current_status,
			milk_production, case_type, symptoms, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.CaseID, d.Disease, d.CurrentStatus,
		d.MilkProduction, d.CaseType, d.Symptoms, d.CreatedBy)
	return err
}

func (r *diagnosisRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseDiagnosis, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, disease, current_status, milk_production, case_type,
			symptoms, created_by, created_at
		FROM case_diagnoses WHERE case_id = $1 ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CaseDiagnosis
	for rows.Next() {
		var d CaseDiagnosis
		if err := rows.Scan(&d.ID, &d.CaseID, &d.Disease, &d.CurrentStatus,
			&d.MilkProduction, &d.CaseType, &d.Symptoms, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ---- Treatments ----

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentRepoPG(pool *pgxpool.Pool) TreatmentRepository {
	return &treatmentRepoPG{pool: pool}
}

func (r *treatmentRepoPG) Create(ctx context.Context, t *CaseTreatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_treatments (id, case_id, provider_id, medicine_id,
			route, notes, otp_verified, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.CaseID, t.ProviderID, t.MedicineID,
		t.Route, t.Notes, t.OTPVerified, t.CreatedBy)
	return err
}

func (r *treatmentRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseTreatment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, provider_id, medicine_id, route, notes, otp_verified,
			created_by, created_at
		FROM case_treatments WHERE case_id = $1 ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CaseTreatment
	for rows.Next() {
		var t CaseTreatment
		if err := rows.Scan(&t.ID, &t.CaseID, &t.ProviderID, &t.MedicineID,
			&t.Route, &t.Notes, &t.OTPVerified, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
