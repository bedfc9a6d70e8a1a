package registry

import (
	"context"

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

// ---- Members ----

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

const memberCols = `id, member_code, name, mobile, company_code, plant_code,
	mcc_code, bmc_code, mpp_code, is_active, is_default, is_deleted,
	created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.MemberCode, &m.Name, &m.Mobile, &m.CompanyCode, &m.PlantCode,
		&m.MCCCode, &m.BMCCode, &m.MPPCode, &m.IsActive, &m.IsDefault, &m.IsDeleted,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *memberRepoPG) Create(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO members (id, member_code, name, mobile, company_code, plant_code,
			mcc_code, bmc_code, mpp_code, is_active, is_default)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.MemberCode, m.Name, m.Mobile, m.CompanyCode, m.PlantCode,
		m.MCCCode, m.BMCCode, m.MPPCode, m.IsActive, m.IsDefault)
	return err
}

func (r *memberRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	return scanMember(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+memberCols+` FROM members WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *memberRepoPG) GetByCode(ctx context.Context, code string) (*Member, error) {
	return scanMember(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+memberCols+` FROM members WHERE member_code = $1 AND is_deleted = FALSE`, code))
}

func (r *memberRepoPG) SearchByMobile(ctx context.Context, mobile string) ([]*Member, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+memberCols+` FROM members
		WHERE mobile LIKE '%' || $1 || '%' AND is_deleted = FALSE AND is_active = TRUE
		ORDER BY member_code`, mobile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *memberRepoPG) List(ctx context.Context, limit, offset int) ([]*Member, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM members WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+memberCols+` FROM members
		WHERE is_deleted = FALSE ORDER BY member_code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// ---- Non-members ----

type nonMemberRepoPG struct{ pool *pgxpool.Pool }

func NewNonMemberRepoPG(pool *pgxpool.Pool) NonMemberRepository {
	return &nonMemberRepoPG{pool: pool}
}

const nonMemberCols = `id, name, mobile, address, mcc_code, mpp_code,
	visit_count, is_deleted, created_at, updated_at`

func scanNonMember(row pgx.Row) (*NonMember, error) {
	var nm NonMember
	err := row.Scan(&nm.ID, &nm.Name, &nm.Mobile, &nm.Address, &nm.MCCCode, &nm.MPPCode,
		&nm.VisitCount, &nm.IsDeleted, &nm.CreatedAt, &nm.UpdatedAt)
	return &nm, err
}

func (r *nonMemberRepoPG) Create(ctx context.Context, nm *NonMember) error {
	if nm.ID == uuid.Nil {
		nm.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO non_members (id, name, mobile, address, mcc_code, mpp_code)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		nm.ID, nm.Name, nm.Mobile, nm.Address, nm.MCCCode, nm.MPPCode)
	return err
}

func (r *nonMemberRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*NonMember, error) {
	return scanNonMember(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+nonMemberCols+` FROM non_members WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *nonMemberRepoPG) GetByMobile(ctx context.Context, mobile string) (*NonMember, error) {
	nm, err := scanNonMember(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+nonMemberCols+` FROM non_members WHERE mobile = $1 AND is_deleted = FALSE`, mobile))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return nm, err
}

func (r *nonMemberRepoPG) SearchByMobile(ctx context.Context, mobile string) ([]*NonMember, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+nonMemberCols+` FROM non_members
		WHERE mobile LIKE '%' || $1 || '%' AND is_deleted = FALSE
		ORDER BY name`, mobile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*NonMember
	for rows.Next() {
		nm, err := scanNonMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, nm)
	}
	return out, rows.Err()
}

func (r *nonMemberRepoPG) Update(ctx context.Context, nm *NonMember) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE non_members SET name=$2, address=$3, mcc_code=$4, mpp_code=$5, updated_at=NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		nm.ID, nm.Name, nm.Address, nm.MCCCode, nm.MPPCode)
	return err
}

func (r *nonMemberRepoPG) IncrementVisitCount(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE non_members SET visit_count = visit_count + 1, updated_at=NOW() WHERE id = $1`, id)
	return err
}

// ---- Animals ----

type animalRepoPG struct{ pool *pgxpool.Pool }

func NewAnimalRepoPG(pool *pgxpool.Pool) AnimalRepository {
	return &animalRepoPG{pool: pool}
}

const animalCols = `id, member_owner_id, non_member_owner_id, breed, gender,
	age_months, weight, pregnant, pregnancy_months, details, is_alive,
	is_deleted, created_at, updated_at`

func scanAnimal(row pgx.Row) (*Animal, error) {
	var a Animal
	err := row.Scan(&a.ID, &a.MemberOwnerID, &a.NonMemberOwnerID, &a.Breed, &a.Gender,
		&a.AgeMonths, &a.Weight, &a.Pregnant, &a.PregnancyMonths, &a.Details, &a.IsAlive,
		&a.IsDeleted, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *animalRepoPG) Create(ctx context.Context, a *Animal) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO animals (id, member_owner_id, non_member_owner_id, breed, gender,
			age_months, weight, pregnant, pregnancy_months, details, is_alive)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.MemberOwnerID, a.NonMemberOwnerID, a.Breed, a.Gender,
		a.AgeMonths, a.Weight, a.Pregnant, a.PregnancyMonths, a.Details, a.IsAlive)
	return err
}

func (r *animalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Animal, error) {
	return scanAnimal(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+animalCols+` FROM animals WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *animalRepoPG) Update(ctx context.Context, a *Animal) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE animals SET breed=$2, gender=$3, age_months=$4, weight=$5, pregnant=$6,
			pregnancy_months=$7, details=$8, is_alive=$9, updated_at=NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		a.ID, a.Breed, a.Gender, a.AgeMonths, a.Weight, a.Pregnant,
		a.PregnancyMonths, a.Details, a.IsAlive)
	return err
}

func (r *animalRepoPG) listByOwner(ctx context.Context, col string, ownerID uuid.UUID) ([]*Animal, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+animalCols+` FROM animals WHERE `+col+` = $1 AND is_deleted = FALSE ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *animalRepoPG) ListByMemberOwner(ctx context.Context, memberID uuid.UUID) ([]*Animal, error) {
	return r.listByOwner(ctx, "member_owner_id", memberID)
}

func (r *animalRepoPG) ListByNonMemberOwner(ctx context.Context, nonMemberID uuid.UUID) ([]*Animal, error) {
	return r.listByOwner(ctx, "non_member_owner_id", nonMemberID)
}

func (r *animalRepoPG) FindByNonMemberAndTag(ctx context.Context, nonMemberID uuid.UUID, tagNumber string) (*Animal, error) {
	a, err := scanAnimal(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+animalCols+` FROM animals a
		WHERE a.non_member_owner_id = $1 AND a.is_deleted = FALSE
			AND EXISTS (SELECT 1 FROM animal_tags t
				WHERE t.animal_id = a.id AND t.tag_number = $2 AND t.is_active = TRUE)
		LIMIT 1`, nonMemberID, tagNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ---- Tags ----

type tagRepoPG struct{ pool *pgxpool.Pool }

func NewTagRepoPG(pool *pgxpool.Pool) TagRepository {
	return &tagRepoPG{pool: pool}
}

const tagCols = `id, animal_id, tag_number, virtual_tag_number, method, location,
	action, replaced_on, is_active, is_synced, created_at, updated_at`

func scanTag(row pgx.Row) (*AnimalTag, error) {
	var t AnimalTag
	err := row.Scan(&t.ID, &t.AnimalID, &t.TagNumber, &t.VirtualTagNumber, &t.Method,
		&t.Location, &t.Action, &t.ReplacedOn, &t.IsActive, &t.IsSynced,
		&t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *tagRepoPG) Create(ctx context.Context, t *AnimalTag) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO animal_tags (id, animal_id, tag_number, virtual_tag_number, method,
			location, action, replaced_on, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.AnimalID, t.TagNumber, t.VirtualTagNumber, t.Method,
		t.Location, t.Action, t.ReplacedOn, t.IsActive)
	return err
}

func (r *tagRepoPG) GetActiveByAnimal(ctx context.Context, animalID uuid.UUID) (*AnimalTag, error) {
	t, err := scanTag(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tagCols+` FROM animal_tags WHERE animal_id = $1 AND is_active = TRUE`, animalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *tagRepoPG) GetActiveByTagNumber(ctx context.Context, tagNumber string) (*AnimalTag, error) {
	t, err := scanTag(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tagCols+` FROM animal_tags WHERE tag_number = $1 AND is_active = TRUE`, tagNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *tagRepoPG) Update(ctx context.Context, t *AnimalTag) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE animal_tags SET tag_number=$2, virtual_tag_number=$3, method=$4,
			location=$5, action=$6, replaced_on=$7, is_active=$8, is_synced=$9,
			updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.TagNumber, t.VirtualTagNumber, t.Method,
		t.Location, t.Action, t.ReplacedOn, t.IsActive, t.IsSynced)
	return err
}

// ---- Status logs ----

type statusLogRepoPG struct{ pool *pgxpool.Pool }

func NewStatusLogRepoPG(pool *pgxpool.Pool) StatusLogRepository {
	return &statusLogRepoPG{pool: pool}
}

const statusLogCols = `id, animal_id, from_date, to_date, statuses,
	last_calving_month, lactation_count, milk_per_day, created_at`

func scanStatusLog(row pgx.Row) (*AnimalStatusLog, error) {
	var l AnimalStatusLog
	err := row.Scan(&l.ID, &l.AnimalID, &l.FromDate, &l.ToDate, &l.Statuses,
		&l.LastCalvingMonth, &l.LactationCount, &l.MilkPerDay, &l.CreatedAt)
	return &l, err
}

func (r *statusLogRepoPG) Create(ctx context.Context, l *AnimalStatusLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO animal_status_logs (id, animal_id, from_date, to_date, statuses,
			last_calving_month, lactation_count, milk_per_day)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.AnimalID, l.FromDate, l.ToDate, l.Statuses,
		l.LastCalvingMonth, l.LactationCount, l.MilkPerDay)
	return err
}

func (r *statusLogRepoPG) GetOpenForAnimal(ctx context.Context, animalID uuid.UUID, forUpdate bool) (*AnimalStatusLog, error) {
	q := `SELECT ` + statusLogCols + ` FROM animal_status_logs
		WHERE animal_id = $1 AND to_date IS NULL`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	l, err := scanStatusLog(conn(ctx, r.pool).QueryRow(ctx, q, animalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (r *statusLogRepoPG) Update(ctx context.Context, l *AnimalStatusLog) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE animal_status_logs SET to_date=$2, statuses=$3, last_calving_month=$4,
			lactation_count=$5, milk_per_day=$6
		WHERE id = $1`,
		l.ID, l.ToDate, l.Statuses, l.LastCalvingMonth, l.LactationCount, l.MilkPerDay)
	return err
}

func (r *statusLogRepoPG) ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*AnimalStatusLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+statusLogCols+` FROM animal_status_logs
		WHERE animal_id = $1 ORDER BY from_date DESC`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AnimalStatusLog
	for rows.Next() {
		l, err := scanStatusLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
