package claims

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Payer Repository ===========

type payerRepoPG struct{ pool *pgxpool.Pool }

func NewPayerRepoPG(pool *pgxpool.Pool) PayerRepository { return &payerRepoPG{pool: pool} }

func (r *payerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const payerCols = `id, name, payer_code, address_line, city, state, zip, active, created_at, updated_at`

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	err := row.Scan(&p.ID, &p.Name, &p.PayerCode, &p.AddressLine, &p.City, &p.State, &p.Zip,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *payerRepoPG) Create(ctx context.Context, p *Payer) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payer (id, name, payer_code, address_line, city, state, zip, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.PayerCode, p.AddressLine, p.City, p.State, p.Zip, p.Active)
	return err
}

func (r *payerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return scanPayer(r.conn(ctx).QueryRow(ctx, `SELECT `+payerCols+` FROM payer WHERE id = $1`, id))
}

func (r *payerRepoPG) GetByName(ctx context.Context, name string) (*Payer, error) {
	return scanPayer(r.conn(ctx).QueryRow(ctx,
		`SELECT `+payerCols+` FROM payer WHERE lower(name) = lower($1) AND active`, name))
}

func (r *payerRepoPG) Update(ctx context.Context, p *Payer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payer SET name = $2, payer_code = $3, address_line = $4, city = $5,
			state = $6, zip = $7, active = $8, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.PayerCode, p.AddressLine, p.City, p.State, p.Zip, p.Active)
	return err
}

func (r *payerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE payer SET active = false, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *payerRepoPG) List(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payer WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+payerCols+` FROM payer WHERE active ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// =========== Claim Repository ===========

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

func (r *claimRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimCols = `id, patient_id, payer_id, secondary_payer_id, billing_physician_id,
	primary_claim_id, status, place_of_service,
	diagnosis_code_1, diagnosis_code_2, diagnosis_code_3, diagnosis_code_4,
	total_charge, total_ins_paid, total_pat_paid,
	total_adj_co, total_adj_cr, total_adj_oa, total_adj_pi, total_adj_pr,
	balance, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.PatientID, &c.PayerID, &c.SecondaryPayerID, &c.BillingPhysicianID,
		&c.PrimaryClaimID, &c.Status, &c.PlaceOfService,
		&c.DiagnosisCode1, &c.DiagnosisCode2, &c.DiagnosisCode3, &c.DiagnosisCode4,
		&c.TotalCharge, &c.TotalInsPaid, &c.TotalPatPaid,
		&c.TotalAdjCO, &c.TotalAdjCR, &c.TotalAdjOA, &c.TotalAdjPI, &c.TotalAdjPR,
		&c.Balance, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *claimRepoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claim (id, patient_id, payer_id, secondary_payer_id, billing_physician_id,
			primary_claim_id, status, place_of_service,
			diagnosis_code_1, diagnosis_code_2, diagnosis_code_3, diagnosis_code_4,
			total_charge, total_ins_paid, total_pat_paid,
			total_adj_co, total_adj_cr, total_adj_oa, total_adj_pi, total_adj_pr, balance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		c.ID, c.PatientID, c.PayerID, c.SecondaryPayerID, c.BillingPhysicianID,
		c.PrimaryClaimID, c.Status, c.PlaceOfService,
		c.DiagnosisCode1, c.DiagnosisCode2, c.DiagnosisCode3, c.DiagnosisCode4,
		c.TotalCharge, c.TotalInsPaid, c.TotalPatPaid,
		c.TotalAdjCO, c.TotalAdjCR, c.TotalAdjOA, c.TotalAdjPI, c.TotalAdjPR, c.Balance)
	return err
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
}

func (r *claimRepoPG) Update(ctx context.Context, c *Claim) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE claim SET payer_id = $2, secondary_payer_id = $3, billing_physician_id = $4,
			status = $5, place_of_service = $6,
			diagnosis_code_1 = $7, diagnosis_code_2 = $8, diagnosis_code_3 = $9, diagnosis_code_4 = $10,
			updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.PayerID, c.SecondaryPayerID, c.BillingPhysicianID,
		c.Status, c.PlaceOfService,
		c.DiagnosisCode1, c.DiagnosisCode2, c.DiagnosisCode3, c.DiagnosisCode4)
	return err
}

func (r *claimRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE claim SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *claimRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM claim WHERE id = $1`, id)
	return err
}

func (r *claimRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM claim WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+claimCols+` FROM claim WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectClaims(rows, total)
}

func (r *claimRepoPG) List(ctx context.Context, limit, offset int) ([]*Claim, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM claim`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+claimCols+` FROM claim ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectClaims(rows, total)
}

func collectClaims(rows pgx.Rows, total int) ([]*Claim, int, error) {
	var out []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *claimRepoPG) HasSecondary(ctx context.Context, primaryID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM claim WHERE primary_claim_id = $1)`, primaryID).Scan(&exists)
	return exists, err
}

// =========== ServiceLine Repository ===========

type serviceLineRepoPG struct{ pool *pgxpool.Pool }

func NewServiceLineRepoPG(pool *pgxpool.Pool) ServiceLineRepository {
	return &serviceLineRepoPG{pool: pool}
}

func (r *serviceLineRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const lineCols = `id, line_guid, claim_id, procedure_code, modifier_1, modifier_2,
	service_date, units, charges, total_ins_paid, total_pat_paid,
	adj_co, adj_cr, adj_oa, adj_pi, adj_pr, created_at, updated_at`

func scanLine(row pgx.Row) (*ServiceLine, error) {
	var l ServiceLine
	err := row.Scan(&l.ID, &l.LineGUID, &l.ClaimID, &l.ProcedureCode, &l.Modifier1, &l.Modifier2,
		&l.ServiceDate, &l.Units, &l.Charges, &l.TotalInsPaid, &l.TotalPatPaid,
		&l.AdjCO, &l.AdjCR, &l.AdjOA, &l.AdjPI, &l.AdjPR, &l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

func (r *serviceLineRepoPG) Create(ctx context.Context, l *ServiceLine) error {
	l.ID = uuid.New()
	if l.LineGUID == uuid.Nil {
		l.LineGUID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_line (id, line_guid, claim_id, procedure_code, modifier_1, modifier_2,
			service_date, units, charges)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.LineGUID, l.ClaimID, l.ProcedureCode, l.Modifier1, l.Modifier2,
		l.ServiceDate, l.Units, l.Charges)
	return err
}

func (r *serviceLineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceLine, error) {
	return scanLine(r.conn(ctx).QueryRow(ctx, `SELECT `+lineCols+` FROM service_line WHERE id = $1`, id))
}

func (r *serviceLineRepoPG) Update(ctx context.Context, l *ServiceLine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_line SET procedure_code = $2, modifier_1 = $3, modifier_2 = $4,
			service_date = $5, units = $6, charges = $7, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.ProcedureCode, l.Modifier1, l.Modifier2, l.ServiceDate, l.Units, l.Charges)
	return err
}

func (r *serviceLineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM service_line WHERE id = $1`, id)
	return err
}

func (r *serviceLineRepoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceLine, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+lineCols+` FROM service_line WHERE claim_id = $1 ORDER BY service_date, created_at`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ServiceLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// =========== ClaimNote Repository ===========

type claimNoteRepoPG struct{ pool *pgxpool.Pool }

func NewClaimNoteRepoPG(pool *pgxpool.Pool) ClaimNoteRepository {
	return &claimNoteRepoPG{pool: pool}
}

func (r *claimNoteRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *claimNoteRepoPG) Append(ctx context.Context, n *ClaimNote) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO claim_note (id, claim_id, note, author) VALUES ($1,$2,$3,$4)`,
		n.ID, n.ClaimID, n.Note, n.Author)
	return err
}

func (r *claimNoteRepoPG) ListByClaim(ctx context.Context, claimID uuid.UUID, limit, offset int) ([]*ClaimNote, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM claim_note WHERE claim_id = $1`, claimID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, claim_id, note, author, created_at FROM claim_note
		WHERE claim_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		claimID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*ClaimNote
	for rows.Next() {
		var n ClaimNote
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.Note, &n.Author, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, rows.Err()
}
