package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/classledger/classledger/internal/model"
)

// SchoolStore is the tenant directory, including the entitlement pointer and
// the roster count consumed by capacity checks.
type SchoolStore struct {
	db DB
}

func NewSchoolStore(db DB) *SchoolStore {
	return &SchoolStore{db: db}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *SchoolStore) WithTx(tx *sql.Tx) *SchoolStore {
	return &SchoolStore{db: tx}
}

func scanSchool(scanner interface{ Scan(...any) error }) (*model.School, error) {
	var sc model.School
	var subID sql.NullInt64
	err := scanner.Scan(&sc.ID, &sc.Name, &sc.Email, &subID, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if subID.Valid {
		sc.CurrentSubscriptionID = &subID.Int64
	}
	return &sc, nil
}

const schoolCols = `id, name, email, current_subscription_id, created_at, updated_at`

func (s *SchoolStore) Create(name, email string) (*model.School, error) {
	result, err := s.db.Exec(`INSERT INTO schools (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return nil, fmt.Errorf("insert school: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SchoolStore) GetByID(id int64) (*model.School, error) {
	row := s.db.QueryRow(`SELECT `+schoolCols+` FROM schools WHERE id = ?`, id)
	sc, err := scanSchool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get school: %w", err)
	}
	return sc, nil
}

func (s *SchoolStore) GetByEmail(email string) (*model.School, error) {
	row := s.db.QueryRow(`SELECT `+schoolCols+` FROM schools WHERE email = ?`, email)
	sc, err := scanSchool(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get school by email: %w", err)
	}
	return sc, nil
}

// SetCurrentSubscription repoints the school's entitlement pointer.
func (s *SchoolStore) SetCurrentSubscription(id, subscriptionID int64) error {
	_, err := s.db.Exec(
		`UPDATE schools SET current_subscription_id = ?, updated_at = ? WHERE id = ?`,
		subscriptionID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set current subscription: %w", err)
	}
	return nil
}

// CountActiveStudents is the roster-service query used by the capacity
// monotonicity rule.
func (s *SchoolStore) CountActiveStudents(schoolID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM students WHERE school_id = ? AND active = 1`,
		schoolID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return n, nil
}

func (s *SchoolStore) AddStudent(schoolID int64, name string) (*model.Student, error) {
	result, err := s.db.Exec(`INSERT INTO students (school_id, name) VALUES (?, ?)`, schoolID, name)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(
		`SELECT id, school_id, name, active, created_at, updated_at FROM students WHERE id = ?`, id,
	)
	var st model.Student
	if err := row.Scan(&st.ID, &st.SchoolID, &st.Name, &st.Active, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}
