package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/student"
)

type studentRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Guardian  string `db:"guardian"`
	DOB       string `db:"dob"`
	Belt      string `db:"belt"`
	Address   string `db:"address"`
	Phone     string `db:"phone"`
	Gender    string `db:"gender"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

const studentColumns = "id, name, guardian, dob, belt, address, phone, gender, created_at, updated_at"

// studentOrderings maps the sortable fields to their column
var studentOrderings = map[string]string{
	"id":         "id",
	"name":       "LOWER(name)",
	"belt":       "LOWER(belt)",
	"updated_at": "updated_at",
}

type studentRepository struct {
	db core.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) toRow(s student.Student) studentRow {
	return studentRow{
		ID:        s.ID,
		Name:      s.Name,
		Guardian:  s.Guardian,
		DOB:       s.DOB,
		Belt:      s.Belt,
		Address:   s.Address,
		Phone:     s.Phone,
		Gender:    s.Gender,
		CreatedAt: toMillis(s.CreatedAt),
		UpdatedAt: toMillis(s.UpdatedAt),
	}
}

func (repo studentRepository) fromRow(row studentRow) student.Student {
	return student.Student{
		ID:        row.ID,
		Name:      row.Name,
		Guardian:  row.Guardian,
		DOB:       row.DOB,
		Belt:      row.Belt,
		Address:   row.Address,
		Phone:     row.Phone,
		Gender:    row.Gender,
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
}

// trapNoRowsErr maps "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := repo.toRow(s)
	err := execOne(ctx, repo.db,
		`INSERT INTO students (`+studentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		row.ID, row.Name, row.Guardian, row.DOB, row.Belt, row.Address, row.Phone, row.Gender, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if err == core.ErrConflict {
			return student.Student{}, student.ErrExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	q := repo.db.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "selecting student")
	}
	return repo.fromRow(row), nil
}

// likeEscaper makes LIKE wildcards in a search keyword match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, orderings ...core.DBOrdering) ([]student.Student, error) {
	var (
		where []string
		args  []interface{}
	)
	// students with ID or Name matching the search keyword
	if filter.Search != "" {
		val := "%" + likeEscaper.Replace(filter.Search) + "%"
		where = append(where, `(LOWER(id) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')`)
		args = append(args, val, val)
	}
	if filter.Belt != "" {
		where = append(where, "LOWER(belt) = ?")
		args = append(args, strings.ToLower(filter.Belt))
	}
	if filter.Gender != "" {
		where = append(where, "gender = ?")
		args = append(args, filter.Gender)
	}

	q := `SELECT ` + studentColumns + ` FROM students`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if order := core.OrderBy(orderings, studentOrderings); order != "" {
		q += order + ", id ASC"
	} else {
		q += " ORDER BY id ASC"
	}

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row := repo.toRow(s)
	err := execOne(ctx, repo.db,
		`UPDATE students SET name = ?, guardian = ?, dob = ?, belt = ?, address = ?, phone = ?, gender = ?, updated_at = ? WHERE id = ?`,
		row.Name, row.Guardian, row.DOB, row.Belt, row.Address, row.Phone, row.Gender, row.UpdatedAt, row.ID)
	if err != nil {
		if err == core.ErrConflict {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return repo.GetStudent(ctx, s.ID)
}
