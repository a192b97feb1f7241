package firestorerepos

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/student"
)

type studentRepository struct {
	client *firestore.Client
	loc    *time.Location
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

// NewStudentRepository reads legacy local timestamps in loc.
func NewStudentRepository(client *firestore.Client, loc *time.Location) *studentRepository {
	return &studentRepository{client: client, loc: loc}
}

func (repo studentRepository) col() *firestore.CollectionRef { return repo.client.Collection(colStudents) }

func (repo studentRepository) encode(s student.Student) map[string]interface{} {
	return map[string]interface{}{
		"name":      s.Name,
		"guardian":  s.Guardian,
		"dob":       s.DOB,
		"belt":      s.Belt,
		"address":   s.Address,
		"phone":     s.Phone,
		"gender":    s.Gender,
		"createdAt": timeOrNil(s.CreatedAt),
		"updatedAt": timeOrNil(s.UpdatedAt),
	}
}

func (repo studentRepository) decode(snap *firestore.DocumentSnapshot) student.Student {
	data := snap.Data()
	return student.Student{
		ID:        snap.Ref.ID,
		Name:      getString(data, "name"),
		Guardian:  getString(data, "guardian"),
		DOB:       getString(data, "dob"),
		Belt:      getString(data, "belt"),
		Address:   getString(data, "address"),
		Phone:     getString(data, "phone"),
		Gender:    getString(data, "gender"),
		CreatedAt: getTime(data, "createdAt", repo.loc),
		UpdatedAt: getTime(data, "updatedAt", repo.loc),
	}
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if _, err := repo.col().Doc(s.ID).Create(ctx, repo.encode(s)); err != nil {
		if isAlreadyExists(err) {
			return student.Student{}, student.ErrExists
		}
		return student.Student{}, errors.Wrap(err, "creating student")
	}
	return s, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if id == "" {
		return student.Student{}, student.ErrNotFound
	}
	snap, err := repo.col().Doc(id).Get(ctx)
	found, err := exists(snap, err)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	if !found {
		return student.Student{}, student.ErrNotFound
	}
	return repo.decode(snap), nil
}

// QueryStudents loads the roster and filters it in memory.
func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, orderings ...core.DBOrdering) ([]student.Student, error) {
	students := make([]student.Student, 0)
	iter := repo.col().Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing students")
		}
		if s := repo.decode(snap); filter.Match(s) {
			students = append(students, s)
		}
	}
	student.Sort(students, orderings...)
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	ref := repo.col().Doc(s.ID)
	var updated student.Student
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		found, err := exists(snap, err)
		if err != nil {
			return err
		}
		if !found {
			return student.ErrNotFound
		}
		s.CreatedAt = repo.decode(snap).CreatedAt
		data := repo.encode(s)
		delete(data, "createdAt")
		updated = s
		return tx.Set(ref, data, firestore.MergeAll)
	})
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return updated, nil
}
