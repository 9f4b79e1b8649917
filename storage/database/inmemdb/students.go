package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

var errStudentNotFound = core.NewNotFoundError("student")

type studentRepository struct {
	db *DB
}

var _ school.StudentRepository = (*studentRepository)(nil)

func (repo *studentRepository) CreateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	err := repo.db.write(ctx, "CreateStudent", func(t *tables) error {
		t.students[s.ID] = s
		return nil
	})
	if err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (school.Student, error) {
	var (
		s  school.Student
		ok bool
	)
	repo.db.read(func(t *tables) { s, ok = t.students[id] })
	if !ok {
		return school.Student{}, errStudentNotFound
	}
	return s, nil
}

func matchStudent(s school.Student, filter school.StudentFilter) bool {
	if filter.RepresentativeUserID != "" || filter.RepresentativeEmail != "" {
		byID := filter.RepresentativeUserID != "" && s.RepresentativeUserID == filter.RepresentativeUserID
		byEmail := filter.RepresentativeEmail != "" && s.Representative.Email == filter.RepresentativeEmail
		if !byID && !byEmail {
			return false
		}
	}
	if search := strings.ToLower(core.CleanString(filter.Search)); search != "" {
		return strings.Contains(strings.ToLower(s.Name), search) ||
			strings.Contains(strings.ToLower(s.Representative.Name), search)
	}
	return true
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter school.StudentFilter) ([]school.Student, error) {
	students := make([]school.Student, 0)
	repo.db.read(func(t *tables) {
		if filter.IDs != nil {
			for _, id := range core.UniqueStrings(filter.IDs) {
				if s, ok := t.students[id]; ok && matchStudent(s, filter) {
					students = append(students, s)
				}
			}
			return
		}
		for _, s := range t.students {
			if matchStudent(s, filter) {
				students = append(students, s)
			}
		}
	})
	sort.Slice(students, func(i, j int) bool {
		return strings.ToLower(students[i].Name) < strings.ToLower(students[j].Name)
	})
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	err := repo.db.write(ctx, "UpdateStudent", func(t *tables) error {
		if _, ok := t.students[s.ID]; !ok {
			return errStudentNotFound
		}
		t.students[s.ID] = s
		return nil
	})
	if err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteStudent", func(t *tables) error {
		if _, ok := t.students[id]; !ok {
			return errStudentNotFound
		}
		delete(t.students, id)
		return nil
	})
}

func (repo *studentRepository) RenameRepresentative(ctx context.Context, email, name string) (int, error) {
	var n int
	err := repo.db.write(ctx, "RenameRepresentative", func(t *tables) error {
		for id, s := range t.students {
			if s.Representative.Email == email {
				s.Representative.Name = name
				t.students[id] = s
				n++
			}
		}
		return nil
	})
	return n, err
}

func (repo *studentRepository) ReassignRepresentativeEmail(ctx context.Context, oldEmail, newEmail string) (int, error) {
	var n int
	err := repo.db.write(ctx, "ReassignRepresentativeEmail", func(t *tables) error {
		for id, s := range t.students {
			if s.Representative.Email == oldEmail {
				s.Representative.Email = newEmail
				t.students[id] = s
				n++
			}
		}
		return nil
	})
	return n, err
}

func (repo *studentRepository) CountStudents(_ context.Context) (int, error) {
	var n int
	repo.db.read(func(t *tables) { n = len(t.students) })
	return n, nil
}
