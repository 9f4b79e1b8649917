package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

var errTeacherNotFound = core.NewNotFoundError("teacher")

type teacherRepository struct {
	db *DB
}

var _ school.TeacherRepository = (*teacherRepository)(nil)

func (repo *teacherRepository) CreateTeacher(ctx context.Context, tch school.Teacher) (school.Teacher, error) {
	err := repo.db.write(ctx, "CreateTeacher", func(t *tables) error {
		t.teachers[tch.ID] = tch
		return nil
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return tch, nil
}

func (repo *teacherRepository) GetTeacherByID(_ context.Context, id string) (school.Teacher, error) {
	var (
		tch school.Teacher
		ok  bool
	)
	repo.db.read(func(t *tables) { tch, ok = t.teachers[id] })
	if !ok {
		return school.Teacher{}, errTeacherNotFound
	}
	return tch, nil
}

func (repo *teacherRepository) GetTeacherByEmail(_ context.Context, email string) (school.Teacher, error) {
	var (
		tch   school.Teacher
		found bool
	)
	repo.db.read(func(t *tables) {
		for _, v := range t.teachers {
			if v.Email == email {
				tch, found = v, true
				return
			}
		}
	})
	if !found {
		return school.Teacher{}, errTeacherNotFound
	}
	return tch, nil
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter school.TeacherFilter) ([]school.Teacher, error) {
	teachers := make([]school.Teacher, 0)
	repo.db.read(func(t *tables) {
		if filter.IDs != nil {
			for _, id := range core.UniqueStrings(filter.IDs) {
				if tch, ok := t.teachers[id]; ok {
					teachers = append(teachers, tch)
				}
			}
			return
		}
		for _, tch := range t.teachers {
			teachers = append(teachers, tch)
		}
	})
	sort.Slice(teachers, func(i, j int) bool {
		return strings.ToLower(teachers[i].FullName) < strings.ToLower(teachers[j].FullName)
	})
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, tch school.Teacher) (school.Teacher, error) {
	err := repo.db.write(ctx, "UpdateTeacher", func(t *tables) error {
		if _, ok := t.teachers[tch.ID]; !ok {
			return errTeacherNotFound
		}
		t.teachers[tch.ID] = tch
		return nil
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return tch, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteTeacher", func(t *tables) error {
		if _, ok := t.teachers[id]; !ok {
			return errTeacherNotFound
		}
		delete(t.teachers, id)
		return nil
	})
}

func (repo *teacherRepository) CountTeachers(_ context.Context) (int, error) {
	var n int
	repo.db.read(func(t *tables) { n = len(t.teachers) })
	return n, nil
}
