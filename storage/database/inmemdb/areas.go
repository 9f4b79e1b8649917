package inmemdb

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

var (
	errAreaNotFound      = core.NewNotFoundError("area")
	errClassroomNotFound = core.NewNotFoundError("classroom")
)

type (
	areaRepository struct {
		db *DB
	}

	classroomRepository struct {
		db *DB
	}
)

var (
	_ school.AreaRepository      = (*areaRepository)(nil)
	_ school.ClassroomRepository = (*classroomRepository)(nil)
)

func cloneArea(a school.Area) school.Area {
	a.TeacherIDs = slices.Clone(a.TeacherIDs)
	a.StudentIDs = slices.Clone(a.StudentIDs)
	return a
}

func cloneClassroom(c school.Classroom) school.Classroom {
	c.Schedule = slices.Clone(c.Schedule)
	return c
}

func without(list []string, drop ...string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !core.ContainsString(drop, v) {
			out = append(out, v)
		}
	}
	return out
}

// Areas

func (repo *areaRepository) CreateArea(ctx context.Context, a school.Area) (school.Area, error) {
	err := repo.db.write(ctx, "CreateArea", func(t *tables) error {
		t.areas[a.ID] = cloneArea(a)
		return nil
	})
	if err != nil {
		return school.Area{}, err
	}
	return a, nil
}

func (repo *areaRepository) GetAreaByID(_ context.Context, id string) (school.Area, error) {
	var (
		a  school.Area
		ok bool
	)
	repo.db.read(func(t *tables) { a, ok = t.areas[id] })
	if !ok {
		return school.Area{}, errAreaNotFound
	}
	return cloneArea(a), nil
}

func matchArea(a school.Area, filter school.AreaFilter) bool {
	if filter.IDs != nil && !core.ContainsString(filter.IDs, a.ID) {
		return false
	}
	if filter.TeacherID != "" && !core.ContainsString(a.TeacherIDs, filter.TeacherID) {
		return false
	}
	if filter.StudentID != "" && !core.ContainsString(a.StudentIDs, filter.StudentID) {
		return false
	}
	return true
}

func (repo *areaRepository) QueryAreas(_ context.Context, filter school.AreaFilter) ([]school.Area, error) {
	areas := make([]school.Area, 0)
	repo.db.read(func(t *tables) {
		for _, a := range t.areas {
			if matchArea(a, filter) {
				areas = append(areas, cloneArea(a))
			}
		}
	})
	sort.Slice(areas, func(i, j int) bool {
		return strings.ToLower(areas[i].Name) < strings.ToLower(areas[j].Name)
	})
	return areas, nil
}

func (repo *areaRepository) UpdateArea(ctx context.Context, a school.Area) (school.Area, error) {
	err := repo.db.write(ctx, "UpdateArea", func(t *tables) error {
		if _, ok := t.areas[a.ID]; !ok {
			return errAreaNotFound
		}
		t.areas[a.ID] = cloneArea(a)
		return nil
	})
	if err != nil {
		return school.Area{}, err
	}
	return a, nil
}

func (repo *areaRepository) DeleteArea(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteArea", func(t *tables) error {
		if _, ok := t.areas[id]; !ok {
			return errAreaNotFound
		}
		delete(t.areas, id)
		return nil
	})
}

func (repo *areaRepository) RemoveTeacherFromAreas(ctx context.Context, teacherID string) error {
	return repo.db.write(ctx, "RemoveTeacherFromAreas", func(t *tables) error {
		for id, a := range t.areas {
			if core.ContainsString(a.TeacherIDs, teacherID) {
				a.TeacherIDs = without(a.TeacherIDs, teacherID)
				t.areas[id] = a
			}
		}
		return nil
	})
}

func (repo *areaRepository) RemoveStudentsFromAreas(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return repo.db.write(ctx, "RemoveStudentsFromAreas", func(t *tables) error {
		for id, a := range t.areas {
			if pruned := without(a.StudentIDs, studentIDs...); len(pruned) != len(a.StudentIDs) {
				a.StudentIDs = pruned
				t.areas[id] = a
			}
		}
		return nil
	})
}

// Classrooms

func (repo *classroomRepository) CreateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	err := repo.db.write(ctx, "CreateClassroom", func(t *tables) error {
		t.classrooms[c.ID] = cloneClassroom(c)
		return nil
	})
	if err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroomByID(_ context.Context, id string) (school.Classroom, error) {
	var (
		c  school.Classroom
		ok bool
	)
	repo.db.read(func(t *tables) { c, ok = t.classrooms[id] })
	if !ok {
		return school.Classroom{}, errClassroomNotFound
	}
	return cloneClassroom(c), nil
}

func (repo *classroomRepository) QueryClassrooms(_ context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	rooms := make([]school.Classroom, 0)
	repo.db.read(func(t *tables) {
		for _, c := range t.classrooms {
			if filter.AreaIDs != nil {
				scheduled := false
				for _, areaID := range c.AreaIDs() {
					if core.ContainsString(filter.AreaIDs, areaID) {
						scheduled = true
						break
					}
				}
				if !scheduled {
					continue
				}
			}
			rooms = append(rooms, cloneClassroom(c))
		}
	})
	sort.Slice(rooms, func(i, j int) bool {
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	err := repo.db.write(ctx, "UpdateClassroom", func(t *tables) error {
		if _, ok := t.classrooms[c.ID]; !ok {
			return errClassroomNotFound
		}
		t.classrooms[c.ID] = cloneClassroom(c)
		return nil
	})
	if err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteClassroom", func(t *tables) error {
		if _, ok := t.classrooms[id]; !ok {
			return errClassroomNotFound
		}
		delete(t.classrooms, id)
		return nil
	})
}

func (repo *classroomRepository) RemoveAreaFromSchedules(ctx context.Context, areaID string) error {
	return repo.db.write(ctx, "RemoveAreaFromSchedules", func(t *tables) error {
		for id, c := range t.classrooms {
			kept := make([]school.ScheduleEntry, 0, len(c.Schedule))
			for _, e := range c.Schedule {
				if e.AreaID != areaID {
					kept = append(kept, e)
				}
			}
			if len(kept) != len(c.Schedule) {
				c.Schedule = kept
				t.classrooms[id] = c
			}
		}
		return nil
	})
}
