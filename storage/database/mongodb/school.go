package mongodb

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

var (
	errTeacherNotFound   = core.NewNotFoundError("teacher")
	errStudentNotFound   = core.NewNotFoundError("student")
	errAreaNotFound      = core.NewNotFoundError("area")
	errClassroomNotFound = core.NewNotFoundError("classroom")
)

type (
	teacherRepository struct {
		coll *mongo.Collection
	}

	studentRepository struct {
		coll *mongo.Collection
	}

	areaRepository struct {
		coll *mongo.Collection
	}

	classroomRepository struct {
		coll *mongo.Collection
	}
)

var (
	_ school.TeacherRepository   = (*teacherRepository)(nil)
	_ school.StudentRepository   = (*studentRepository)(nil)
	_ school.AreaRepository      = (*areaRepository)(nil)
	_ school.ClassroomRepository = (*classroomRepository)(nil)
)

// Teachers

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	if err := insert(ctx, "CreateTeacher", repo.coll, t); err != nil {
		return school.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacherByID(ctx context.Context, id string) (school.Teacher, error) {
	return findOne[school.Teacher](ctx, "GetTeacherByID", repo.coll, bson.M{"id": id}, errTeacherNotFound)
}

func (repo *teacherRepository) GetTeacherByEmail(ctx context.Context, email string) (school.Teacher, error) {
	return findOne[school.Teacher](ctx, "GetTeacherByEmail", repo.coll, bson.M{"email": email}, errTeacherNotFound)
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter school.TeacherFilter) ([]school.Teacher, error) {
	q := bson.M{}
	idsFilter(q, "id", filter.IDs)
	return findAll[school.Teacher](ctx, "QueryTeachers", repo.coll, q, byName("fullName"))
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	if err := replace(ctx, "UpdateTeacher", repo.coll, t.ID, t, errTeacherNotFound); err != nil {
		return school.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteTeacher", repo.coll, id, errTeacherNotFound)
}

func (repo *teacherRepository) CountTeachers(ctx context.Context) (int, error) {
	return count(ctx, "CountTeachers", repo.coll, bson.M{})
}

// Students

func (repo *studentRepository) CreateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	if err := insert(ctx, "CreateStudent", repo.coll, s); err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	return findOne[school.Student](ctx, "GetStudentByID", repo.coll, bson.M{"id": id}, errStudentNotFound)
}

func studentQuery(filter school.StudentFilter) bson.M {
	q := bson.M{}
	idsFilter(q, "id", filter.IDs)

	var and bson.A
	var reps bson.A
	if filter.RepresentativeUserID != "" {
		reps = append(reps, bson.M{"representativeUserId": filter.RepresentativeUserID})
	}
	if filter.RepresentativeEmail != "" {
		reps = append(reps, bson.M{"representative.email": filter.RepresentativeEmail})
	}
	if len(reps) > 0 {
		and = append(and, bson.M{"$or": reps})
	}
	if search := core.CleanString(filter.Search); search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		and = append(and, bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"representative.name": pattern}}})
	}
	if len(and) > 0 {
		q["$and"] = and
	}
	return q
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	return findAll[school.Student](ctx, "QueryStudents", repo.coll, studentQuery(filter), byName("name"))
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	if err := replace(ctx, "UpdateStudent", repo.coll, s.ID, s, errStudentNotFound); err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteStudent", repo.coll, id, errStudentNotFound)
}

func (repo *studentRepository) RenameRepresentative(ctx context.Context, email, name string) (int, error) {
	res, err := repo.coll.UpdateMany(ctx,
		bson.M{"representative.email": email},
		bson.M{"$set": bson.M{"representative.name": name}},
	)
	if err != nil {
		return 0, core.NewPersistenceError("RenameRepresentative", err)
	}
	return int(res.MatchedCount), nil
}

func (repo *studentRepository) ReassignRepresentativeEmail(ctx context.Context, oldEmail, newEmail string) (int, error) {
	res, err := repo.coll.UpdateMany(ctx,
		bson.M{"representative.email": oldEmail},
		bson.M{"$set": bson.M{"representative.email": newEmail}},
	)
	if err != nil {
		return 0, core.NewPersistenceError("ReassignRepresentativeEmail", err)
	}
	return int(res.MatchedCount), nil
}

func (repo *studentRepository) CountStudents(ctx context.Context) (int, error) {
	return count(ctx, "CountStudents", repo.coll, bson.M{})
}

// Areas

// Membership lists are stored as arrays, never null, so $pull always applies.
func normaliseArea(a school.Area) school.Area {
	a.TeacherIDs = nonNil(a.TeacherIDs)
	a.StudentIDs = nonNil(a.StudentIDs)
	return a
}

func (repo *areaRepository) CreateArea(ctx context.Context, a school.Area) (school.Area, error) {
	a = normaliseArea(a)
	if err := insert(ctx, "CreateArea", repo.coll, a); err != nil {
		return school.Area{}, err
	}
	return a, nil
}

func (repo *areaRepository) GetAreaByID(ctx context.Context, id string) (school.Area, error) {
	a, err := findOne[school.Area](ctx, "GetAreaByID", repo.coll, bson.M{"id": id}, errAreaNotFound)
	if err != nil {
		return school.Area{}, err
	}
	return normaliseArea(a), nil
}

func (repo *areaRepository) QueryAreas(ctx context.Context, filter school.AreaFilter) ([]school.Area, error) {
	q := bson.M{}
	idsFilter(q, "id", filter.IDs)
	if filter.TeacherID != "" {
		q["teacherIds"] = filter.TeacherID
	}
	if filter.StudentID != "" {
		q["studentIds"] = filter.StudentID
	}
	areas, err := findAll[school.Area](ctx, "QueryAreas", repo.coll, q, byName("name"))
	if err != nil {
		return nil, err
	}
	for i := range areas {
		areas[i] = normaliseArea(areas[i])
	}
	return areas, nil
}

func (repo *areaRepository) UpdateArea(ctx context.Context, a school.Area) (school.Area, error) {
	a = normaliseArea(a)
	if err := replace(ctx, "UpdateArea", repo.coll, a.ID, a, errAreaNotFound); err != nil {
		return school.Area{}, err
	}
	return a, nil
}

func (repo *areaRepository) DeleteArea(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteArea", repo.coll, id, errAreaNotFound)
}

func (repo *areaRepository) RemoveTeacherFromAreas(ctx context.Context, teacherID string) error {
	_, err := repo.coll.UpdateMany(ctx,
		bson.M{"teacherIds": teacherID},
		bson.M{"$pull": bson.M{"teacherIds": teacherID}},
	)
	return persistenceError("RemoveTeacherFromAreas", err, nil)
}

func (repo *areaRepository) RemoveStudentsFromAreas(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	_, err := repo.coll.UpdateMany(ctx,
		bson.M{"studentIds": bson.M{"$in": studentIDs}},
		bson.M{"$pull": bson.M{"studentIds": bson.M{"$in": studentIDs}}},
	)
	return persistenceError("RemoveStudentsFromAreas", err, nil)
}

// Classrooms

func normaliseClassroom(c school.Classroom) school.Classroom {
	if c.Schedule == nil {
		c.Schedule = []school.ScheduleEntry{}
	}
	return c
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	c = normaliseClassroom(c)
	if err := insert(ctx, "CreateClassroom", repo.coll, c); err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id string) (school.Classroom, error) {
	c, err := findOne[school.Classroom](ctx, "GetClassroomByID", repo.coll, bson.M{"id": id}, errClassroomNotFound)
	if err != nil {
		return school.Classroom{}, err
	}
	return normaliseClassroom(c), nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	q := bson.M{}
	idsFilter(q, "schedule.areaId", filter.AreaIDs)
	rooms, err := findAll[school.Classroom](ctx, "QueryClassrooms", repo.coll, q, byName("name"))
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i] = normaliseClassroom(rooms[i])
	}
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	c = normaliseClassroom(c)
	if err := replace(ctx, "UpdateClassroom", repo.coll, c.ID, c, errClassroomNotFound); err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteClassroom", repo.coll, id, errClassroomNotFound)
}

func (repo *classroomRepository) RemoveAreaFromSchedules(ctx context.Context, areaID string) error {
	_, err := repo.coll.UpdateMany(ctx,
		bson.M{"schedule.areaId": areaID},
		bson.M{"$pull": bson.M{"schedule": bson.M{"areaId": areaID}}},
	)
	return persistenceError("RemoveAreaFromSchedules", err, nil)
}
